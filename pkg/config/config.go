package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                string // connection string for the rider directory database
	WaitForServices   string // duration to wait for other services to be ready
	LogLevel          string // sets the log level (zap log level values)
	SQLLogLevel       string // sets the log level for sql subsystem
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules, e.g. "debug:engine.* info:*"
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry
	EventFile         string // path to the event document
	CatalogFile       string // path to the category metadata file
	RidersFile        string // path to a JSON rider export
	RidersPath        string // JSONPath selecting the riders within RidersFile
	NatsURL           string // URL of the NATS server used for result mirroring
	NatsBucket        string // name of the jetstream KV bucket for snapshots
	Mode              string // irtt or ttt
	Categories        string // declared result categories, comma separated
)

// Config holds the configuration values which are used by the application
type Config struct {
	Mode   string // irtt or ttt
	Timing Timing
}
