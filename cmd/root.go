/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	migrateCmd "github.com/mpapenbr/roadtt-engine/pkg/cmd/migrate"
	replayCmd "github.com/mpapenbr/roadtt-engine/pkg/cmd/replay"
	resultCmd "github.com/mpapenbr/roadtt-engine/pkg/cmd/result"
	ridersCmd "github.com/mpapenbr/roadtt-engine/pkg/cmd/riders"
	"github.com/mpapenbr/roadtt-engine/pkg/cmd/util"
	watchCmd "github.com/mpapenbr/roadtt-engine/pkg/cmd/watch"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/version"
)

const envPrefix = "RTE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "rte",
	Short:   "Timing and results engine for road time trials",
	Long:    ``,
	Version: version.FullVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return util.SetupLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.rte.yml)")

	rootCmd.PersistentFlags().StringVar(&config.DB, "db", "",
		"Connection string for the rider directory database")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql statements")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules restricting log output, e.g. \"debug:engine* info:*\"")
	rootCmd.PersistentFlags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	rootCmd.PersistentFlags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data")
	rootCmd.PersistentFlags().StringVar(&config.EventFile,
		"event", "event.json",
		"path to the event document")
	rootCmd.PersistentFlags().StringVar(&config.CatalogFile,
		"catalog", "",
		"path to the category metadata file")
	rootCmd.PersistentFlags().StringVar(&config.RidersFile,
		"riders", "",
		"path to a JSON rider export used as rider directory")
	rootCmd.PersistentFlags().StringVar(&config.RidersPath,
		"riders-path", "$[*]",
		"JSONPath selecting the rider entries within the rider export")
	rootCmd.PersistentFlags().StringVar(&config.Mode,
		"mode", "irtt",
		"event mode (irtt, ttt)")
	rootCmd.PersistentFlags().StringVar(&config.Categories,
		"categories", "",
		"comma separated list of result categories")
	rootCmd.PersistentFlags().StringVar(&config.NatsURL,
		"nats-url", "",
		"URL of the NATS server receiving result snapshots")
	rootCmd.PersistentFlags().StringVar(&config.NatsBucket,
		"nats-bucket", "rte_results",
		"jetstream key value bucket keeping the latest snapshot")

	// add commands here
	rootCmd.AddCommand(migrateCmd.NewMigrateCmd())
	rootCmd.AddCommand(resultCmd.NewResultCmd())
	rootCmd.AddCommand(replayCmd.NewReplayCmd())
	rootCmd.AddCommand(watchCmd.NewWatchCmd())
	rootCmd.AddCommand(ridersCmd.NewRidersCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".rte" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rte")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --log-level to RTE_LOG_LEVEL
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
