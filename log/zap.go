package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

// FilterOption restricts log output by logger name and level.
// Rules use the zapfilter syntax, e.g. "debug:engine.* info:*"
func FilterOption(rules string) (Option, error) {
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, err
	}
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(c, filter)
	}), nil
}

func InitProductionLogger() {
	l, _ := zap.NewProduction()
	ResetDefault(&Logger{l: l, level: InfoLevel})
}

func InitDevelopmentLogger() {
	l, _ := zap.NewDevelopment()
	ResetDefault(&Logger{l: l, level: DebugLevel})
}
