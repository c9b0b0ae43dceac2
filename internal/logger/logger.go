package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger for the given environment. Production gets JSON on stdout;
// everything else gets the coloured development console encoder.
func New(environment, level, format string) (*zap.Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if format == "json" {
		config.Encoding = "json"
		config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	return config.Build(zap.AddStacktrace(zap.DPanicLevel))
}
