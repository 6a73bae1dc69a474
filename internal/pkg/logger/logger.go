package logger

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Encoding is "console" for local runs and
// "json" for anything shipped to a log collector.
func New(level, encoding string, meta ...zap.Field) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	instance, err := configure(lvl, encoding).Build(zap.AddCaller())
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}

	return instance.With(meta...), nil
}

func configure(level zapcore.Level, encoding string) zap.Config {
	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "timestamp"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	if encoding == "console" {
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encoder.EncodeCaller = zapcore.ShortCallerEncoder
	encoder.EncodeDuration = zapcore.SecondsDurationEncoder
	encoder.EncodeName = zapcore.FullNameEncoder
	encoder.CallerKey = "caller"
	if encoding != "console" {
		encoding = "json"
	}
	return zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: false,
		Encoding:          encoding,
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}
