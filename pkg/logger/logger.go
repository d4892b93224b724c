package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger
var sugar *zap.SugaredLogger

// Init initializes the global logger and returns it.
// Environment can be "dev", "uat", or "prod"; dev uses a colored console encoder.
func Init(service, env, level string) *zap.Logger {
	var cfg zap.Config

	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.InitialFields = map[string]any{"service": service}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	log = logger
	sugar = logger.Sugar()

	log.Info("logger initialized",
		zap.String("env", env),
		zap.String("level", cfg.Level.String()),
	)
	return log
}

// L returns the base structured logger, initializing a dev logger on first use.
func L() *zap.Logger {
	if log == nil {
		Init("capitol-watch", "dev", "info")
	}
	return log
}

// S returns the sugared logger.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init("capitol-watch", "dev", "info")
	}
	return sugar
}

// Named returns a child of the global logger scoped to a component.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes any buffered logs (defer this in main()).
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
