package logging

import (
	"os"

	"github.com/dockpilot/management-api/internal/config"

	"github.com/sirupsen/logrus"
)

// New creates a new structured logger
func New(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn("Invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "ts",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z",
		})
	}

	logger.SetOutput(os.Stdout)

	logger = logger.WithFields(logrus.Fields{
		"service":     "management-api",
		"version":     getVersion(),
		"environment": cfg.Server.Environment,
	}).Logger

	return logger
}

// getVersion returns the application version
func getVersion() string {
	if version := os.Getenv("APP_VERSION"); version != "" {
		return version
	}
	return "dev"
}

// WithTraceID adds trace ID to logger context
func WithTraceID(logger *logrus.Logger, traceID string) *logrus.Entry {
	return logger.WithField("trace_id", traceID)
}

// WithUsername adds the acting username to logger context
func WithUsername(logger *logrus.Logger, username string) *logrus.Entry {
	return logger.WithField("username", username)
}
