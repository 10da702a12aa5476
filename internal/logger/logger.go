// Package logger builds the process-wide structured logger from environment
// settings. Library code receives the logger by injection; only the binary
// entrypoint calls New.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a configured logger. Level falls back to info when the value is
// empty or unparseable; format "json" selects the JSON formatter, anything
// else the plain text one.
func New(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
