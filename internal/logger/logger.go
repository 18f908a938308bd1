package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.SetOutput(os.Stderr)
	Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	Logger.SetLevel(envLevel(os.Getenv("LOG_LEVEL"), logrus.InfoLevel))
}

// envLevel parses a LOG_LEVEL value, falling back when it is empty or unknown.
func envLevel(value string, fallback logrus.Level) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return fallback
	}
	return parsed
}

// Configure applies level and format from configuration. Unknown levels keep the current one.
func Configure(level string, format string) error {
	if strings.TrimSpace(level) != "" {
		parsed, err := logrus.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
		Logger.SetLevel(parsed)
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// WithComponent adds a component field to the logger
func WithComponent(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}
