package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a JSON logger with the given level, defaulting to info when
// the level string does not parse.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log
}
