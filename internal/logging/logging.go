// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/AngelGarcia/Mistery/internal/config"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing JSON in production and human-readable text
// in development.
func New(cfg config.Config) (*logrus.Logger, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.Config, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	if cfg.IsDevelopment() {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l, nil
}
