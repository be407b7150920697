// Package logging builds the process logger. Output never goes to stdout,
// which belongs to the MCP stdio transport.
package logging

import (
	"fmt"
	"io"
	"os"

	"universal-browser-mcp/internal/config"

	"github.com/sirupsen/logrus"
)

// New returns a logger configured from the server settings along with a
// closer for the log file (a no-op when logging to stderr).
func New(cfg config.ServerConfig) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   cfg.LogFile != "",
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	log.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	if cfg.LogFile == "" {
		log.SetOutput(os.Stderr)
		return log, nopCloser{}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", cfg.LogFile, err)
	}
	log.SetOutput(f)
	return log, f, nil
}

// NullLogger discards everything; used by tests and embedders.
func NullLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
