package logging

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type LoggerFactory interface {
	CreateLogger(ctx context.Context) Logger
}

var (
	loggerFactoryMu sync.RWMutex
	loggerFactory   LoggerFactory
)

func SetLoggerFactory(factory LoggerFactory) {
	loggerFactoryMu.Lock()
	defer loggerFactoryMu.Unlock()

	loggerFactory = factory
}

func GetLoggerFactory() LoggerFactory {
	loggerFactoryMu.RLock()
	defer loggerFactoryMu.RUnlock()

	return loggerFactory
}

// LogrusFactory shares one configured logrus.Logger across all contexts.
type LogrusFactory struct {
	logger *logrus.Logger
}

// NewLogrusFactory builds a factory writing to out at the given level.
// Format is "text" or "json".
func NewLogrusFactory(out io.Writer, level string, format string) (*LogrusFactory, error) {
	logger := logrus.New()
	if out != nil {
		logger.SetOutput(out)
	}

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	return &LogrusFactory{logger: logger}, nil
}

func (f *LogrusFactory) CreateLogger(ctx context.Context) Logger {
	return newLogrusLogger(ctx, f.logger)
}
