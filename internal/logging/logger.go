package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. The formatter follows format alone: "json"
// selects JSON output, "text" or empty selects the text formatter.
func New(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q (want json or text)", format)
	}

	return logger, nil
}
