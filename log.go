package droidmedia

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogFormat selects the log line encoding.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// NewLogger creates a logger writing to w (stderr if nil).
// Level names follow logrus; an empty level means info.
func NewLogger(w io.Writer, level string, format LogFormat) (*logrus.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl := logrus.InfoLevel
	if level != "" {
		var err error
		lvl, err = logrus.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, err
		}
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	if format == LogFormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// defaultLogger is used by recorders created without WithLogger.
func defaultLogger() logrus.FieldLogger {
	return logrus.StandardLogger()
}
