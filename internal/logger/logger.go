package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 10
	maxLogBackups = 5
	maxLogAgeDays = 14
)

var log = logrus.New()

// Init configures the package logger. An empty file logs to stdout;
// otherwise output goes to a size-rotated file.
func Init(level, format, file string) error {
	l := logrus.New()
	l.SetLevel(parseLevel(level))

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out, err := output(file)
	l.SetOutput(out)
	log = l
	return err
}

func output(file string) (io.Writer, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return os.Stdout, err
	}
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}, nil
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Get exposes the underlying logger, e.g. as an io.Writer for other packages.
func Get() *logrus.Logger {
	return log
}

func WithFields(fields map[string]interface{}) *logrus.Entry {
	return log.WithFields(logrus.Fields(fields))
}

func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }

func Info(args ...interface{}) { log.Info(args...) }

func Infof(format string, args ...interface{}) { log.Infof(format, args...) }

func Warnf(format string, args ...interface{}) { log.Warnf(format, args...) }

func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }

func Fatalf(format string, args ...interface{}) { log.Fatalf(format, args...) }
