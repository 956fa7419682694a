package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely the process logs.
type Options struct {
	Level      string
	File       string // optional rotating log file
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

func Init(opts Options) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	writers := []io.Writer{os.Stdout}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			logrus.WithError(err).Warn("unable to create log directory")
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxAge:     orDefault(opts.MaxAgeDays, 14),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			LocalTime:  true,
			Compress:   true,
		})
	}

	logrus.SetOutput(io.MultiWriter(writers...))
	logrus.WithField("level", level.String()).Info("logger initialised")
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
