package telerelay

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the process logger.
type LogConfig struct {
	// File is the log file path. Empty disables the file sink.
	File string

	// MaxSizeMB is the size at which the log file is rotated.
	// Defaults to 50 if zero.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	// Defaults to 3 if zero.
	MaxBackups int

	// Console receives the same records. Defaults to os.Stderr.
	Console io.Writer

	// Verbose lowers the level to debug.
	Verbose bool
}

func (c *LogConfig) setDefaults() {
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.Console == nil {
		c.Console = os.Stderr
	}
}

// NewLogger returns a logger writing text records to the console and the log
// file. Close the returned closer at shutdown to flush the file.
func NewLogger(cfg LogConfig) (*slog.Logger, io.Closer) {
	cfg.setDefaults()

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	w := cfg.Console
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w = io.MultiWriter(cfg.Console, file)
		closer = file
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
