// Package logging provides the structured logger shared by livecapture components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias so callers do not import logrus just to attach fields.
type Fields = logrus.Fields

// Options configures the global logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Empty means "info".
	Level string
	// File, when set, receives a rotated copy of every log line.
	File string
	// Quiet drops console output (used by the terminal presenter so the
	// progress bar is not interleaved with log lines).
	Quiet bool
}

var (
	logger *logrus.Logger
	mu     sync.Mutex
)

// Init (re)configures the global logger.
func Init(opts Options) *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()

	l := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.File != "" && opts.Quiet,
		TimestampFormat: "2006-01-02 15:04:05.000",
		HideKeys:        false,
		FieldsOrder:     []string{"component", "session"},
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})
	l.SetReportCaller(level >= logrus.DebugLevel)

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}
	l.SetOutput(io.MultiWriter(writers...))

	logger = l
	return l
}

// L returns the global logger, initializing it with defaults on first use.
func L() *logrus.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return Init(Options{})
	}
	return l
}

// For returns an entry tagged with the given component name.
func For(component string) *logrus.Entry {
	return L().WithField("component", component)
}

// Discard returns an entry that drops everything. Tests use it to keep output quiet.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
