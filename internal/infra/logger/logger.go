// Package logger provides structured logging using zerolog.
package logger

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Level  string    // "debug", "info", "warn", "error"
	File   string    // Log file path; empty logs to Writer
	Writer io.Writer // Console destination, os.Stderr if nil
}

var (
	fileMu  sync.Mutex
	logFile *os.File
)

// Init initializes the global zerolog logger with the given configuration.
// Console output is human readable; file output is JSON. A log file opened
// by a previous Init is closed once the new logger is in place.
func Init(cfg Config) error {
	level := ParseLevel(cfg.Level)

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.CallerMarshalFunc = shortCaller

	var (
		logger zerolog.Logger
		file   *os.File
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, "failed to open log file")
		}
		file = f
		logger = newJSON(f, level)
	} else {
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		logger = newConsole(w, level)
	}

	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger

	fileMu.Lock()
	prev := logFile
	logFile = file
	fileMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Close closes the log file, if any. Logging falls back to stderr.
func Close() error {
	fileMu.Lock()
	f := logFile
	logFile = nil
	fileMu.Unlock()
	if f == nil {
		return nil
	}

	logger := newConsole(os.Stderr, zerolog.GlobalLevel())
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger
	return errors.Wrap(f.Close(), "failed to close log file")
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return zlog.With().Str("component", name).Logger()
}

// LineWriter returns a writer that logs every line written to it at debug
// level. It is meant for forwarding the output of child processes.
// The returned function must be called to release the forwarding goroutine.
func LineWriter(l zerolog.Logger) (io.Writer, func()) {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				l.Debug().Msg(line)
			}
		}
		_ = pr.Close()
	}()
	return pw, func() {
		_ = pw.Close()
		<-done
	}
}

// ParseLevel parses the log level string.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func newConsole(w io.Writer, level zerolog.Level) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
	}
	if level > zerolog.DebugLevel {
		return zerolog.New(cw).With().Timestamp().Logger()
	}
	// Caller only at debug level
	cw.PartsOrder = []string{"time", "level", "message", "caller"}
	cw.FormatCaller = func(i interface{}) string {
		s, _ := i.(string)
		return "(" + s + ")"
	}
	return zerolog.New(cw).With().Timestamp().Caller().Logger()
}

func newJSON(w io.Writer, level zerolog.Level) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()
	if level == zerolog.DebugLevel {
		return ctx.Caller().Logger()
	}
	return ctx.Logger()
}

// shortCaller keeps the last directory and the file name.
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
