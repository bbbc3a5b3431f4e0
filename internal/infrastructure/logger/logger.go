package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init replaces the process logger. Unknown levels fall back to info.
func Init(cfg Config) {
	InitWithWriter(cfg, os.Stdout)
}

func InitWithWriter(cfg Config, out io.Writer) {
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	log = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

func Logger() *zerolog.Logger {
	return &log
}

// With returns a child logger carrying the given component name.
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }
