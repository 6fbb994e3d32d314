// Package logx configures the process-wide zerolog logger and scopes
// it to the travel workflow: loggers carry the TRF number or the
// conversation session so one request can be followed across the
// orchestrator, the state machine and the stores.
package logx

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Level        string `split_words:"true" default:"info"`
	PrettyFormat bool   `split_words:"true" default:"false"`
}

var DefaultConfig = &Config{
	Level:        "info",
	PrettyFormat: false,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

func Init(opts ...Config) {
	conf := safe(opts...)

	if conf.PrettyFormat {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(conf.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level).With().
		Str("service", "travel-agent").
		Caller().Stack().Logger()
}

// WithTRF returns a logger scoped to one travel request.
func WithTRF(trfNumber string) zerolog.Logger {
	return log.With().Str("trf", trfNumber).Logger()
}

// WithSession returns a logger scoped to one conversation.
func WithSession(key string, role string) zerolog.Logger {
	return log.With().Str("session", key).Str("role", role).Logger()
}
