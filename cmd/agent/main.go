package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from the configured level.
func newLogger(level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(lvl).With().Timestamp().Logger(), nil
}
