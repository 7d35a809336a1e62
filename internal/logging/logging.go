// Package logging constructs the zerolog logger shared by server and agent.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog logger from the configured level and format.
// Unknown levels fall back to info; format "console" gets the pretty writer.
func New(level, format string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		lvl = parsed
	}

	var writer io.Writer = os.Stdout
	if strings.EqualFold(format, "console") {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
