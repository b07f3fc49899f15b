package cliconfig

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/bft-labs/pushgate/pkg/log"
)

// ParseLevel maps a log level name to a zerolog level. An empty name means
// info.
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", name)
	}
	return lvl, nil
}

// Logger returns a console logger writing to out at the configured level.
func (c *Config) Logger(out io.Writer) zerolog.Logger {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return log.NewConsoleLogger(out, lvl)
}
