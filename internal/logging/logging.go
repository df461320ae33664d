// Package logging configures the global zerolog logger. The terminal belongs
// to the TUI, so logs go to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sends the global logger to path at level. It returns a func that
// closes the file. When the file cannot be opened logging is discarded and
// the error returned.
func Setup(level, path string) (func(), error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Logger = zerolog.New(io.Discard)
		return func() {}, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		log.Logger = zerolog.New(io.Discard)
		return func() {}, fmt.Errorf("open log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() { f.Close() }, nil //nolint:errcheck
}
