package config

import (
	"os"

	"github.com/cyberinferno/stereolink/logger"
)

// NewLogger builds the Logger described by c: stdout only, or stdout plus
// daily files in c.Dir.
//
// Parameters:
//   - service: The service name stamped on every entry
//
// Returns:
//   - The logger; callers must Close it on exit
//   - An error if the level is unknown or the log directory is unusable
func (c LogConfig) NewLogger(service string) (logger.Logger, error) {
	level, err := logger.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	if c.Dir == "" {
		return logger.NewZerologLogger(os.Stdout, service, level), nil
	}

	return logger.NewZerologFileLogger(service, c.Dir, level)
}
