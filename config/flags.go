package config

import (
	"github.com/spf13/pflag"
)

// NewFlagSet returns the command-line flags shared by both commands. Their
// defaults are empty/false; only flags that were actually set override the
// other configuration sources.
//
// Parameters:
//   - name: The command name, used in usage output
//
// Returns:
//   - A flag set with --config plus one flag per commonly changed key
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "config.yaml", "path to the YAML config file")
	fs.String("server.addr", "", "listen address (host:port)")
	fs.String("client.addr", "", "listener address to connect to (host:port)")
	fs.Bool("client.persist", false, "save every received pair to client.persist_dir")
	fs.String("log.level", "", "log level: debug, info, warn, error, disabled")
	fs.String("store.backend", "", "where received pairs are published: memory, redis, none")
	fs.String("capture.watch_dir", "", "send every <stem>_left/<stem>_right pair dropped here")
	return fs
}

// ConfigPath returns the --config value of a parsed flag set.
func ConfigPath(fs *pflag.FlagSet) string {
	path, err := fs.GetString("config")
	if err != nil {
		return ""
	}

	return path
}
