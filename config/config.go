// Package config loads stereolink settings from defaults, an optional YAML
// file, STEREOLINK_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. STEREOLINK_SERVER_ADDR.
const EnvPrefix = "STEREOLINK"

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	Capture CaptureConfig `mapstructure:"capture"`
}

// ServerConfig configures the capture-side listener.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PeekTimeout  time.Duration `mapstructure:"peek_timeout"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
	// FallbackDir receives pairs that could not be sent.
	FallbackDir string `mapstructure:"fallback_dir"`
}

// ClientConfig configures the processing-side client.
type ClientConfig struct {
	Addr              string        `mapstructure:"addr"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	StrictChannelTags bool          `mapstructure:"strict_channel_tags"`
	MaxFrameLength    uint32        `mapstructure:"max_frame_length"`
	Persist           bool          `mapstructure:"persist"`
	PersistDir        string        `mapstructure:"persist_dir"`
	PersistExt        string        `mapstructure:"persist_ext"`
	ReconnectMin      time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax      time.Duration `mapstructure:"reconnect_max"`
}

// LogConfig configures logging. An empty Dir logs to stdout only.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// StoreConfig selects where received pairs are published.
type StoreConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend   string        `mapstructure:"backend"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// CaptureConfig tells the server command where images come from.
type CaptureConfig struct {
	LeftPath  string `mapstructure:"left_path"`
	RightPath string `mapstructure:"right_path"`
	// WatchDir, when set, sends every pair dropped into the directory
	// instead of prompting.
	WatchDir string `mapstructure:"watch_dir"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.poll_interval", 250*time.Millisecond)
	v.SetDefault("server.peek_timeout", 10*time.Millisecond)
	v.SetDefault("server.stop_timeout", 5*time.Second)
	v.SetDefault("server.fallback_dir", "captures")

	v.SetDefault("client.addr", "192.168.1.100:8080")
	v.SetDefault("client.connect_timeout", 10*time.Second)
	v.SetDefault("client.strict_channel_tags", false)
	v.SetDefault("client.max_frame_length", 64<<20)
	v.SetDefault("client.persist", false)
	v.SetDefault("client.persist_dir", "received")
	v.SetDefault("client.persist_ext", ".jpg")
	v.SetDefault("client.reconnect_min", 500*time.Millisecond)
	v.SetDefault("client.reconnect_max", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.ttl", 10*time.Minute)
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.key_prefix", "stereolink:")

	v.SetDefault("capture.left_path", "left_image.jpg")
	v.SetDefault("capture.right_path", "right_image.jpg")
	v.SetDefault("capture.watch_dir", "")
}

// Load builds a Config. A missing config file is not an error; an
// unreadable or malformed one is. Flags in flags that were set on the command
// line override every other source; their names are the config keys
// ("server.addr", "client.persist", ...).
//
// Parameters:
//   - path: Config file path; empty skips the file
//   - flags: Parsed flag set to bind, or nil
//
// Returns:
//   - The loaded configuration
//   - An error if the file or a value cannot be parsed
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Client.Addr == "" {
		errs = append(errs, errors.New("client.addr must not be empty"))
	}
	if c.Client.ReconnectMin > c.Client.ReconnectMax {
		errs = append(errs, errors.New("client.reconnect_min must not exceed client.reconnect_max"))
	}

	if c.Capture.WatchDir != "" && filepath.Clean(c.Capture.WatchDir) == filepath.Clean(c.Server.FallbackDir) {
		errs = append(errs, errors.New("capture.watch_dir must differ from server.fallback_dir"))
	}

	switch c.Store.Backend {
	case "memory", "redis", "none":
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of memory, redis, none", c.Store.Backend))
	}

	return errors.Join(errs...)
}
