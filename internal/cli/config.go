package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/detour/internal/server"
	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/router"
	"github.com/matzehuels/detour/pkg/scene"
	"github.com/matzehuels/detour/pkg/session"
)

// Config is the contents of config.toml:
//
//	[params]
//	routing = ["orthogonal", "polyline"]
//	shape_buffer = 6.0
//
//	[server]
//	addr = ":9000"
//	session_ttl = "1h"
//
//	[cache]
//	ttl = "168h"
type Config struct {
	Params scene.Params `toml:"params"`
	Server ServerConfig `toml:"server"`
	Cache  CacheConfig  `toml:"cache"`
}

// ServerConfig holds the settings of `detour serve`.
type ServerConfig struct {
	Addr        string   `toml:"addr"`
	SessionTTL  duration `toml:"session_ttl"`
	MaxSessions int      `toml:"max_sessions"`
}

// CacheConfig holds the settings of the result cache.
type CacheConfig struct {
	// TTL bounds the age of cached results; zero keeps them until the
	// cache is cleared.
	TTL duration `toml:"ttl"`
}

// duration is a time.Duration written as a string ("30m") in TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        server.DefaultAddr,
			SessionTTL:  duration{session.DefaultTTL},
			MaxSessions: session.DefaultMaxSessions,
		},
		Cache: CacheConfig{TTL: duration{7 * 24 * time.Hour}},
	}
}

// LoadConfig reads the config file at path over the defaults. A missing
// file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "config %s", path)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "config %s: unknown key %q", path, keys[0].String())
	}
	if _, err := cfg.Params.Apply(router.Defaults()); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "config %s", path)
	}
	return cfg, nil
}

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadedConfig()
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				var err error
				if path, err = configFile(); err != nil {
					return fmt.Errorf("get config path: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	return cmd
}
