// Package cli implements the detour command-line interface.
//
// # Commands
//
//   - route: run a scene and print the final routes
//   - replay: step through the transactions of a scene interactively
//   - graph: render the routing graph of a scene with Graphviz
//   - serve: run the HTTP API
//   - cache: manage the result cache
//   - config: show the configuration file
//
// # Configuration
//
// Default router parameters and server settings are read from
// ~/.config/detour/config.toml (see [Config]). Parameters in a scene file
// override the configuration; command-line flags override both.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which
// includes a line per committed transaction.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/detour/pkg/buildinfo"
	"github.com/matzehuels/detour/pkg/cache"
	"github.com/matzehuels/detour/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "detour"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Counters collect cache and router events of the running command.
	Counters *observability.Counters

	configPath string
	config     *Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:   newLogger(w, level),
		Counters: observability.NewCounters(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   appName,
		Short: "Detour routes connectors around obstacles",
		Long: `Detour is an incremental connector router for diagrams. It keeps
orthogonal and polyline routes between shapes up to date as the shapes,
pins and connectors of a diagram change.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				c.SetLogLevel(LogDebug)
			}
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/detour/config.toml)")

	root.AddCommand(c.routeCommand())
	root.AddCommand(c.replayCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadedConfig returns the configuration, reading it on first use.
func (c *CLI) loadedConfig() (*Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	path := c.configPath
	if path == "" {
		var err error
		if path, err = configFile(); err != nil {
			c.Logger.Debug("no config directory", "err", err)
			c.config = DefaultConfig()
			return c.config, nil
		}
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	c.config = cfg
	return cfg, nil
}

// =============================================================================
// Cache Factory
// =============================================================================

func (c *CLI) newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNull(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNull(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return cache.WithHooks(fc, c.Counters), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/detour/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configFile returns the config file path using XDG standard
// (~/.config/detour/config.toml).
func configFile() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
