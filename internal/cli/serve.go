package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/detour/internal/server"
	"github.com/matzehuels/detour/pkg/router"
)

type serveOpts struct {
	addr  string
	flags paramFlags
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Each session owns a router. Clients create a session, post transactions
of shape, pin and connector operations, and receive the resulting routes.
Idle sessions expire after the configured session_ttl.

Endpoints:
  POST   /sessions
  GET    /sessions/{id}
  DELETE /sessions/{id}
  POST   /sessions/{id}/transactions
  GET    /healthz
  GET    /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadedConfig()
			if err != nil {
				return err
			}
			params, err := cfg.Params.Merge(opts.flags.params(cmd)).Apply(router.Defaults())
			if err != nil {
				return err
			}
			addr := cfg.Server.Addr
			if cmd.Flags().Changed("addr") {
				addr = opts.addr
			}

			srv, err := server.New(server.Config{
				Addr:        addr,
				Params:      params,
				SessionTTL:  cfg.Server.SessionTTL.Duration,
				MaxSessions: cfg.Server.MaxSessions,
				Logger:      c.Logger.WithPrefix("server"),
				Counters:    c.Counters,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", server.DefaultAddr, "listen address")
	opts.flags.register(cmd)

	return cmd
}
