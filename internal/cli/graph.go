package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/detour/pkg/buildinfo"
	"github.com/matzehuels/detour/pkg/cache"
	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/router"
	"github.com/matzehuels/detour/pkg/scene"
	"github.com/matzehuels/detour/pkg/visgraph"
)

// Output formats of the graph command.
const (
	graphFormatDOT = "dot"
	graphFormatSVG = "svg"
)

type graphOpts struct {
	discipline string
	output     string
	noCache    bool
	flags      paramFlags
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph [scene]",
		Short: "Render the routing graph of a scene",
		Long: `Render the routing graph of a scene after its last transaction.

The output format follows the extension of --output: .dot writes the
Graphviz source, .svg renders it with Graphviz. Without --output the
DOT source is written to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd, args[0], opts, opts.flags.params(cmd))
		},
	}

	cmd.Flags().StringVarP(&opts.discipline, "discipline", "d", "orthogonal", "graph to render: orthogonal or polyline")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (.dot or .svg)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	opts.flags.register(cmd)

	return cmd
}

// graphFormat returns the output format for path.
func graphFormat(path string) (string, error) {
	if path == "" {
		return graphFormatDOT, nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".dot", ".gv":
		return graphFormatDOT, nil
	case ".svg":
		return graphFormatSVG, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidInput, "unsupported graph format %q (use .dot or .svg)", ext)
	}
}

func (c *CLI) runGraph(cmd *cobra.Command, path string, opts graphOpts, flags scene.Params) error {
	ctx := cmd.Context()
	d, err := router.ParseRoutingType(opts.discipline)
	if err != nil {
		return err
	}
	format, err := graphFormat(opts.output)
	if err != nil {
		return err
	}
	l, err := c.loadScene(path, flags)
	if err != nil {
		return err
	}
	if !l.params.Routing.Has(d) {
		return errors.New(errors.ErrCodeInvalidInput, "%s routing is not enabled for %s", d, path)
	}

	store, err := c.newCache(opts.noCache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	key := cache.NewDefaultKeyer().GraphKey(cache.Hash(l.data), cache.GraphKeyOpts{
		Version:    buildinfo.CacheVersion(),
		Params:     l.params,
		Discipline: d.String(),
		Format:     format,
	})

	data, ok, err := store.Get(ctx, key)
	if err != nil {
		c.Logger.Warn("cache read failed", "err", err)
	}
	if !ok {
		if data, err = c.renderGraph(ctx, l, d, format); err != nil {
			return err
		}
		if err := store.Set(ctx, key, data, l.cfg.Cache.TTL.Duration); err != nil {
			c.Logger.Warn("cache write failed", "err", err)
		}
	} else {
		c.Logger.Debug("cache hit", "scene", path, "discipline", d)
	}

	if opts.output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", opts.output)
	}
	printSuccess("Rendered %s graph", d)
	printFile(opts.output)
	return nil
}

func (c *CLI) renderGraph(ctx context.Context, l *loaded, d router.RoutingType, format string) ([]byte, error) {
	r, _, err := c.run(l)
	if err != nil {
		return nil, err
	}
	g := r.Graph(d)
	if g == nil {
		return nil, errors.New(errors.ErrCodeInternal, "%s graph missing", d)
	}
	st := g.Stats()
	c.Logger.Info("routing graph", "discipline", d, "nodes", st.Nodes, "edges", st.Edges)

	dot := g.ToDOT()
	if format == graphFormatDOT {
		return []byte(dot), nil
	}

	spinner := newSpinnerWithContext(ctx, "Rendering SVG...")
	spinner.Start()
	svg, err := visgraph.RenderSVG(ctx, dot)
	spinner.Stop()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s graph", d)
	}
	return svg, nil
}
