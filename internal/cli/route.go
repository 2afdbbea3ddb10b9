package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/detour/pkg/buildinfo"
	"github.com/matzehuels/detour/pkg/cache"
	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/router"
	"github.com/matzehuels/detour/pkg/scene"
)

// paramFlags are the router parameters settable on the command line. Only
// flags the user set override the scene and the config file.
type paramFlags struct {
	routing               string
	shapeBuffer           float64
	segmentPenalty        float64
	idealNudging          float64
	nudgeShapeSegments    bool
	nudgeTouchingColinear bool
}

func (f *paramFlags) register(cmd *cobra.Command) {
	d := router.Defaults()
	cmd.Flags().StringVar(&f.routing, "routing", "", "enabled disciplines: orthogonal, polyline (comma-separated)")
	cmd.Flags().Float64Var(&f.shapeBuffer, "buffer", d.ShapeBuffer, "clearance kept around shapes")
	cmd.Flags().Float64Var(&f.segmentPenalty, "segment-penalty", d.SegmentPenalty, "cost added per bend")
	cmd.Flags().Float64Var(&f.idealNudging, "nudging", d.IdealNudging, "distance between separated segments")
	cmd.Flags().BoolVar(&f.nudgeShapeSegments, "nudge-shape-segments", false, "allow nudging segments attached to shapes")
	cmd.Flags().BoolVar(&f.nudgeTouchingColinear, "nudge-touching", false, "separate colinear segments that only touch")
}

// params returns the flags the user set.
func (f *paramFlags) params(cmd *cobra.Command) scene.Params {
	var p scene.Params
	changed := cmd.Flags().Changed
	if changed("routing") {
		p.Routing = strings.Split(f.routing, ",")
	}
	if changed("buffer") {
		p.ShapeBuffer = &f.shapeBuffer
	}
	if changed("segment-penalty") {
		p.SegmentPenalty = &f.segmentPenalty
	}
	if changed("nudging") {
		p.IdealNudging = &f.idealNudging
	}
	if changed("nudge-shape-segments") {
		p.NudgeShapeSegments = &f.nudgeShapeSegments
	}
	if changed("nudge-touching") {
		p.NudgeTouchingColinear = &f.nudgeTouchingColinear
	}
	return p
}

// loaded is a decoded scene with its raw bytes, effective parameters and
// the configuration they were resolved against.
type loaded struct {
	path   string
	data   []byte
	scene  *scene.Scene
	params router.Parameters
	cfg    *Config
}

// loadScene reads a scene file and resolves its parameters against the
// config file and the command-line flags.
func (c *CLI) loadScene(path string, flags scene.Params) (*loaded, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	format, err := scene.FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	s, err := scene.DecodeBytes(data, format)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "%s", path)
	}
	cfg, err := c.loadedConfig()
	if err != nil {
		return nil, err
	}
	params, err := cfg.Params.Merge(s.Params).Merge(flags).Apply(router.Defaults())
	if err != nil {
		return nil, err
	}
	return &loaded{path: path, data: data, scene: s, params: params, cfg: cfg}, nil
}

// run commits every step of the scene on a new router.
func (c *CLI) run(l *loaded) (*router.Router, []scene.StepResult, error) {
	r, err := router.New(l.params, router.WithLogger(c.Logger), router.WithHooks(c.Counters))
	if err != nil {
		return nil, nil, err
	}
	var results []scene.StepResult
	err = scene.Run(l.scene, r, func(res scene.StepResult) error {
		results = append(results, res)
		c.Logger.Debug("step committed",
			"step", res.Index,
			"name", res.Name,
			"rerouted", len(res.Report.Rerouted),
			"failed", len(res.Report.Failed))
		for _, rj := range res.Rejected {
			c.Logger.Warn("operation rejected", "step", res.Index, "op", rj.Index, "err", errors.UserMessage(rj.Err))
		}
		for _, it := range res.Report.ItemErrors() {
			c.Logger.Warn("operation failed", "step", res.Index, "op", it.Op, "id", it.ID, "err", errors.UserMessage(it.Err))
		}
		return nil
	})
	return r, results, err
}

// =============================================================================
// route
// =============================================================================

type routeOpts struct {
	output  string
	noCache bool
	quiet   bool
	flags   paramFlags
}

// routeCommand creates the route command.
func (c *CLI) routeCommand() *cobra.Command {
	var opts routeOpts

	cmd := &cobra.Command{
		Use:   "route [scene]",
		Short: "Route the connectors of a scene",
		Long: `Route the connectors of a scene.

The route command commits every transaction of a scene file (TOML, YAML or
JSON) and prints the final routes. Results are cached by scene contents,
parameters and build version; use --no-cache to recompute.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRoute(cmd.Context(), args[0], opts, opts.flags.params(cmd))
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the routes as JSON to this file")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the route table")
	opts.flags.register(cmd)

	return cmd
}

func (c *CLI) runRoute(ctx context.Context, path string, opts routeOpts, flags scene.Params) error {
	l, err := c.loadScene(path, flags)
	if err != nil {
		return err
	}

	store, err := c.newCache(opts.noCache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	snap, cached, err := c.routeCached(ctx, store, l)
	if err != nil {
		return err
	}

	if !opts.quiet {
		printRouteTable(snap)
	}
	printRouteSummary(snap, cached)

	if opts.output != "" {
		if err := writeSnapshot(opts.output, snap); err != nil {
			return err
		}
		printFile(opts.output)
	}
	if n := len(snap.Failed()); n > 0 {
		return errors.New(errors.ErrCodeUnroutable, "%d of %d connectors could not be routed", n, len(snap.Connectors))
	}
	return nil
}

// routeCached returns the snapshot of the scene from the cache, computing
// and storing it on a miss.
func (c *CLI) routeCached(ctx context.Context, store cache.Cache, l *loaded) (*scene.Snapshot, bool, error) {
	key := cache.NewDefaultKeyer().ResultKey(cache.Hash(l.data), cache.ResultKeyOpts{
		Version: buildinfo.CacheVersion(),
		Params:  l.params,
	})

	if data, ok, err := store.Get(ctx, key); err != nil {
		c.Logger.Warn("cache read failed", "err", err)
	} else if ok {
		var snap scene.Snapshot
		if err := snap.UnmarshalBinary(data); err == nil {
			c.Logger.Debug("cache hit", "scene", l.path)
			return &snap, true, nil
		}
		c.Logger.Debug("discarding unreadable cache entry", "key", key)
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Routing %s...", l.path))
	spinner.Start()
	prog := newProgress(c.Logger)
	r, results, err := c.run(l)
	if err != nil {
		spinner.StopWithError("Routing failed")
		return nil, false, err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Committed %d transactions", len(results)))

	snap := scene.Take(r)
	data, err := snap.MarshalBinary()
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "encode routes")
	}
	if err := store.Set(ctx, key, data, l.cfg.Cache.TTL.Duration); err != nil {
		c.Logger.Warn("cache write failed", "err", err)
	}
	return snap, false, nil
}

func writeSnapshot(path string, snap *scene.Snapshot) error {
	if err := errors.ValidatePath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	if err := snap.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
