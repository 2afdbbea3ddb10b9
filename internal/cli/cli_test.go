package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/router"
	"github.com/matzehuels/detour/pkg/scene"
)

const testScene = `
[params]
routing = ["orthogonal", "polyline"]

[[steps]]
name = "place"

[[steps.ops]]
op = "add_shape"
id = "a"
rect = [0.0, 0.0, 100.0, 100.0]

[[steps.ops]]
op = "add_shape"
id = "b"
rect = [300.0, 0.0, 400.0, 100.0]

[[steps.ops]]
op = "add_connector"
id = "c1"
src = { shape = "a" }
dst = { shape = "b" }

[[steps]]
name = "move"

[[steps.ops]]
op = "move_shape"
id = "b"
dy = 150.0
`

// setup isolates the config and cache directories and writes the test
// scene. It returns a CLI that logs nowhere and the scene path.
func setup(t *testing.T) (*CLI, string) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(testScene), 0o644))
	return New(io.Discard, LogInfo), path
}

func execute(t *testing.T, c *CLI, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================
// Config
// =============================================================================

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[params]
routing = ["polyline"]
shape_buffer = 8.0

[server]
addr = ":9000"
session_ttl = "5m"

[cache]
ttl = "1h"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Server.SessionTTL.Duration)
	assert.Equal(t, time.Hour, cfg.Cache.TTL.Duration)
	assert.Equal(t, DefaultConfig().Server.MaxSessions, cfg.Server.MaxSessions)

	p, err := cfg.Params.Apply(router.Defaults())
	require.NoError(t, err)
	assert.Equal(t, router.Polyline, p.Routing)
	assert.Equal(t, 8.0, p.ShapeBuffer)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "[server]\nport = 80\n",
		"bad duration":   "[cache]\nttl = \"soon\"\n",
		"bad discipline": "[params]\nrouting = [\"diagonal\"]\n",
		"not toml":       "[params\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadConfig(path)
			require.Error(t, err)
		})
	}
}

func TestConfigShow(t *testing.T) {
	c, _ := setup(t)
	out, err := execute(t, c, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, `session_ttl = "30m0s"`)
}

// =============================================================================
// route
// =============================================================================

func TestRouteCaches(t *testing.T) {
	c, path := setup(t)
	outPath := filepath.Join(t.TempDir(), "routes.json")

	_, err := execute(t, c, "route", path, "-q", "-o", outPath)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Counters.Snapshot()["cache_misses"])
	assert.Equal(t, int64(1), c.Counters.Snapshot()["cache_sets"])

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	snap, err := scene.ReadSnapshotJSON(f)
	require.NoError(t, err)
	r, ok := snap.Route("c1")
	require.True(t, ok)
	assert.True(t, r.OK())
	assert.Equal(t, "orthogonal", r.Discipline)
	assert.GreaterOrEqual(t, len(r.Points), 2)

	_, err = execute(t, c, "route", path, "-q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Counters.Snapshot()["cache_hits"])
}

func TestRouteParamsChangeKey(t *testing.T) {
	c, path := setup(t)

	_, err := execute(t, c, "route", path, "-q")
	require.NoError(t, err)
	_, err = execute(t, c, "route", path, "-q", "--buffer", "10")
	require.NoError(t, err)

	assert.Equal(t, int64(0), c.Counters.Snapshot()["cache_hits"])
	assert.Equal(t, int64(2), c.Counters.Snapshot()["cache_misses"])
}

func TestRouteNoCache(t *testing.T) {
	c, path := setup(t)

	for i := 0; i < 2; i++ {
		_, err := execute(t, c, "route", path, "-q", "--no-cache")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(0), c.Counters.Snapshot()["cache_sets"])
	assert.Equal(t, int64(4), c.Counters.Snapshot()["commits"])
}

func TestCacheClear(t *testing.T) {
	c, path := setup(t)

	_, err := execute(t, c, "route", path, "-q")
	require.NoError(t, err)
	dir, err := execute(t, c, "cache", "path")
	require.NoError(t, err)
	n, err := countEntries(strings.TrimSpace(dir))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = execute(t, c, "cache", "clear")
	require.NoError(t, err)
	n, err = countEntries(strings.TrimSpace(dir))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = execute(t, c, "route", path, "-q")
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Counters.Snapshot()["cache_hits"])
	assert.Equal(t, int64(2), c.Counters.Snapshot()["cache_misses"])
}

func TestRouteUsesConfigTTL(t *testing.T) {
	c, path := setup(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[cache]\nttl = \"1ns\"\n"), 0o644))

	_, err := execute(t, c, "route", path, "-q", "--config", cfgPath)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = execute(t, c, "route", path, "-q", "--config", cfgPath)
	require.NoError(t, err)

	// The entry written with the configured lifetime has expired.
	assert.Equal(t, int64(0), c.Counters.Snapshot()["cache_hits"])
	assert.Equal(t, int64(2), c.Counters.Snapshot()["cache_misses"])
}

func TestRouteBadConfig(t *testing.T) {
	c, path := setup(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[cache]\nttl = \"soon\"\n"), 0o644))

	_, err := execute(t, c, "route", path, "-q", "--config", cfgPath)
	require.Error(t, err)
	assert.Zero(t, c.Counters.Snapshot()["cache_sets"])
}

func TestRouteErrors(t *testing.T) {
	c, _ := setup(t)

	_, err := execute(t, c, "route", filepath.Join(t.TempDir(), "scene.xml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[[steps]]\n[[steps.ops]]\nop = \"fly\"\n"), 0o644))
	_, err = execute(t, c, "route", bad, "-q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat), "got %v", err)
}

// =============================================================================
// graph
// =============================================================================

func TestGraphDOT(t *testing.T) {
	c, path := setup(t)

	out, err := execute(t, c, "graph", path, "--no-cache")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph "), "got %q", out)

	out, err = execute(t, c, "graph", path, "-d", "polyline", "--no-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "--")
}

func TestGraphErrors(t *testing.T) {
	c, path := setup(t)

	_, err := execute(t, c, "graph", path, "-o", "graph.png")
	require.Error(t, err)

	_, err = execute(t, c, "graph", path, "-d", "diagonal")
	require.Error(t, err)

	_, err = execute(t, c, "graph", path, "-d", "polyline", "--routing", "orthogonal")
	require.Error(t, err)
}

func TestGraphFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
		err  bool
	}{
		{"", graphFormatDOT, false},
		{"out.dot", graphFormatDOT, false},
		{"out.GV", graphFormatDOT, false},
		{"out.svg", graphFormatSVG, false},
		{"out.pdf", "", true},
	}
	for _, tt := range tests {
		got, err := graphFormat(tt.path)
		if tt.err {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

// =============================================================================
// replay
// =============================================================================

func newTestReplay(t *testing.T) replayModel {
	t.Helper()
	s, err := scene.DecodeBytes([]byte(testScene), scene.FormatTOML)
	require.NoError(t, err)
	params, err := s.Params.Apply(router.Defaults())
	require.NoError(t, err)
	r, err := router.New(params)
	require.NoError(t, err)
	return newReplayModel("scene.toml", s, r)
}

func press(m replayModel, key string) (replayModel, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(replayModel), cmd
}

func TestReplayModelSteps(t *testing.T) {
	m := newTestReplay(t)
	assert.Contains(t, m.View(), "step 0 of 2")
	assert.Empty(t, m.snap.Connectors)

	m, cmd := press(m, "n")
	assert.Nil(t, cmd)
	require.Len(t, m.results, 1)
	assert.Equal(t, "place", m.results[0].Name)
	assert.Len(t, m.snap.Connectors, 1)

	view := m.View()
	assert.Contains(t, view, "step 1 of 2")
	assert.Contains(t, view, "add_connector")

	before, _ := m.snap.Route("c1")
	m, _ = press(m, " ")
	require.True(t, m.finished())
	after, _ := m.snap.Route("c1")
	assert.NotEqual(t, before.Points, after.Points)
	assert.Contains(t, m.View(), "All steps committed")

	// Stepping past the end is a no-op.
	m, _ = press(m, "n")
	assert.Len(t, m.results, 2)
}

func TestReplayModelAll(t *testing.T) {
	m := newTestReplay(t)
	m, _ = press(m, "a")
	assert.True(t, m.finished())
	assert.Len(t, m.results, 2)
}

func TestReplayModelQuit(t *testing.T) {
	for _, key := range []string{"q", "esc"} {
		m := newTestReplay(t)
		_, cmd := press(m, key)
		require.NotNil(t, cmd, key)
		assert.IsType(t, tea.QuitMsg{}, cmd(), key)
	}
}

func TestReplayPlain(t *testing.T) {
	c, path := setup(t)

	out, err := execute(t, c, "replay", path, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "Step 1: place")
	assert.Contains(t, out, "Step 2: move")
	assert.Contains(t, out, "move_shape")
}

func TestStepRowsReportsRejections(t *testing.T) {
	s, err := scene.DecodeBytes([]byte(`
[[steps]]
[[steps.ops]]
op = "add_shape"
id = "a"
rect = [0.0, 0.0, 100.0, 100.0]

[[steps.ops]]
op = "delete_shape"
id = "ghost"
`), scene.FormatTOML)
	require.NoError(t, err)
	r, err := router.New(router.Defaults())
	require.NoError(t, err)

	rows := stepRows(scene.RunStep(s, 0, r))
	require.NotEmpty(t, rows)
	var failed int
	for _, row := range rows {
		if row.failed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}
