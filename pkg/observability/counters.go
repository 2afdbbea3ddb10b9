package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// Counters implements RouterHooks, CacheHooks and HTTPHooks by counting
// events. It is safe for concurrent use and is what `detour serve` exposes
// at /metrics.
type Counters struct {
	commits      atomic.Int64
	rerouted     atomic.Int64
	failed       atomic.Int64
	searches     atomic.Int64
	expanded     atomic.Int64
	nudges       atomic.Int64
	graphUpdates atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	cacheSets    atomic.Int64
	requests     atomic.Int64
	serverErrors atomic.Int64
	commitNanos  atomic.Int64
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) OnCommitStart(int) {}

func (c *Counters) OnGraphUpdate(string, int, int, time.Duration) {
	c.graphUpdates.Add(1)
}

func (c *Counters) OnSearch(_ string, expanded int, _ time.Duration, _ error) {
	c.searches.Add(1)
	c.expanded.Add(int64(expanded))
}

func (c *Counters) OnNudge(int, time.Duration) {
	c.nudges.Add(1)
}

func (c *Counters) OnCommitComplete(rerouted, failed int, d time.Duration) {
	c.commits.Add(1)
	c.rerouted.Add(int64(rerouted))
	c.failed.Add(int64(failed))
	c.commitNanos.Add(int64(d))
}

func (c *Counters) OnCacheHit(context.Context, string)      { c.cacheHits.Add(1) }
func (c *Counters) OnCacheMiss(context.Context, string)     { c.cacheMisses.Add(1) }
func (c *Counters) OnCacheSet(context.Context, string, int) { c.cacheSets.Add(1) }

func (c *Counters) OnRequest(context.Context, string, string) {
	c.requests.Add(1)
}

func (c *Counters) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	if status >= 500 {
		c.serverErrors.Add(1)
	}
}

// Snapshot returns the current values keyed by metric name.
func (c *Counters) Snapshot() map[string]int64 {
	return map[string]int64{
		"commits":            c.commits.Load(),
		"rerouted":           c.rerouted.Load(),
		"failed":             c.failed.Load(),
		"searches":           c.searches.Load(),
		"expanded":           c.expanded.Load(),
		"nudges":             c.nudges.Load(),
		"graph_updates":      c.graphUpdates.Load(),
		"cache_hits":         c.cacheHits.Load(),
		"cache_misses":       c.cacheMisses.Load(),
		"cache_sets":         c.cacheSets.Load(),
		"requests":           c.requests.Load(),
		"server_errors":      c.serverErrors.Load(),
		"commit_duration_ns": c.commitNanos.Load(),
	}
}
