// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Hooks are passed to the components that
// emit events (routers, caches, the HTTP server) when they are constructed;
// there is no process-wide registry, so independent routers can report to
// independent sinks.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Provide [Counters], an in-memory implementation of every interface
//
// # Usage
//
// Construct hooks and hand them to the emitting component:
//
//	counters := observability.NewCounters()
//	r, err := router.New(params, router.WithHooks(counters))
//	// ... commit transactions ...
//	fmt.Println(counters.Snapshot()["commits"])
package observability

import (
	"context"
	"time"
)

// =============================================================================
// Router Hooks
// =============================================================================

// RouterHooks receives events from a router commit.
type RouterHooks interface {
	// OnCommitStart is called before a non-empty transaction is applied.
	OnCommitStart(pending int)

	// OnGraphUpdate is called after a routing graph was brought up to date.
	OnGraphUpdate(discipline string, nodes, edges int, duration time.Duration)

	// OnSearch is called after a connector was routed.
	OnSearch(connector string, expanded int, duration time.Duration, err error)

	// OnNudge is called after the nudging pass.
	OnNudge(connectors int, duration time.Duration)

	// OnCommitComplete is called when the commit finished.
	OnCommitComplete(rerouted, failed int, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP API.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records the response sent for a request.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRouterHooks is a no-op implementation of RouterHooks.
type NoopRouterHooks struct{}

func (NoopRouterHooks) OnCommitStart(int)                             {}
func (NoopRouterHooks) OnGraphUpdate(string, int, int, time.Duration) {}
func (NoopRouterHooks) OnSearch(string, int, time.Duration, error)    {}
func (NoopRouterHooks) OnNudge(int, time.Duration)                    {}
func (NoopRouterHooks) OnCommitComplete(int, int, time.Duration)      {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}
