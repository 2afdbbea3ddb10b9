package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/detour/pkg/observability"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNull()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get = %q, %v, %v; want miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Fatal("empty cache reported a hit")
	}
	if err := c.Set(ctx, "k", []byte("routes"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "routes" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("hit after Delete")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry served")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Errorf("expired entry not removed: %v", err)
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := c.path("k")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		if err := c.Set(ctx, fmt.Sprint(i), []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, err := os.ReadDir(c.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%d entries left after Clear", len(entries))
	}
}

func TestWithHooks(t *testing.T) {
	ctx := context.Background()
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	counters := observability.NewCounters()
	c := WithHooks(fc, counters)

	c.Get(ctx, "k")
	c.Set(ctx, "k", []byte("v"), 0)
	c.Get(ctx, "k")

	snap := counters.Snapshot()
	for name, want := range map[string]int64{"cache_hits": 1, "cache_misses": 1, "cache_sets": 1} {
		if snap[name] != want {
			t.Errorf("%s = %d, want %d", name, snap[name], want)
		}
	}
	if WithHooks(fc, nil) != Cache(fc) {
		t.Error("nil hooks should return the cache unchanged")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length = %d, want 64", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	type params struct{ Buffer float64 }
	k := NewDefaultKeyer()

	tests := []struct {
		name string
		a, b string
	}{
		{
			"version",
			k.ResultKey("scene", ResultKeyOpts{Version: "v1", Params: params{4}}),
			k.ResultKey("scene", ResultKeyOpts{Version: "v2", Params: params{4}}),
		},
		{
			"params",
			k.ResultKey("scene", ResultKeyOpts{Version: "v1", Params: params{4}}),
			k.ResultKey("scene", ResultKeyOpts{Version: "v1", Params: params{8}}),
		},
		{
			"format",
			k.GraphKey("scene", GraphKeyOpts{Discipline: "orthogonal", Format: "svg"}),
			k.GraphKey("scene", GraphKeyOpts{Discipline: "orthogonal", Format: "dot"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a == tt.b {
				t.Errorf("keys should differ: %s", tt.a)
			}
		})
	}

	same := k.ResultKey("scene", ResultKeyOpts{Version: "v1", Params: params{4}})
	if same != k.ResultKey("scene", ResultKeyOpts{Version: "v1", Params: params{4}}) {
		t.Error("ResultKey should be deterministic")
	}
	if !strings.HasPrefix(same, "result:") {
		t.Errorf("unexpected key %s", same)
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(nil, "v2/")
	key := scoped.GraphKey("scene", GraphKeyOpts{})
	if want := "v2/" + NewDefaultKeyer().GraphKey("scene", GraphKeyOpts{}); key != want {
		t.Errorf("GraphKey = %s, want %s", key, want)
	}
}

func ExampleFileCache() {
	dir, _ := os.MkdirTemp("", "detour-cache")
	defer os.RemoveAll(dir)

	c, _ := NewFileCache(dir)
	ctx := context.Background()
	_ = c.Set(ctx, "result:abc", []byte(`{"routes":{}}`), 0)
	data, ok, _ := c.Get(ctx, "result:abc")
	fmt.Println(ok, string(data))
	// Output: true {"routes":{}}
}
