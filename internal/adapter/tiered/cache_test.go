package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agent0/runner/internal/adapter/tiered"
)

// memCache is a simple in-memory cache for testing.
type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestTiered_L1Hit(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	// Set only in L1
	l1.data["mcp.tools.s1"] = []byte(`[{"name":"t1"}]`)

	val, found, err := c.Get(ctx, "mcp.tools.s1")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L1 hit")
	}
	if string(val) != `[{"name":"t1"}]` {
		t.Fatalf("expected val1, got %s", val)
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	// Set only in L2
	l2.data["mcp.tools.s2"] = []byte(`[{"name":"t2"}]`)

	val, found, err := c.Get(ctx, "mcp.tools.s2")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L2 hit")
	}
	if string(val) != `[{"name":"t2"}]` {
		t.Fatalf("expected val2, got %s", val)
	}

	// Verify backfill into L1
	l1Val, ok := l1.data["mcp.tools.s2"]
	if !ok {
		t.Fatal("expected L1 backfill")
	}
	if string(l1Val) != `[{"name":"t2"}]` {
		t.Fatalf("expected backfilled val2, got %s", l1Val)
	}
}

func TestTiered_Miss(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestTiered_SetBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "mcp.tools.s3", []byte(`[{"name":"t3"}]`), time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, ok := l1.data["mcp.tools.s3"]; !ok {
		t.Fatal("expected catalog 3 in L1")
	}
	if _, ok := l2.data["mcp.tools.s3"]; !ok {
		t.Fatal("expected catalog 3 in L2")
	}
}

func TestTiered_DeleteBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	l1.data["mcp.tools.s4"] = []byte(`[{"name":"t4"}]`)
	l2.data["mcp.tools.s4"] = []byte(`[{"name":"t4"}]`)

	if err := c.Delete(ctx, "mcp.tools.s4"); err != nil {
		t.Fatal(err)
	}

	if _, ok := l1.data["mcp.tools.s4"]; ok {
		t.Fatal("expected catalog 4 deleted from L1")
	}
	if _, ok := l2.data["mcp.tools.s4"]; ok {
		t.Fatal("expected catalog 4 deleted from L2")
	}
}

// downCache fails every operation, like an unreachable NATS KV bucket.
type downCache struct{}

var errDown = errors.New("l2 down")

func (downCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errDown }
func (downCache) Set(context.Context, string, []byte, time.Duration) error {
	return errDown
}
func (downCache) Delete(context.Context, string) error { return errDown }

func TestTiered_L2FailureDegradesToL1(t *testing.T) {
	l1 := newMemCache()
	c := tiered.New(l1, downCache{}, 5*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "mcp.tools.m1", []byte("catalog"), time.Minute); err != nil {
		t.Fatalf("Set must tolerate L2 failure: %v", err)
	}
	val, found, err := c.Get(ctx, "mcp.tools.m1")
	if err != nil || !found || string(val) != "catalog" {
		t.Fatalf("expected L1 hit, got %q %v %v", val, found, err)
	}
	if _, found, err := c.Get(ctx, "other"); err != nil || found {
		t.Fatalf("L2 failure must read as a miss, got %v %v", found, err)
	}
	if err := c.Delete(ctx, "mcp.tools.m1"); err != nil {
		t.Fatalf("Delete must tolerate L2 failure: %v", err)
	}
}
