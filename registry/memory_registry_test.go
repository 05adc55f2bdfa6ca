package registry

import (
	"context"
	"testing"
	"time"

	"ipc-courier/internal/testutil"
)

func TestMemoryRegisterAndDiscover(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	ep1 := Endpoint{Path: "/tmp/a.sock", Weight: 10, Version: "1.0"}
	ep2 := Endpoint{Path: "/tmp/b.sock", Weight: 5, Version: "1.0"}

	if err := reg.Register(ctx, "demo", ep1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, "demo", ep2, 10); err != nil {
		t.Fatal(err)
	}
	// Re-registering a path replaces the entry instead of duplicating it.
	ep1.Weight = 20
	if err := reg.Register(ctx, "demo", ep1, 10); err != nil {
		t.Fatal(err)
	}

	endpoints, err := reg.Discover(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("expect 2 endpoints, got %d", len(endpoints))
	}

	if err := reg.Deregister(ctx, "demo", ep2.Path); err != nil {
		t.Fatal(err)
	}
	endpoints, _ = reg.Discover(ctx, "demo")
	if len(endpoints) != 1 || endpoints[0].Path != ep1.Path || endpoints[0].Weight != 20 {
		t.Fatalf("unexpected endpoints after deregister: %+v", endpoints)
	}
}

func TestMemoryWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reg := NewMemoryRegistry()

	updates := reg.Watch(ctx, "demo")
	reg.Register(context.Background(), "demo", Endpoint{Path: "/tmp/a.sock"}, 10)

	got := testutil.RequireReceive(t, updates, time.Second, "first watch update")
	if len(got) != 1 || got[0].Path != "/tmp/a.sock" {
		t.Fatalf("unexpected update: %+v", got)
	}

	cancel()
	for range updates {
	}
}
