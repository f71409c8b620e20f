package builder

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/park285/Cheese-Tournament/internal/config"
	"github.com/park285/Cheese-Tournament/internal/pairing"
	"github.com/park285/Cheese-Tournament/internal/registry"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/tournament"
)

func TestLocalHostResultsReachRegistry(t *testing.T) {
	ctx := context.Background()
	cfg := &config.AppConfig{StoreDriver: config.StoreMemory, GameHostMode: config.HostLocal, MaxChatLines: 10}
	d, err := New(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close(ctx) })
	if d.Local == nil || d.Remote != nil || d.Feed != nil {
		t.Fatalf("unexpected wiring %+v", d)
	}

	tr, err := d.Registry.Create(ctx, registry.CreateRequest{Variant: "n", System: pairing.Arena, Base: 1, Minutes: 30})
	if err != nil {
		t.Fatal(err)
	}
	for _, uid := range []string{"w", "b"} {
		if err := d.Registry.Join(ctx, tr.ID(), tournament.Entry{UserID: uid, Rating: 1500}); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Registry.Start(ctx, tr.ID()); err != nil {
		t.Fatal(err)
	}
	round, err := d.Registry.NextRound(ctx, tr.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(round.Games) != 1 {
		t.Fatalf("round %+v", round)
	}
	g := round.Games[0]
	if err := d.Local.Resign(ctx, g.ID, g.Black); err != nil {
		t.Fatal(err)
	}
	if p, _ := tr.Player(g.White); p.Points != 2 {
		t.Fatalf("winner has %d points", p.Points)
	}
	if len(tr.Ongoing()) != 0 {
		t.Fatal("game still ongoing")
	}
}

func TestRedisStoreSharesClient(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := &config.AppConfig{
		StoreDriver:  config.StoreRedis,
		RedisURL:     "redis://" + mr.Addr(),
		GameHostMode: config.HostLocal,
	}
	d, err := New(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Store.(*storage.RedisAdapter); !ok {
		t.Fatalf("store is %T", d.Store)
	}
	if _, err := d.Registry.Create(ctx, registry.CreateRequest{Variant: "n"}); err != nil {
		t.Fatal(err)
	}
	if len(mr.Keys()) == 0 {
		t.Fatal("nothing was written to redis")
	}
	if err := d.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestRemoteModeWithoutFeedURL(t *testing.T) {
	cfg := &config.AppConfig{StoreDriver: config.StoreMemory, GameHostMode: config.HostRemote, GameHostURL: "http://127.0.0.1:1"}
	d, err := New(context.Background(), cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if d.Remote == nil || d.Local != nil || d.Feed != nil {
		t.Fatalf("unexpected wiring %+v", d)
	}
}
