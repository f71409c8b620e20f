package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Tournament/internal/metrics"
	"github.com/park285/Cheese-Tournament/internal/movecodec"
	"github.com/park285/Cheese-Tournament/internal/pairing"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/tournament"
	"github.com/park285/Cheese-Tournament/internal/variant"
)

var t0 = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingStarter struct {
	mu    sync.Mutex
	games []storage.PairingRecord
}

func (s *recordingStarter) StartGame(_ context.Context, rec storage.PairingRecord, _ variant.Descriptor, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = append(s.games, rec)
	return nil
}

func (s *recordingStarter) with(white string) (storage.PairingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.White == white {
			return g, true
		}
	}
	return storage.PairingRecord{}, false
}

// countingStore counts tournament header loads.
type countingStore struct {
	storage.Adapter
	loads atomic.Int32
}

func (s *countingStore) LoadTournament(ctx context.Context, id string) (*storage.TournamentRecord, error) {
	s.loads.Add(1)
	return s.Adapter.LoadTournament(ctx, id)
}

// failingStore rejects pairing writes while fail is set.
type failingStore struct {
	storage.Adapter
	fail atomic.Bool
}

func (s *failingStore) UpsertPairing(ctx context.Context, rec storage.PairingRecord) error {
	if s.fail.Load() {
		return errors.New("disk full")
	}
	return s.Adapter.UpsertPairing(ctx, rec)
}

func newRegistry(store storage.Adapter, c *clock, starter GameStarter) *Registry {
	return New(store, Options{Starter: starter, Now: c.Now})
}

func createArena(t *testing.T, r *Registry) *tournament.Tournament {
	t.Helper()
	tr, err := r.Create(context.Background(), CreateRequest{Variant: "n", System: pairing.Arena, Base: 3, Inc: 2, Minutes: 60, CreatedBy: "host"})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

// playRound starts the tournament, pairs A-B and C-D, then records
// A beating B and a draw between C and D.
func playRound(t *testing.T, r *Registry, c *clock, starter *recordingStarter, tid string) {
	t.Helper()
	ctx := context.Background()
	for _, uid := range []string{"A", "B", "C", "D"} {
		if err := r.Join(ctx, tid, tournament.Entry{UserID: uid, Rating: 1500}); err != nil {
			t.Fatalf("join %s: %v", uid, err)
		}
	}
	c.Advance(5 * time.Minute)
	if err := r.Start(ctx, tid); err != nil {
		t.Fatal(err)
	}
	c.Advance(time.Minute)
	round, err := r.NextRound(ctx, tid)
	if err != nil {
		t.Fatal(err)
	}
	if len(round.Games) != 2 {
		t.Fatalf("expected two games, got %+v", round)
	}
	ab, ok := starter.with("A")
	if !ok {
		t.Fatal("A was not handed to the starter")
	}
	cd, ok := starter.with("C")
	if !ok {
		t.Fatal("C was not handed to the starter")
	}
	// tournament id is resolved through the game index
	if err := r.RecordResult(ctx, "", tournament.GameData{ID: ab.ID, Result: movecodec.WhiteWins}); err != nil {
		t.Fatal(err)
	}
	if err := r.RecordResult(ctx, tid, tournament.GameData{ID: cd.ID, Result: movecodec.Draw}); err != nil {
		t.Fatal(err)
	}
}

func standingIDs(entries []tournament.LeaderboardEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}

func TestCreateAppliesDefaults(t *testing.T) {
	c := &clock{now: t0}
	store := storage.NewMemoryAdapter()
	r := newRegistry(store, c, nil)

	tr, err := r.Create(context.Background(), CreateRequest{Variant: "n", System: pairing.Swiss, FEN: "8/8/8/8/8/8/8/K6k w - - 0 1"})
	if err != nil {
		t.Fatal(err)
	}
	p := tr.Params()
	if len(p.ID) != 8 {
		t.Fatalf("id %q", p.ID)
	}
	if p.BeforeStart != defaultBeforeStart || p.Minutes != defaultMinutes {
		t.Fatalf("defaults not applied: %+v", p)
	}
	if !p.StartsAt.Equal(t0.Add(defaultBeforeStart * time.Minute)) {
		t.Fatalf("startsAt %v", p.StartsAt)
	}
	if p.Rated {
		t.Fatal("a custom start position is never rated")
	}
	if p.Name != p.Variant.DisplayName+" Swiss" {
		t.Fatalf("name %q", p.Name)
	}

	rec, err := store.LoadTournament(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != int(tournament.Created) || rec.System != int(pairing.Swiss) {
		t.Fatalf("stored %+v", rec)
	}
	if r.Len() != 1 {
		t.Fatalf("registered %d", r.Len())
	}

	if _, err := r.Create(context.Background(), CreateRequest{Variant: "¿"}); !errors.Is(err, variant.ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestPersistedStateSurvivesReload(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	store := storage.NewMemoryAdapter()
	starter := &recordingStarter{}
	r := newRegistry(store, c, starter)
	tid := createArena(t, r).ID()
	playRound(t, r, c, starter, tid)

	if err := r.AddChat(ctx, tid, storage.ChatRecord{User: "A", Message: "gg"}); err != nil {
		t.Fatal(err)
	}

	live, _ := r.Lookup(tid)
	fresh := newRegistry(store, c, nil)
	reloaded, err := fresh.Get(ctx, tid)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(live.Standings(0), reloaded.Standings(0)); diff != "" {
		t.Fatalf("standings differ after reload (-live +reloaded):\n%s", diff)
	}
	if got := standingIDs(reloaded.Standings(0)); !cmp.Equal(got, []string{"A", "C", "D", "B"}) {
		t.Fatalf("order %v", got)
	}
	if diff := cmp.Diff(live.Counters(), reloaded.Counters()); diff != "" {
		t.Fatalf("counters differ:\n%s", diff)
	}
	chat := reloaded.Chat()
	if len(chat) != 1 || chat[0].Message != "gg" || chat[0].Type != "lobbychat" {
		t.Fatalf("chat %+v", chat)
	}
}

func TestRecordResultContract(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	starter := &recordingStarter{}
	reg := prometheus.NewRegistry()
	r := New(storage.NewMemoryAdapter(), Options{Starter: starter, Now: c.Now, Metrics: metrics.New(reg)})
	tid := createArena(t, r).ID()
	playRound(t, r, c, starter, tid)

	ab, _ := starter.with("A")
	err := r.RecordResult(ctx, tid, tournament.GameData{ID: ab.ID, Result: movecodec.BlackWins})
	if !errors.Is(err, tournament.ErrResultAlreadyRecorded) {
		t.Fatalf("expected ErrResultAlreadyRecorded, got %v", err)
	}
	if err := r.RecordResult(ctx, "", tournament.GameData{ID: "nope", Result: movecodec.Draw}); !errors.Is(err, tournament.ErrUnknownGame) {
		t.Fatalf("expected ErrUnknownGame, got %v", err)
	}
	// a game-end push naming a known tournament but a game it never paired
	forged := tournament.GameData{ID: "forged", White: "A", Black: "B", Result: movecodec.WhiteWins}
	if err := r.RecordResult(ctx, tid, forged); !errors.Is(err, tournament.ErrUnknownGame) {
		t.Fatalf("expected ErrUnknownGame, got %v", err)
	}
	tr, _ := r.Lookup(tid)
	if a, _ := tr.Player("A"); a.Points != 2 || len(tr.Pairings()) != 2 {
		t.Fatalf("forged result was scored: A=%+v pairings=%d", a, len(tr.Pairings()))
	}
	// rejected results are only logged
	r.OnResult(ctx, tid, tournament.GameData{ID: ab.ID, Result: movecodec.Draw})

	m := r.metrics
	if got := testutil.ToFloat64(m.ResultsRecorded); got != 2 {
		t.Fatalf("results recorded = %v", got)
	}
	if got := testutil.ToFloat64(m.RoundsGenerated.WithLabelValues("arena")); got != 1 {
		t.Fatalf("rounds generated = %v", got)
	}
}

func TestConcurrentGetLoadsOnce(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	mem := storage.NewMemoryAdapter()
	tid := createArena(t, newRegistry(mem, c, nil)).ID()

	store := &countingStore{Adapter: mem}
	r := newRegistry(store, c, nil)

	var wg sync.WaitGroup
	got := make([]*tournament.Tournament, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := r.Get(ctx, tid)
			if err != nil {
				t.Error(err)
				return
			}
			got[i] = tr
		}()
	}
	wg.Wait()

	if n := store.loads.Load(); n != 1 {
		t.Fatalf("loaded %d times", n)
	}
	for _, tr := range got {
		if tr != got[0] {
			t.Fatal("callers received different instances")
		}
	}
}

func TestIntegrityFailureIsNotRegistered(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryAdapter()
	if err := store.UpsertTournament(ctx, storage.TournamentRecord{ID: "bad", Variant: "n", Status: 9, StartsAt: t0}); err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	r := New(store, Options{Metrics: metrics.New(reg)})

	if _, err := r.Get(ctx, "bad"); !errors.Is(err, tournament.ErrDataIntegrity) {
		t.Fatalf("expected ErrDataIntegrity, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatal("broken tournament was registered")
	}
	if got := testutil.ToFloat64(r.metrics.ReconstructionFailures.WithLabelValues("data_integrity")); got != 1 {
		t.Fatalf("failures = %v", got)
	}
	if _, err := r.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPreloadSkipsBrokenTournaments(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	store := storage.NewMemoryAdapter()
	seed := newRegistry(store, c, nil)
	createArena(t, seed)
	createArena(t, seed)
	if err := store.UpsertTournament(ctx, storage.TournamentRecord{ID: "bad", Variant: "¿", Status: int(tournament.Created), StartsAt: t0}); err != nil {
		t.Fatal(err)
	}

	r := newRegistry(store, c, nil)
	n, err := r.Preload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || r.Len() != 2 {
		t.Fatalf("preloaded %d, registered %d", n, r.Len())
	}
}

func TestTickDrivesLifecycle(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	starter := &recordingStarter{}
	r := newRegistry(storage.NewMemoryAdapter(), c, starter)
	tr := createArena(t, r)
	for _, uid := range []string{"A", "B"} {
		if err := r.Join(ctx, tr.ID(), tournament.Entry{UserID: uid, Rating: 1500}); err != nil {
			t.Fatal(err)
		}
	}

	r.Tick(ctx)
	if tr.Status() != tournament.Created {
		t.Fatal("started before StartsAt")
	}
	c.Advance(5 * time.Minute)
	r.Tick(ctx)
	if tr.Status() != tournament.Started {
		t.Fatalf("status %v", tr.Status())
	}
	r.Tick(ctx)
	ab, ok := starter.with("A")
	if !ok {
		t.Fatalf("no game started: %+v", starter.games)
	}
	if err := r.RecordResult(ctx, "", tournament.GameData{ID: ab.ID, Result: movecodec.WhiteWins}); err != nil {
		t.Fatal(err)
	}

	c.Advance(61 * time.Minute)
	r.Tick(ctx)
	if tr.Status() != tournament.Finished || tr.Winner() != "A" {
		t.Fatalf("status %v winner %q", tr.Status(), tr.Winner())
	}
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	store := storage.NewMemoryAdapter()
	starter := &recordingStarter{}
	r := newRegistry(store, c, starter)

	done := createArena(t, r).ID()
	playRound(t, r, c, starter, done)
	if err := r.Finish(ctx, done); err != nil {
		t.Fatal(err)
	}
	hourly, err := r.Create(ctx, CreateRequest{Variant: "n", Frequency: "hourly", CreatedBy: SystemAccount})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create(ctx, CreateRequest{Variant: "n", Frequency: "hourly", CreatedBy: "someone"}); err != nil {
		t.Fatal(err)
	}

	winners, err := r.Winners(ctx, "n", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(winners) != 1 || winners[0].ID != done || winners[0].Winner != "A" {
		t.Fatalf("winners %+v", winners)
	}
	scheduled, err := r.Scheduled(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(scheduled) != 1 || scheduled[0].ID != hourly.ID() {
		t.Fatalf("scheduled %+v", scheduled)
	}
	latest, err := r.LatestTournaments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest.Completed) != 1 || len(latest.Scheduled) != 2 || len(latest.Started) != 0 {
		t.Fatalf("latest %+v", latest)
	}
}

func TestRedisBackedReload(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := storage.NewRedisAdapter(rdb, storage.RedisOptions{})

	c := &clock{now: t0}
	starter := &recordingStarter{}
	r := newRegistry(store, c, starter)
	tid := createArena(t, r).ID()
	playRound(t, r, c, starter, tid)
	live, _ := r.Lookup(tid)

	fresh := newRegistry(store, c, nil)
	n, err := fresh.Preload(ctx)
	if err != nil || n != 1 {
		t.Fatalf("preload %d, %v", n, err)
	}
	reloaded, ok := fresh.Lookup(tid)
	if !ok {
		t.Fatal("tournament not preloaded")
	}
	if diff := cmp.Diff(live.Standings(0), reloaded.Standings(0)); diff != "" {
		t.Fatalf("standings differ (-live +reloaded):\n%s", diff)
	}
	if reloaded.Status() != tournament.Started {
		t.Fatalf("status %v", reloaded.Status())
	}
}

func TestTickAbortsUnpairableRoundBased(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	store := storage.NewMemoryAdapter()
	r := newRegistry(store, c, &recordingStarter{})
	var ids []string
	for _, sys := range []pairing.System{pairing.Swiss, pairing.RoundRobin} {
		tr, err := r.Create(ctx, CreateRequest{Variant: "n", System: sys, Rounds: 3})
		if err != nil {
			t.Fatal(err)
		}
		if err := r.Join(ctx, tr.ID(), tournament.Entry{UserID: "A", Rating: 1500}); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tr.ID())
	}
	for i := 0; i < 10; i++ {
		c.Advance(5 * time.Minute)
		r.Tick(ctx)
	}
	for _, id := range ids {
		tr, _ := r.Lookup(id)
		if tr.Status() != tournament.Aborted {
			t.Fatalf("%s: status %s", id, tr.Status())
		}
		rec, err := store.LoadTournament(ctx, id)
		if err != nil || rec.Status != int(tournament.Aborted) {
			t.Fatalf("%s: stored %+v, %v", id, rec, err)
		}
	}
	if n, err := newRegistry(store, c, nil).Preload(ctx); err != nil || n != 0 {
		t.Fatalf("preloaded %d, %v", n, err)
	}
}

func TestPersistFailureEvicts(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: t0}
	store := &failingStore{Adapter: storage.NewMemoryAdapter()}
	starter := &recordingStarter{}
	reg := prometheus.NewRegistry()
	r := New(store, Options{Starter: starter, Now: c.Now, Metrics: metrics.New(reg)})
	tid := createArena(t, r).ID()
	for _, uid := range []string{"A", "B"} {
		if err := r.Join(ctx, tid, tournament.Entry{UserID: uid, Rating: 1500}); err != nil {
			t.Fatal(err)
		}
	}
	c.Advance(5 * time.Minute)
	if err := r.Start(ctx, tid); err != nil {
		t.Fatal(err)
	}
	if _, err := r.NextRound(ctx, tid); err != nil {
		t.Fatal(err)
	}
	g, ok := starter.with("A")
	if !ok {
		g, _ = starter.with("B")
	}

	store.fail.Store(true)
	if err := r.RecordResult(ctx, tid, tournament.GameData{ID: g.ID, Result: movecodec.Draw}); err == nil {
		t.Fatal("expected the write failure to surface")
	}
	if _, ok := r.Lookup(tid); ok {
		t.Fatal("a tournament ahead of storage stays registered")
	}
	if got := testutil.ToFloat64(r.metrics.PersistFailures); got != 1 {
		t.Fatalf("persist failures = %v", got)
	}

	store.fail.Store(false)
	tr, err := r.Get(ctx, tid)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.OngoingGame(g.ID); !ok || tr.Counters().GamesFinished != 0 {
		t.Fatalf("reloaded copy should still wait for %s: %+v", g.ID, tr.Counters())
	}
	if err := r.RecordResult(ctx, "", tournament.GameData{ID: g.ID, Result: movecodec.Draw}); err != nil {
		t.Fatal(err)
	}
}
