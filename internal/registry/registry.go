package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/park285/Cheese-Tournament/internal/metrics"
	"github.com/park285/Cheese-Tournament/internal/obslog"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/tournament"
	"github.com/park285/Cheese-Tournament/internal/variant"
)

// GameStarter hands freshly paired games to whoever plays them.
type GameStarter interface {
	StartGame(ctx context.Context, rec storage.PairingRecord, v variant.Descriptor, startFEN string) error
}

type Options struct {
	Host               tournament.GameHost
	Starter            GameStarter
	Metrics            *metrics.Metrics
	MaxChat            int
	PreloadConcurrency int
	Now                func() time.Time
}

type entry struct {
	t *tournament.Tournament
	// step orders mutation and persistence of one tournament; the
	// tournament's own lock is never held across storage calls.
	step sync.Mutex
}

// Registry owns the live tournaments of one process. It is built at
// start-up and passed to whoever needs it.
type Registry struct {
	store   storage.Adapter
	host    tournament.GameHost
	starter GameStarter
	metrics *metrics.Metrics
	opts    Options

	mu    sync.RWMutex
	live  map[string]*entry
	games map[string]string // game id -> tournament id

	loads singleflight.Group
}

func New(store storage.Adapter, opts Options) *Registry {
	if opts.MaxChat <= 0 {
		opts.MaxChat = tournament.DefaultMaxChat
	}
	if opts.PreloadConcurrency <= 0 {
		opts.PreloadConcurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		store:   store,
		host:    opts.Host,
		starter: opts.Starter,
		metrics: opts.Metrics,
		opts:    opts,
		live:    make(map[string]*entry),
		games:   make(map[string]string),
	}
}

// Lookup returns a tournament already in memory.
func (r *Registry) Lookup(id string) (*tournament.Tournament, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.live[id]
	if !ok {
		return nil, false
	}
	return e.t, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// Live is a best-effort snapshot of the registered tournaments.
func (r *Registry) Live() []*tournament.Tournament {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*tournament.Tournament, 0, len(r.live))
	for _, e := range r.live {
		out = append(out, e.t)
	}
	return out
}

// Get returns the live tournament, loading it from storage on first use.
// Concurrent first loads of the same id share one reconstruction.
func (r *Registry) Get(ctx context.Context, id string) (*tournament.Tournament, error) {
	e, err := r.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.t, nil
}

func (r *Registry) entry(ctx context.Context, id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.live[id]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	v, err, _ := r.loads.Do(id, func() (any, error) {
		r.mu.RLock()
		e, ok := r.live[id]
		r.mu.RUnlock()
		if ok {
			return e, nil
		}
		t, err := tournament.Load(ctx, r.store, r.host, id, tournament.LoadOptions{
			MaxChat:    r.opts.MaxChat,
			OnDegraded: func(string) { r.metrics.QueryDegraded() },
		})
		if err != nil {
			r.loadFailed(id, err)
			return nil, err
		}
		return r.register(t), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

func (r *Registry) loadFailed(id string, err error) {
	reason := "storage"
	switch {
	case errors.Is(err, tournament.ErrDataIntegrity):
		reason = "data_integrity"
	case errors.Is(err, variant.ErrUnknownVariant):
		reason = "unknown_variant"
	case errors.Is(err, storage.ErrNotFound):
		return
	}
	r.metrics.ReconstructionFailed(reason)
	obslog.L().Error("tournament_load_failed", zap.String("tid", id), zap.String("reason", reason), zap.Error(err))
}

func (r *Registry) register(t *tournament.Tournament) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.live[t.ID()]; ok {
		return e
	}
	e := &entry{t: t}
	r.live[t.ID()] = e
	for _, g := range t.Ongoing() {
		r.games[g.Game.ID] = t.ID()
	}
	r.metrics.SetLive(len(r.live))
	return e
}

// Evict drops a tournament from memory. Its records stay in storage.
func (r *Registry) Evict(id string) {
	r.evictEntry(id, nil)
}

// evictEntry drops id only while it still maps to e; a nil e matches any entry.
func (r *Registry) evictEntry(id string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.live[id]
	if !ok || (e != nil && cur != e) {
		return
	}
	delete(r.live, id)
	for gid, tid := range r.games {
		if tid == id {
			delete(r.games, gid)
		}
	}
	r.metrics.SetLive(len(r.live))
}

// Preload loads every created or started tournament. A tournament that
// fails to load is logged and skipped; only cancellation stops the rest.
func (r *Registry) Preload(ctx context.Context) (int, error) {
	recs, err := r.store.ListTournaments(ctx, storage.TournamentQuery{
		Statuses: []int{int(tournament.Created), int(tournament.Started)},
	})
	if err != nil {
		return 0, fmt.Errorf("list live tournaments: %w", err)
	}

	var (
		mu     sync.Mutex
		loaded int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.PreloadConcurrency)
	for _, rec := range recs {
		g.Go(func() error {
			if _, err := r.entry(gctx, rec.ID); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			mu.Lock()
			loaded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return loaded, err
	}
	obslog.L().Info("registry_preloaded", zap.Int("loaded", loaded), zap.Int("candidates", len(recs)))
	return loaded, nil
}

// step runs one mutation of a tournament and persists what it changed
// before the next mutation of the same tournament starts.
func (r *Registry) step(ctx context.Context, id string, fn func(*tournament.Tournament) (tournament.Changes, error)) (*tournament.Tournament, tournament.Changes, error) {
	e, err := r.entry(ctx, id)
	if err != nil {
		return nil, tournament.Changes{}, err
	}
	e.step.Lock()
	defer e.step.Unlock()

	ch, err := fn(e.t)
	if err != nil {
		return e.t, ch, err
	}
	if err := r.persist(ctx, ch); err != nil {
		// memory is ahead of storage; the next access reloads what was written
		obslog.L().Error("tournament_persist_failed", zap.String("tid", id), zap.Error(err))
		r.metrics.PersistFailed()
		r.evictEntry(id, e)
		return e.t, ch, err
	}
	return e.t, ch, nil
}

func (r *Registry) persist(ctx context.Context, ch tournament.Changes) error {
	if ch.Tournament != nil {
		if err := r.store.UpsertTournament(ctx, *ch.Tournament); err != nil {
			return fmt.Errorf("persist tournament %s: %w", ch.Tournament.ID, err)
		}
	}
	for _, p := range ch.Players {
		if err := r.store.UpsertPlayer(ctx, p); err != nil {
			return fmt.Errorf("persist player %s: %w", p.UserID, err)
		}
	}
	for _, p := range ch.Pairings {
		if err := r.store.UpsertPairing(ctx, p); err != nil {
			return fmt.Errorf("persist pairing %s: %w", p.ID, err)
		}
	}
	return nil
}
