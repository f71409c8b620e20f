package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Tournament/internal/obslog"
	"github.com/park285/Cheese-Tournament/internal/pairing"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/tournament"
	"github.com/park285/Cheese-Tournament/internal/variant"
)

// SystemAccount creates the recurring scheduled tournaments.
const SystemAccount = "tourney-bot"

const (
	defaultBeforeStart = 5
	defaultMinutes     = 45
)

type CreateRequest struct {
	Variant        string // short code
	Chess960       bool
	System         pairing.System
	Base           float64
	Inc            int
	ByoyomiPeriods int
	Unrated        bool
	FEN            string
	Rounds         int
	StartsAt       time.Time
	BeforeStart    int
	Minutes        int
	CreatedBy      string
	Name           string
	Description    string
	Frequency      string
}

func systemLabel(sys pairing.System) string {
	switch sys {
	case pairing.Swiss:
		return "Swiss"
	case pairing.RoundRobin:
		return "Round-Robin"
	default:
		return "Arena"
	}
}

// Create builds, persists and registers a new tournament.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*tournament.Tournament, error) {
	v, err := variant.Lookup(req.Variant, req.Chess960)
	if err != nil {
		return nil, err
	}
	if req.BeforeStart <= 0 {
		req.BeforeStart = defaultBeforeStart
	}
	if req.Minutes <= 0 {
		req.Minutes = defaultMinutes
	}
	now := r.opts.Now()
	if req.StartsAt.IsZero() {
		req.StartsAt = now.Add(time.Duration(req.BeforeStart) * time.Minute)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("%s %s", v.DisplayName, systemLabel(req.System))
	}
	id, err := r.newID(ctx)
	if err != nil {
		return nil, err
	}

	t, err := tournament.New(tournament.Params{
		ID:             id,
		Variant:        v,
		System:         req.System,
		Base:           req.Base,
		Inc:            req.Inc,
		ByoyomiPeriods: req.ByoyomiPeriods,
		Rated:          !req.Unrated && strings.TrimSpace(req.FEN) == "",
		FEN:            strings.TrimSpace(req.FEN),
		Rounds:         req.Rounds,
		StartsAt:       req.StartsAt,
		BeforeStart:    req.BeforeStart,
		Minutes:        req.Minutes,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      now,
		Name:           name,
		Description:    req.Description,
		Frequency:      req.Frequency,
		MaxChat:        r.opts.MaxChat,
	})
	if err != nil {
		return nil, err
	}
	if err := r.store.UpsertTournament(ctx, t.Record()); err != nil {
		return nil, fmt.Errorf("persist tournament %s: %w", id, err)
	}
	r.register(t)
	obslog.L().Info("tournament_created",
		zap.String("tid", id),
		zap.String("variant", v.ServerName()),
		zap.String("system", req.System.String()),
		zap.String("name", name),
	)
	return t, nil
}

func (r *Registry) newID(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if _, ok := r.Lookup(id); ok {
			continue
		}
		_, err := r.store.LoadTournament(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not allocate a tournament id")
}

func (r *Registry) Join(ctx context.Context, tid string, e tournament.Entry) error {
	_, _, err := r.step(ctx, tid, func(t *tournament.Tournament) (tournament.Changes, error) {
		return t.Join(e)
	})
	return err
}

func (r *Registry) Withdraw(ctx context.Context, tid, uid string) error {
	_, _, err := r.step(ctx, tid, func(t *tournament.Tournament) (tournament.Changes, error) {
		return t.Withdraw(uid)
	})
	return err
}

func (r *Registry) Pause(ctx context.Context, tid, uid string) error {
	_, _, err := r.step(ctx, tid, func(t *tournament.Tournament) (tournament.Changes, error) {
		return t.Pause(uid)
	})
	return err
}

func (r *Registry) Start(ctx context.Context, tid string) error {
	_, _, err := r.step(ctx, tid, func(t *tournament.Tournament) (tournament.Changes, error) {
		return t.Start(r.opts.Now())
	})
	return err
}

func (r *Registry) Abort(ctx context.Context, tid string) error {
	t, _, err := r.step(ctx, tid, func(t *tournament.Tournament) (tournament.Changes, error) {
		return t.Abort()
	})
	if err == nil {
		r.forgetGames(t.ID())
	}
	return err
}

func (r *Registry) Finish(ctx context.Context, tid string) error {
	t, _, err := r.step(ctx, tid, func(t *tournament.Tournament) (tournament.Changes, error) {
		return t.Finish()
	})
	if err == nil {
		r.forgetGames(t.ID())
	}
	return err
}

func (r *Registry) Archive(ctx context.Context, tid string) error {
	_, _, err := r.step(ctx, tid, func(t *tournament.Tournament) (tournament.Changes, error) {
		return t.Archive()
	})
	return err
}

// NextRound pairs the idle players, persists the pairings and hands the
// games to the starter.
func (r *Registry) NextRound(ctx context.Context, tid string) (pairing.Round, error) {
	var round pairing.Round
	t, _, err := r.step(ctx, tid, func(t *tournament.Tournament) (tournament.Changes, error) {
		var (
			ch  tournament.Changes
			err error
		)
		round, ch, err = t.NextRound(r.opts.Now())
		return ch, err
	})
	if err != nil || round.Empty() {
		return round, err
	}

	r.mu.Lock()
	for _, g := range round.Games {
		r.games[g.ID] = tid
	}
	r.mu.Unlock()
	p := t.Params()
	r.metrics.RoundGenerated(p.System.String())

	if r.starter != nil {
		for _, g := range round.Games {
			if err := r.starter.StartGame(ctx, g, p.Variant, p.FEN); err != nil {
				obslog.L().Warn("game_start_failed", zap.String("tid", tid), zap.String("gid", g.ID), zap.Error(err))
			}
		}
	}
	return round, nil
}

// RecordResult applies a terminated game. An empty tid is resolved from
// the game index.
func (r *Registry) RecordResult(ctx context.Context, tid string, g tournament.GameData) error {
	if tid == "" {
		r.mu.RLock()
		tid = r.games[g.ID]
		r.mu.RUnlock()
		if tid == "" {
			return fmt.Errorf("%w: %s", tournament.ErrUnknownGame, g.ID)
		}
	}
	_, _, err := r.step(ctx, tid, func(t *tournament.Tournament) (tournament.Changes, error) {
		return t.RecordGameResult(g)
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.games, g.ID)
	r.mu.Unlock()
	r.metrics.ResultRecorded()
	return nil
}

// OnResult matches gamehost.ResultHandler. Contract violations are logged,
// never retried.
func (r *Registry) OnResult(ctx context.Context, tid string, g tournament.GameData) {
	if err := r.RecordResult(ctx, tid, g); err != nil {
		obslog.L().Warn("game_result_rejected",
			zap.String("tid", tid),
			zap.String("gid", g.ID),
			zap.String("result", string(g.Result)),
			zap.Error(err),
		)
	}
}

func (r *Registry) AddChat(ctx context.Context, tid string, rec storage.ChatRecord) error {
	e, err := r.entry(ctx, tid)
	if err != nil {
		return err
	}
	if rec.Time.IsZero() {
		rec.Time = r.opts.Now()
	}
	if rec.Type == "" {
		rec.Type = "lobbychat"
	}
	e.step.Lock()
	defer e.step.Unlock()
	stored := e.t.AddChat(rec)
	return r.store.AppendChat(ctx, stored)
}

// Tick drives every live tournament one step: due tournaments start,
// started ones pair or finish. Errors are logged per tournament.
func (r *Registry) Tick(ctx context.Context) {
	now := r.opts.Now()
	for _, t := range r.Live() {
		if ctx.Err() != nil {
			return
		}
		tid := t.ID()
		var err error
		switch t.Status() {
		case tournament.Created:
			if !now.Before(t.Params().StartsAt) {
				err = r.Start(ctx, tid)
			}
		case tournament.Started:
			if t.Done(now) {
				err = r.Finish(ctx, tid)
				break
			}
			_, err = r.NextRound(ctx, tid)
			if errors.Is(err, tournament.ErrRoundInProgress) {
				err = nil
			}
		}
		if err != nil {
			obslog.L().Warn("tournament_tick_failed", zap.String("tid", tid), zap.Error(err))
		}
	}
}

func (r *Registry) forgetGames(tid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for gid, id := range r.games {
		if id == tid {
			delete(r.games, gid)
		}
	}
}
