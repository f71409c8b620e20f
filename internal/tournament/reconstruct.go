package tournament

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Tournament/internal/obslog"
	"github.com/park285/Cheese-Tournament/internal/pairing"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/variant"
)

// Snapshot is everything read from storage (and the game host) that a
// tournament is rebuilt from. Players are in restore order.
type Snapshot struct {
	Tournament storage.TournamentRecord
	Players    []storage.PlayerRecord
	Pairings   []storage.PairingRecord
	Chat       []storage.ChatRecord
	Live       map[string]*LiveGame
	MaxChat    int
}

// Reconstruct rebuilds a tournament without IO. Player stats are zeroed and
// recomputed by replaying the pairings in date order through the same
// scoring used for live results; the stored stats are only checked.
func Reconstruct(s Snapshot) (*Tournament, error) {
	rec := s.Tournament
	tid := rec.ID

	status := Status(rec.Status)
	if !status.valid() {
		return nil, integrity(tid, "unknown status %d", rec.Status)
	}
	v, err := variant.Lookup(rec.Variant, rec.Chess960)
	if err != nil {
		return nil, fmt.Errorf("tournament %s: %w", tid, err)
	}
	t, err := New(Params{
		ID:             tid,
		Variant:        v,
		System:         pairing.System(rec.System),
		Base:           rec.Base,
		Inc:            rec.Inc,
		ByoyomiPeriods: rec.ByoyomiPeriods,
		Rated:          rec.Rated,
		FEN:            rec.FEN,
		Rounds:         rec.Rounds,
		StartsAt:       rec.StartsAt,
		BeforeStart:    rec.BeforeStart,
		Minutes:        rec.Minutes,
		CreatedBy:      rec.CreatedBy,
		CreatedAt:      rec.CreatedAt,
		Name:           rec.Name,
		Description:    rec.Description,
		Frequency:      rec.Frequency,
		MaxChat:        s.MaxChat,
	})
	if errors.Is(err, pairing.ErrUnknownSystem) {
		return nil, integrity(tid, "unknown pairing system %d", rec.System)
	}
	if err != nil {
		return nil, err
	}
	t.status = status
	t.winner = rec.Winner
	t.startRoster = append([]string(nil), rec.StartRoster...)

	if err := t.restorePlayers(s.Players); err != nil {
		return nil, err
	}
	if err := t.replay(s.Pairings, s.Live); err != nil {
		return nil, err
	}
	for _, p := range t.players {
		t.reposition(p)
	}
	if status == Started {
		if t.strategy.RoundBased() && len(t.startRoster) == 0 {
			return nil, integrity(tid, "started %s tournament has no start roster", t.p.System)
		}
		roster, err := t.fixedRoster()
		if err != nil {
			return nil, err
		}
		t.strategy.Prepare(roster, t.pairings)
	}
	t.refreshRanks()

	chat := s.Chat
	if over := len(chat) - t.p.MaxChat; over > 0 {
		chat = chat[over:]
	}
	t.chat = append([]storage.ChatRecord(nil), chat...)

	for _, pr := range s.Players {
		if p := t.players[pr.UserID]; p.statsDiffer(pr) {
			obslog.L().Warn("player_snapshot_drift",
				zap.String("tid", tid),
				zap.String("uid", pr.UserID),
				zap.Int("stored_score", pr.Score),
				zap.Int("replayed_score", p.Points),
			)
		}
	}
	return t, nil
}

// restorePlayers keeps the stored arrival rank as join order. Records
// without a usable rank are appended after the others in the order given.
func (t *Tournament) restorePlayers(records []storage.PlayerRecord) error {
	used := make(map[int]bool, len(records))
	var late []storage.PlayerRecord
	for _, pr := range records {
		if pr.UserID == "" {
			return integrity(t.p.ID, "player record %s has no user", pr.ID)
		}
		if _, dup := t.players[pr.UserID]; dup {
			return integrity(t.p.ID, "duplicate player %s", pr.UserID)
		}
		if pr.ArrivalRank <= 0 || used[pr.ArrivalRank] {
			late = append(late, pr)
			t.players[pr.UserID] = nil
			continue
		}
		used[pr.ArrivalRank] = true
		t.players[pr.UserID] = playerFromRecord(pr, pr.ArrivalRank)
		if pr.ArrivalRank > t.nextSeq {
			t.nextSeq = pr.ArrivalRank
		}
	}
	for _, pr := range late {
		t.nextSeq++
		t.players[pr.UserID] = playerFromRecord(pr, t.nextSeq)
	}
	return nil
}

func (t *Tournament) replay(records []storage.PairingRecord, live map[string]*LiveGame) error {
	pairs := append([]storage.PairingRecord(nil), records...)
	sort.SliceStable(pairs, func(i, j int) bool {
		if !pairs[i].Date.Equal(pairs[j].Date) {
			return pairs[i].Date.Before(pairs[j].Date)
		}
		if pairs[i].Round != pairs[j].Round {
			return pairs[i].Round < pairs[j].Round
		}
		return pairs[i].ID < pairs[j].ID
	})

	for _, pr := range pairs {
		if _, seen := t.pidx[pr.ID]; seen {
			continue
		}
		if _, ok := t.players[pr.White]; !ok {
			return integrity(t.p.ID, "pairing %s references unknown player %s", pr.ID, pr.White)
		}
		if pr.IsBye() {
			t.putPairing(pr)
			t.applyBye(pr)
			continue
		}
		if _, ok := t.players[pr.Black]; !ok {
			return integrity(t.p.ID, "pairing %s references unknown player %s", pr.ID, pr.Black)
		}
		g, err := gameFromRecord(pr)
		if err != nil {
			return integrity(t.p.ID, "pairing %s: %v", pr.ID, err)
		}
		if !g.Result.Terminated() {
			if t.status.Over() {
				continue
			}
			t.putPairing(pr)
			t.ongoing[g.ID] = &OngoingGame{Game: g, Live: live[g.ID]}
			continue
		}
		t.putPairing(pr)
		t.applyResult(g)
	}
	return nil
}

// Source is the read side of storage.Adapter.
type Source interface {
	SupportsOrderedQuery() bool
	LoadTournament(ctx context.Context, id string) (*storage.TournamentRecord, error)
	ListPlayers(ctx context.Context, tid string, byRating bool) ([]storage.PlayerRecord, error)
	ListPairings(ctx context.Context, tid string) ([]storage.PairingRecord, error)
	RecentChat(ctx context.Context, tid string, limit int) ([]storage.ChatRecord, error)
}

type LoadOptions struct {
	MaxChat int
	// OnDegraded is called when players could not be read in rating order.
	OnDegraded func(tid string)
}

// Load reads a tournament's records, asks the host for the state of games
// still running, and rebuilds it. host may be nil.
func Load(ctx context.Context, src Source, host GameHost, id string, opts LoadOptions) (*Tournament, error) {
	if opts.MaxChat <= 0 {
		opts.MaxChat = DefaultMaxChat
	}
	rec, err := src.LoadTournament(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load tournament %s: %w", id, err)
	}

	ordered := src.SupportsOrderedQuery()
	players, err := src.ListPlayers(ctx, id, ordered)
	if err != nil {
		return nil, fmt.Errorf("list players %s: %w", id, err)
	}
	if !ordered {
		obslog.L().Warn("ordered_query_degraded", zap.String("tid", id), zap.Int("players", len(players)))
		if opts.OnDegraded != nil {
			opts.OnDegraded(id)
		}
		sort.SliceStable(players, func(i, j int) bool {
			if players[i].ArrivalRank != players[j].ArrivalRank {
				return players[i].ArrivalRank < players[j].ArrivalRank
			}
			return players[i].UserID < players[j].UserID
		})
	}

	pairings, err := src.ListPairings(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list pairings %s: %w", id, err)
	}

	live := make(map[string]*LiveGame)
	if Status(rec.Status).Live() && host != nil {
		for _, pr := range pairings {
			if pr.IsBye() || pr.Result != "d" {
				continue
			}
			st, err := host.CurrentState(ctx, pr.ID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				obslog.L().Warn("live_state_unavailable",
					zap.String("tid", id),
					zap.String("gid", pr.ID),
					zap.Error(err),
				)
				continue
			}
			live[pr.ID] = st
		}
	}

	chat, err := src.RecentChat(ctx, id, opts.MaxChat)
	if err != nil {
		return nil, fmt.Errorf("recent chat %s: %w", id, err)
	}

	t, err := Reconstruct(Snapshot{
		Tournament: *rec,
		Players:    players,
		Pairings:   pairings,
		Chat:       chat,
		Live:       live,
		MaxChat:    opts.MaxChat,
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("tournament_reconstructed",
		zap.String("tid", id),
		zap.String("status", t.status.String()),
		zap.Int("players", len(t.players)),
		zap.Int("pairings", len(t.pairings)),
		zap.Int("ongoing", len(t.ongoing)),
	)
	return t, nil
}
