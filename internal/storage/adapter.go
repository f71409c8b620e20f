package storage

import (
	"context"
	"errors"
	"sort"
)

var ErrNotFound = errors.New("storage: not found")

// Adapter is the persistence contract used by the tournament engine.
//
// ListPlayers honours byRating only when SupportsOrderedQuery reports true;
// callers are expected to check the capability first and otherwise order
// the result themselves.
type Adapter interface {
	SupportsOrderedQuery() bool

	LoadTournament(ctx context.Context, id string) (*TournamentRecord, error)
	ListTournaments(ctx context.Context, q TournamentQuery) ([]TournamentRecord, error)
	UpsertTournament(ctx context.Context, rec TournamentRecord) error

	ListPlayers(ctx context.Context, tid string, byRating bool) ([]PlayerRecord, error)
	UpsertPlayer(ctx context.Context, rec PlayerRecord) error

	ListPairings(ctx context.Context, tid string) ([]PairingRecord, error)
	UpsertPairing(ctx context.Context, rec PairingRecord) error

	RecentChat(ctx context.Context, tid string, limit int) ([]ChatRecord, error)
	AppendChat(ctx context.Context, rec ChatRecord) error

	Close() error
}

func sortByRating(players []PlayerRecord) {
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Rating != players[j].Rating {
			return players[i].Rating > players[j].Rating
		}
		return players[i].ArrivalRank < players[j].ArrivalRank
	})
}

func sortTournamentsNewestFirst(list []TournamentRecord) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].StartsAt.Equal(list[j].StartsAt) {
			return list[i].StartsAt.After(list[j].StartsAt)
		}
		return list[i].ID < list[j].ID
	})
}

func tailChat(list []ChatRecord, limit int) []ChatRecord {
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]ChatRecord, len(list))
	copy(out, list)
	return out
}
