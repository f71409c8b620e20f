package storage

import (
	"context"
	"strings"
	"sync"
)

// memstore keeps everything in process memory. Used for development and tests.
type memstore struct {
	mu sync.RWMutex

	ordered bool

	tournaments map[string]TournamentRecord
	players     map[string]map[string]PlayerRecord // tid -> uid -> record
	pairings    map[string][]PairingRecord         // tid -> records, insertion order
	chat        map[string][]ChatRecord
}

type MemoryOption func(*memstore)

// WithoutOrderedQuery makes the adapter report no ordering support and
// return players in map iteration order.
func WithoutOrderedQuery() MemoryOption {
	return func(m *memstore) { m.ordered = false }
}

func NewMemoryAdapter(opts ...MemoryOption) Adapter {
	m := &memstore{
		ordered:     true,
		tournaments: make(map[string]TournamentRecord),
		players:     make(map[string]map[string]PlayerRecord),
		pairings:    make(map[string][]PairingRecord),
		chat:        make(map[string][]ChatRecord),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *memstore) SupportsOrderedQuery() bool { return m.ordered }

func (m *memstore) LoadTournament(ctx context.Context, id string) (*TournamentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tournaments[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *memstore) ListTournaments(ctx context.Context, q TournamentQuery) ([]TournamentRecord, error) {
	m.mu.RLock()
	out := make([]TournamentRecord, 0, len(m.tournaments))
	for _, t := range m.tournaments {
		if q.matches(t.Status) {
			out = append(out, t)
		}
	}
	m.mu.RUnlock()

	sortTournamentsNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memstore) UpsertTournament(ctx context.Context, rec TournamentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.StartRoster = append([]string(nil), rec.StartRoster...)
	m.tournaments[rec.ID] = rec
	return nil
}

func (m *memstore) ListPlayers(ctx context.Context, tid string, byRating bool) ([]PlayerRecord, error) {
	m.mu.RLock()
	set := m.players[tid]
	out := make([]PlayerRecord, 0, len(set))
	for _, p := range set {
		out = append(out, p)
	}
	m.mu.RUnlock()

	if byRating && m.ordered {
		sortByRating(out)
	}
	return out, nil
}

func (m *memstore) UpsertPlayer(ctx context.Context, rec PlayerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.players[rec.TournamentID]
	if !ok {
		set = make(map[string]PlayerRecord)
		m.players[rec.TournamentID] = set
	}
	set[rec.UserID] = rec
	return nil
}

func (m *memstore) ListPairings(ctx context.Context, tid string) ([]PairingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.pairings[tid]
	out := make([]PairingRecord, len(list))
	copy(out, list)
	return out, nil
}

func (m *memstore) UpsertPairing(ctx context.Context, rec PairingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.pairings[rec.TournamentID]
	for i := range list {
		if list[i].ID == rec.ID {
			list[i] = rec
			return nil
		}
	}
	m.pairings[rec.TournamentID] = append(list, rec)
	return nil
}

func (m *memstore) RecentChat(ctx context.Context, tid string, limit int) ([]ChatRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tailChat(m.chat[tid], limit), nil
}

func (m *memstore) AppendChat(ctx context.Context, rec ChatRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat[rec.TournamentID] = append(m.chat[rec.TournamentID], rec)
	return nil
}

func (m *memstore) Close() error { return nil }
