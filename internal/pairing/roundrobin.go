package pairing

import (
	"sort"

	"github.com/park285/Cheese-Tournament/internal/storage"
)

// roundRobin computes the whole fixture list once, with the circle method,
// over the rating-seeded roster. Tournament.Rounds is the number of cycles;
// players meet again only in a later cycle. The rest slot of an odd roster,
// and the opponent of an absent player, get an unscored bye.
type roundRobin struct {
	roster   []Entrant
	fixtures [][][2]int // round -> pairs of roster indexes, -1 for the rest slot
	prepared bool
	multi    bool
}

func (*roundRobin) System() System                { return RoundRobin }
func (*roundRobin) AcceptsJoin(started bool) bool { return !started }
func (r *roundRobin) AllowsRepeats() bool         { return r.multi }
func (*roundRobin) RoundBased() bool              { return true }
func (*roundRobin) ByePoints() int                { return 0 }

// Prepare fixes the roster: every player entered at start, however they
// are doing now.
func (r *roundRobin) Prepare(roster []Entrant, _ []storage.PairingRecord) {
	players := append([]Entrant(nil), roster...)
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Rating != players[j].Rating {
			return players[i].Rating > players[j].Rating
		}
		return players[i].Seq < players[j].Seq
	})
	r.roster = players
	r.fixtures = circleFixtures(len(players))
	r.prepared = true
}

// circleFixtures keeps slot 0 fixed and rotates the others one step per round.
func circleFixtures(n int) [][][2]int {
	if n < 2 {
		return nil
	}
	slots := make([]int, n)
	for i := range slots {
		slots[i] = i
	}
	if n%2 == 1 {
		slots = append(slots, -1)
	}
	size := len(slots)
	rounds := make([][][2]int, 0, size-1)
	rest := append([]int(nil), slots[1:]...)
	for r := 0; r < size-1; r++ {
		arr := append([]int{slots[0]}, rest...)
		pairs := make([][2]int, 0, size/2)
		for i := 0; i < size/2; i++ {
			pairs = append(pairs, [2]int{arr[i], arr[size-1-i]})
		}
		rounds = append(rounds, pairs)
		// rotate right by one
		last := rest[len(rest)-1]
		copy(rest[1:], rest[:len(rest)-1])
		rest[0] = last
	}
	return rounds
}

func (r *roundRobin) cycles(req Request) int {
	if req.Rounds > 1 {
		r.multi = true
		return req.Rounds
	}
	return 1
}

// TotalRounds is the fixture count across all cycles.
func (r *roundRobin) TotalRounds(req Request) int {
	return len(r.fixtures) * r.cycles(req)
}

// Complete holds once every fixture was played, and at once for a
// roster too small to have any.
func (r *roundRobin) Complete(req Request) bool {
	return r.prepared && lastRound(req.Prior) >= r.TotalRounds(req)
}

func (r *roundRobin) GenerateNextRound(req Request) (Round, error) {
	if !r.prepared {
		r.Prepare(req.Active, req.Prior)
	}
	next := lastRound(req.Prior) + 1
	if len(r.fixtures) == 0 || next > r.TotalRounds(req) {
		return Round{}, nil
	}
	round := Round{Number: next}
	hist := NewHistory(req.Prior)

	active := make(map[string]Entrant, len(req.Active))
	for _, e := range req.Active {
		active[e.ID] = e
	}
	lookup := func(idx int) (Entrant, bool) {
		if idx < 0 {
			return Entrant{}, false
		}
		e, ok := active[r.roster[idx].ID]
		return e, ok
	}

	for _, pair := range r.fixtures[(next-1)%len(r.fixtures)] {
		a, okA := lookup(pair[0])
		b, okB := lookup(pair[1])
		switch {
		case okA && okB:
			w, bl := hist.Colors(a, b)
			round.Games = append(round.Games, gameRecord(req, next, w, bl))
		case okA:
			round.Byes = append(round.Byes, byeRecord(req, next, a))
		case okB:
			round.Byes = append(round.Byes, byeRecord(req, next, b))
		}
	}
	return round, nil
}
