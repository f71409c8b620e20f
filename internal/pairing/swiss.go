package pairing

import (
	"sort"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Tournament/internal/obslog"
	"github.com/park285/Cheese-Tournament/internal/storage"
)

// swissSearchBudget caps the backtracking search before falling back to
// a pairing that tolerates repeats.
const swissSearchBudget = 200000

// swiss pairs within score brackets for a fixed number of rounds, top half
// against bottom half. Repeats are forbidden unless no repeat-free pairing
// exists. Byes are worth a win and go to the lowest ranked player without one.
type swiss struct{}

func (*swiss) System() System                             { return Swiss }
func (*swiss) AcceptsJoin(started bool) bool              { return !started }
func (*swiss) AllowsRepeats() bool                        { return false }
func (*swiss) RoundBased() bool                           { return true }
func (*swiss) ByePoints() int                             { return 2 }
func (*swiss) Prepare([]Entrant, []storage.PairingRecord) {}

// Complete also holds once fewer than two entrants remain, since no
// further round can be paired.
func (*swiss) Complete(req Request) bool {
	if len(req.Active) < 2 {
		return true
	}
	return req.Rounds > 0 && lastRound(req.Prior) >= req.Rounds
}

func (s *swiss) GenerateNextRound(req Request) (Round, error) {
	if s.Complete(req) {
		return Round{}, nil
	}
	round := Round{Number: lastRound(req.Prior) + 1}
	hist := NewHistory(req.Prior)

	pool := append([]Entrant(nil), req.Active...)
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Score != pool[j].Score {
			return pool[i].Score > pool[j].Score
		}
		if pool[i].Rating != pool[j].Rating {
			return pool[i].Rating > pool[j].Rating
		}
		return pool[i].Seq < pool[j].Seq
	})

	if len(pool)%2 == 1 {
		k := byeCandidate(pool, hist)
		round.Byes = append(round.Byes, byeRecord(req, round.Number, pool[k]))
		pool = append(pool[:k], pool[k+1:]...)
	}

	budget := swissSearchBudget
	pairs, ok := pairBrackets(pool, hist, &budget)
	if !ok {
		obslog.L().Warn("swiss_repeat_fallback",
			zap.String("tid", req.TournamentID),
			zap.Int("round", round.Number),
			zap.Int("players", len(pool)),
		)
		pairs = pairLeastMet(pool, hist)
	}
	for _, p := range pairs {
		w, b := hist.Colors(p[0], p[1])
		round.Games = append(round.Games, gameRecord(req, round.Number, w, b))
	}
	return round, nil
}

func byeCandidate(pool []Entrant, hist *History) int {
	for i := len(pool) - 1; i >= 0; i-- {
		if hist.Byes(pool[i].ID) == 0 {
			return i
		}
	}
	return len(pool) - 1
}

// pairBrackets finds a repeat-free perfect matching, preferring the Dutch
// opponent for the top remaining player and backtracking otherwise.
func pairBrackets(pool []Entrant, hist *History, budget *int) ([][2]Entrant, bool) {
	if len(pool) == 0 {
		return nil, true
	}
	if *budget <= 0 {
		return nil, false
	}
	*budget--

	top, rest := pool[0], pool[1:]
	for _, j := range candidateOrder(top, rest) {
		if hist.Met(top.ID, rest[j].ID) > 0 {
			continue
		}
		remaining := make([]Entrant, 0, len(rest)-1)
		remaining = append(remaining, rest[:j]...)
		remaining = append(remaining, rest[j+1:]...)
		if sub, ok := pairBrackets(remaining, hist, budget); ok {
			return append([][2]Entrant{{top, rest[j]}}, sub...), true
		}
		if *budget <= 0 {
			return nil, false
		}
	}
	return nil, false
}

// candidateOrder lists indexes into rest: first the bottom half of top's
// score group starting at its middle, then the top half upwards from the
// middle, then lower groups in order.
func candidateOrder(top Entrant, rest []Entrant) []int {
	group := 0
	for group < len(rest) && rest[group].Score == top.Score {
		group++
	}
	half := (group + 1) / 2
	order := make([]int, 0, len(rest))
	for j := half - 1; j < group; j++ {
		if j >= 0 {
			order = append(order, j)
		}
	}
	for j := half - 2; j >= 0; j-- {
		order = append(order, j)
	}
	for j := group; j < len(rest); j++ {
		order = append(order, j)
	}
	return order
}

// pairLeastMet greedily pairs each top player with the nearest player it
// has met the fewest times.
func pairLeastMet(pool []Entrant, hist *History) [][2]Entrant {
	used := make([]bool, len(pool))
	var out [][2]Entrant
	for i := range pool {
		if used[i] {
			continue
		}
		best, bestMet := -1, 0
		for j := i + 1; j < len(pool); j++ {
			if used[j] {
				continue
			}
			m := hist.Met(pool[i].ID, pool[j].ID)
			if best < 0 || m < bestMet {
				best, bestMet = j, m
			}
		}
		if best < 0 {
			break
		}
		used[i], used[best] = true, true
		out = append(out, [2]Entrant{pool[i], pool[best]})
	}
	return out
}
