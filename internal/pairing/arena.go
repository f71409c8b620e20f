package pairing

import (
	"time"

	"github.com/park285/Cheese-Tournament/internal/storage"
)

// arena pairs idle players continuously until the clock runs out.
// Repeats are allowed; an immediate rematch is avoided when another
// candidate is available. An odd idle player waits with an unscored bye.
type arena struct{}

func (*arena) System() System              { return Arena }
func (*arena) AcceptsJoin(bool) bool       { return true }
func (*arena) AllowsRepeats() bool         { return true }
func (*arena) RoundBased() bool            { return false }
func (*arena) ByePoints() int              { return 0 }
func (*arena) Prepare([]Entrant, []storage.PairingRecord) {}

func arenaEnd(req Request) time.Time {
	return req.StartsAt.Add(time.Duration(req.Minutes) * time.Minute)
}

func (*arena) Complete(req Request) bool {
	return req.Minutes > 0 && !req.Now.Before(arenaEnd(req))
}

func (a *arena) GenerateNextRound(req Request) (Round, error) {
	round := Round{Number: lastRound(req.Prior) + 1}
	if a.Complete(req) || len(req.Active) == 0 {
		return Round{}, nil
	}
	hist := NewHistory(req.Prior)

	paired := make([]bool, len(req.Active))
	for i := range req.Active {
		if paired[i] {
			continue
		}
		j := nearestOpponent(req.Active, paired, i, hist)
		if j < 0 {
			round.Byes = append(round.Byes, byeRecord(req, round.Number, req.Active[i]))
			paired[i] = true
			continue
		}
		paired[i], paired[j] = true, true
		w, b := hist.Colors(req.Active[i], req.Active[j])
		round.Games = append(round.Games, gameRecord(req, round.Number, w, b))
	}
	return round, nil
}

// nearestOpponent walks down the standings from i and returns the first
// unpaired player that is not i's last opponent, falling back to the
// nearest one if every candidate is.
func nearestOpponent(active []Entrant, paired []bool, i int, hist *History) int {
	fallback := -1
	last := hist.LastOpponent(active[i].ID)
	for j := i + 1; j < len(active); j++ {
		if paired[j] {
			continue
		}
		if active[j].ID != last {
			return j
		}
		if fallback < 0 {
			fallback = j
		}
	}
	return fallback
}
