package pairing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/park285/Cheese-Tournament/internal/storage"
)

// System is the persisted pairing-system tag.
type System int

const (
	Arena      System = 0
	RoundRobin System = 1
	Swiss      System = 2
)

func (s System) String() string {
	switch s {
	case Arena:
		return "arena"
	case RoundRobin:
		return "round-robin"
	case Swiss:
		return "swiss"
	default:
		return fmt.Sprintf("system(%d)", int(s))
	}
}

var ErrUnknownSystem = errors.New("unknown pairing system")

// Entrant is a pairable player as seen by a strategy.
type Entrant struct {
	ID          string
	Rating      int
	Score       int
	Performance int
	Seq         int
}

// Request carries everything a strategy may look at. Active is in standings
// order: the idle pairable players when generating a round, every player
// still entered when asking Complete.
type Request struct {
	TournamentID string
	Active       []Entrant
	Prior        []storage.PairingRecord
	Now          time.Time
	StartsAt     time.Time
	Minutes      int
	Rounds       int
}

// Round is one batch of pairings. Byes are records whose second seat is empty.
type Round struct {
	Number int
	Games  []storage.PairingRecord
	Byes   []storage.PairingRecord
}

func (r Round) Empty() bool { return len(r.Games) == 0 && len(r.Byes) == 0 }

// Strategy is implemented by Arena, Swiss and RoundRobin.
type Strategy interface {
	System() System
	// AcceptsJoin reports whether new entrants may join before or after the start.
	AcceptsJoin(started bool) bool
	// AllowsRepeats reports whether the same two players may meet again.
	AllowsRepeats() bool
	// RoundBased strategies pair only once every game of the previous round ended.
	RoundBased() bool
	// ByePoints is what an explicit bye is worth.
	ByePoints() int
	// Prepare is called at start and on reload of a started tournament.
	Prepare(roster []Entrant, prior []storage.PairingRecord)
	GenerateNextRound(req Request) (Round, error)
	// Complete reports that no further round will ever be generated.
	Complete(req Request) bool
}

// New returns the strategy for a system tag.
func New(sys System) (Strategy, error) {
	switch sys {
	case Arena:
		return &arena{}, nil
	case Swiss:
		return &swiss{}, nil
	case RoundRobin:
		return &roundRobin{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownSystem, int(sys))
	}
}

func lastRound(prior []storage.PairingRecord) int {
	n := 0
	for _, p := range prior {
		if p.Round > n {
			n = p.Round
		}
	}
	return n
}

func gameRecord(req Request, round int, white, black Entrant) storage.PairingRecord {
	return storage.PairingRecord{
		ID:           uuid.NewString(),
		TournamentID: req.TournamentID,
		White:        white.ID,
		Black:        black.ID,
		WhiteRating:  white.Rating,
		BlackRating:  black.Rating,
		Result:       "d",
		Date:         req.Now,
		Round:        round,
	}
}

func byeRecord(req Request, round int, e Entrant) storage.PairingRecord {
	return storage.PairingRecord{
		ID:           uuid.NewString(),
		TournamentID: req.TournamentID,
		White:        e.ID,
		Black:        storage.ByeOpponent,
		WhiteRating:  e.Rating,
		Result:       "a",
		Date:         req.Now,
		Round:        round,
	}
}
