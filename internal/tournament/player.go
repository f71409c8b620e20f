package tournament

import (
	"github.com/google/uuid"

	"github.com/park285/Cheese-Tournament/internal/pairing"
	"github.com/park285/Cheese-Tournament/internal/storage"
)

// Entry is what a player brings when joining.
type Entry struct {
	UserID      string
	Title       string
	Rating      int
	Provisional bool
}

// PlayerData holds one participant's running stats. Seq is the join order
// used as the last leaderboard tie-break.
type PlayerData struct {
	RecordID    string
	UserID      string
	Title       string
	Rating      int
	Provisional bool

	Points      int
	Wins        int
	Berserks    int
	Performance int
	WinStreak   int
	NbGames     int

	Paused    bool
	Withdrawn bool
	Seq       int
}

func newPlayer(e Entry, seq int) *PlayerData {
	return &PlayerData{
		RecordID:    uuid.NewString(),
		UserID:      e.UserID,
		Title:       e.Title,
		Rating:      e.Rating,
		Provisional: e.Provisional,
		Seq:         seq,
	}
}

func playerFromRecord(r storage.PlayerRecord, seq int) *PlayerData {
	return &PlayerData{
		RecordID:    r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Rating:      r.Rating,
		Provisional: r.Provisional,
		Paused:      r.Paused,
		Withdrawn:   r.Withdrawn,
		Seq:         seq,
	}
}

func (p *PlayerData) record(tid string) storage.PlayerRecord {
	return storage.PlayerRecord{
		ID:           p.RecordID,
		TournamentID: tid,
		UserID:       p.UserID,
		Title:        p.Title,
		Rating:       p.Rating,
		Provisional:  p.Provisional,
		Paused:       p.Paused,
		Withdrawn:    p.Withdrawn,
		Score:        p.Points,
		Wins:         p.Wins,
		Berserks:     p.Berserks,
		Performance:  p.Performance,
		WinStreak:    p.WinStreak,
		ArrivalRank:  p.Seq,
	}
}

func (p *PlayerData) entrant() pairing.Entrant {
	return pairing.Entrant{
		ID:          p.UserID,
		Rating:      p.Rating,
		Score:       p.Points,
		Performance: p.Performance,
		Seq:         p.Seq,
	}
}

// active players are those the strategies may pair.
func (p *PlayerData) active() bool { return !p.Paused && !p.Withdrawn }

// statsDiffer compares the replayed stats with a stored snapshot.
func (p *PlayerData) statsDiffer(r storage.PlayerRecord) bool {
	return p.Points != r.Score || p.Wins != r.Wins || p.Berserks != r.Berserks ||
		p.Performance != r.Performance || p.WinStreak != r.WinStreak
}
