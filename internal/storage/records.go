package storage

import "time"

// ByeOpponent fills the second seat of a pairing record that is a bye.
const ByeOpponent = ""

// TournamentRecord is the durable tournament header.
type TournamentRecord struct {
	ID             string    `json:"_id" db:"id"`
	Variant        string    `json:"v" db:"variant"`
	Chess960       bool      `json:"z" db:"chess960"`
	Base           float64   `json:"b" db:"base"`
	Inc            int       `json:"i" db:"inc"`
	ByoyomiPeriods int       `json:"bp" db:"byoyomi_periods"`
	Rated          bool      `json:"y" db:"rated"`
	FEN            string    `json:"f" db:"fen"`
	System         int       `json:"system" db:"system"`
	Rounds         int       `json:"rounds" db:"rounds"`
	StartsAt       time.Time `json:"startsAt" db:"starts_at"`
	BeforeStart    int       `json:"beforeStart" db:"before_start"`
	Minutes        int       `json:"minutes" db:"minutes"`
	CreatedBy      string    `json:"createdBy" db:"created_by"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	Status         int       `json:"status" db:"status"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"d" db:"description"`
	Frequency      string    `json:"fr" db:"frequency"`
	Winner         string    `json:"winner" db:"winner"`
	NbPlayers      int       `json:"nbPlayers" db:"nb_players"`
	// StartRoster is who a round-based tournament's fixtures are built
	// over, fixed at start, in join order.
	StartRoster    []string  `json:"sr,omitempty" db:"start_roster"`
}

// PlayerRecord is one participant's snapshot.
type PlayerRecord struct {
	ID           string `json:"_id" db:"id"`
	TournamentID string `json:"tid" db:"tid"`
	UserID       string `json:"uid" db:"uid"`
	Title        string `json:"t" db:"title"`
	Rating       int    `json:"r" db:"rating"`
	Provisional  bool   `json:"pr" db:"provisional"`
	Paused       bool   `json:"a" db:"paused"`
	Withdrawn    bool   `json:"wd" db:"withdrawn"`
	Score        int    `json:"s" db:"score"`
	Wins         int    `json:"w" db:"wins"`
	Berserks     int    `json:"b" db:"berserks"`
	Performance  int    `json:"e" db:"performance"`
	WinStreak    int    `json:"f" db:"win_streak"`
	ArrivalRank  int    `json:"n" db:"arrival_rank"`
}

// PairingRecord is the durable form of one game (or bye) in a tournament.
type PairingRecord struct {
	ID           string    `json:"_id" db:"id"`
	TournamentID string    `json:"tid" db:"tid"`
	White        string    `json:"wu" db:"white"`
	Black        string    `json:"bu" db:"black"`
	WhiteRating  int       `json:"wr" db:"white_rating"`
	BlackRating  int       `json:"br" db:"black_rating"`
	Result       string    `json:"r" db:"result"`
	Date         time.Time `json:"d" db:"date"`
	WhiteBerserk bool      `json:"wb" db:"white_berserk"`
	BlackBerserk bool      `json:"bb" db:"black_berserk"`
	Round        int       `json:"rd" db:"round"`
}

func (p PairingRecord) IsBye() bool { return p.Black == ByeOpponent }

type ChatRecord struct {
	TournamentID string    `json:"tid" db:"tid"`
	Type         string    `json:"type" db:"type"`
	User         string    `json:"user" db:"author"`
	Message      string    `json:"message" db:"message"`
	Room         string    `json:"room" db:"room"`
	Time         time.Time `json:"time" db:"time"`
}

// TournamentQuery filters ListTournaments; results are newest StartsAt first.
type TournamentQuery struct {
	Statuses []int
	Limit    int
}

func (q TournamentQuery) matches(status int) bool {
	if len(q.Statuses) == 0 {
		return true
	}
	for _, s := range q.Statuses {
		if s == status {
			return true
		}
	}
	return false
}
