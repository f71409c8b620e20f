package tournament

import (
	"context"
	"fmt"
	"time"

	"github.com/park285/Cheese-Tournament/internal/movecodec"
	"github.com/park285/Cheese-Tournament/internal/storage"
)

// GameData is a game between two participants as the engine scores it.
type GameData struct {
	ID           string
	White        string
	Black        string
	WhiteRating  int
	BlackRating  int
	Result       movecodec.Result
	Date         time.Time
	WhiteBerserk bool
	BlackBerserk bool
	Round        int
}

func gameFromRecord(r storage.PairingRecord) (GameData, error) {
	res, err := movecodec.ParseResultCode(r.Result)
	if err != nil {
		return GameData{}, err
	}
	return GameData{
		ID:           r.ID,
		White:        r.White,
		Black:        r.Black,
		WhiteRating:  r.WhiteRating,
		BlackRating:  r.BlackRating,
		Result:       res,
		Date:         r.Date,
		WhiteBerserk: r.WhiteBerserk,
		BlackBerserk: r.BlackBerserk,
		Round:        r.Round,
	}, nil
}

func (g GameData) record(tid string) (storage.PairingRecord, error) {
	code, err := g.Result.Code()
	if err != nil {
		return storage.PairingRecord{}, fmt.Errorf("game %s: %w", g.ID, err)
	}
	return storage.PairingRecord{
		ID:           g.ID,
		TournamentID: tid,
		White:        g.White,
		Black:        g.Black,
		WhiteRating:  g.WhiteRating,
		BlackRating:  g.BlackRating,
		Result:       code,
		Date:         g.Date,
		WhiteBerserk: g.WhiteBerserk,
		BlackBerserk: g.BlackBerserk,
		Round:        g.Round,
	}, nil
}

// LiveGame is the state a GameHost reports for a game in progress.
type LiveGame struct {
	ID     string
	White  string
	Black  string
	FEN    string
	Moves  []string
	Ply    int
	Result movecodec.Result
}

// GameHost plays the games. CurrentState is pulled for ongoing games on
// reload. Results are pushed separately through RecordGameResult.
type GameHost interface {
	CurrentState(ctx context.Context, gameID string) (*LiveGame, error)
}

// OngoingGame is a paired game that has not reported a result yet.
// Live is nil when the host could not be reached on reload.
type OngoingGame struct {
	Game      GameData
	Live      *LiveGame
	WhiteRank int
	BlackRank int
}
