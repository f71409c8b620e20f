package gamehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Tournament/internal/movecodec"
	"github.com/park285/Cheese-Tournament/internal/obslog"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/tournament"
	"github.com/park285/Cheese-Tournament/internal/variant"
)

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrGameOver           = errors.New("game is over")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrNotInGame          = errors.New("user not in game")
	ErrIllegalMove        = errors.New("illegal move")
	ErrUnsupportedVariant = errors.New("variant is not playable on the local host")
)

// ResultHandler receives each game once, when it terminates.
type ResultHandler func(ctx context.Context, tid string, g tournament.GameData)

// hostedGame is the stored form. Moves are kept in the compact move
// encoding; the board is rebuilt from StartFEN by replaying them.
type hostedGame struct {
	ID           string           `json:"id"`
	TournamentID string           `json:"tid"`
	White        string           `json:"white"`
	Black        string           `json:"black"`
	WhiteRating  int              `json:"white_rating"`
	BlackRating  int              `json:"black_rating"`
	Round        int              `json:"round"`
	StartFEN     string           `json:"start_fen,omitempty"`
	FEN          string           `json:"fen"`
	Log          []string         `json:"log"`
	Result       movecodec.Result `json:"result"`
	WhiteBerserk bool             `json:"white_berserk"`
	BlackBerserk bool             `json:"black_berserk"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (g *hostedGame) live() *tournament.LiveGame {
	moves, err := movecodec.DecodeLog(movecodec.Standard, g.Log)
	if err != nil {
		moves = nil
	}
	return &tournament.LiveGame{
		ID:     g.ID,
		White:  g.White,
		Black:  g.Black,
		FEN:    g.FEN,
		Moves:  moves,
		Ply:    len(g.Log),
		Result: g.Result,
	}
}

func (g *hostedGame) data() tournament.GameData {
	return tournament.GameData{
		ID:           g.ID,
		White:        g.White,
		Black:        g.Black,
		WhiteRating:  g.WhiteRating,
		BlackRating:  g.BlackRating,
		Result:       g.Result,
		Date:         g.CreatedAt,
		WhiteBerserk: g.WhiteBerserk,
		BlackBerserk: g.BlackBerserk,
		Round:        g.Round,
	}
}

// LocalHost adjudicates standard chess in process. When a redis client is
// attached every game is mirrored there so its state survives a restart.
type LocalHost struct {
	mu    sync.Mutex
	games map[string]*hostedGame
	rdb   *redis.Client
	ttl   time.Duration

	onResult ResultHandler
}

type LocalOption func(*LocalHost)

func WithRedis(rdb *redis.Client, ttl time.Duration) LocalOption {
	return func(h *LocalHost) {
		h.rdb = rdb
		h.ttl = ttl
	}
}

func NewLocalHost(opts ...LocalOption) *LocalHost {
	h := &LocalHost{games: make(map[string]*hostedGame), ttl: 24 * time.Hour}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnResult installs the handler for terminated games.
func (h *LocalHost) OnResult(cb ResultHandler) {
	h.mu.Lock()
	h.onResult = cb
	h.mu.Unlock()
}

func gameKey(id string) string { return "tourney:game:" + strings.TrimSpace(id) }

// StartGame hosts a freshly paired game.
func (h *LocalHost) StartGame(ctx context.Context, rec storage.PairingRecord, v variant.Descriptor, startFEN string) error {
	if v.ID != "chess" || (v.Shuffle && startFEN == "") {
		return fmt.Errorf("%w: %s", ErrUnsupportedVariant, v.ServerName())
	}
	game, err := replay(startFEN, nil)
	if err != nil {
		return err
	}
	now := time.Now()
	g := &hostedGame{
		ID:           rec.ID,
		TournamentID: rec.TournamentID,
		White:        rec.White,
		Black:        rec.Black,
		WhiteRating:  rec.WhiteRating,
		BlackRating:  rec.BlackRating,
		Round:        rec.Round,
		StartFEN:     startFEN,
		FEN:          game.FEN(),
		Result:       movecodec.Unterminated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	h.mu.Lock()
	h.games[g.ID] = g
	h.mu.Unlock()
	return h.save(ctx, g)
}

// Play applies a UCI move for the side to move.
func (h *LocalHost) Play(ctx context.Context, gameID, userID, move string) (*tournament.LiveGame, error) {
	h.mu.Lock()
	g, err := h.lookup(ctx, gameID)
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	if g.Result.Terminated() {
		h.mu.Unlock()
		return nil, ErrGameOver
	}
	game, err := replay(g.StartFEN, g.Log)
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	side := sideOf(g, userID)
	if side == nchess.NoColor {
		h.mu.Unlock()
		return nil, ErrNotInGame
	}
	if game.Position().Turn() != side {
		h.mu.Unlock()
		return nil, ErrNotYourTurn
	}
	uci := strings.ToLower(strings.TrimSpace(move))
	code, err := movecodec.Encode(movecodec.Standard, uci)
	if err != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	g.Log = append(g.Log, code)
	g.FEN = game.FEN()
	g.UpdatedAt = time.Now()
	switch game.Outcome() {
	case nchess.WhiteWon:
		g.Result = movecodec.WhiteWins
	case nchess.BlackWon:
		g.Result = movecodec.BlackWins
	case nchess.Draw:
		g.Result = movecodec.Draw
	}
	snapshot := *g
	cb := h.onResult
	h.mu.Unlock()

	if err := h.save(ctx, &snapshot); err != nil {
		return nil, err
	}
	if snapshot.Result.Terminated() {
		h.report(ctx, cb, &snapshot)
	}
	return snapshot.live(), nil
}

// Berserk marks a side as berserk. Only allowed before its first move.
func (h *LocalHost) Berserk(ctx context.Context, gameID, userID string) error {
	h.mu.Lock()
	g, err := h.lookup(ctx, gameID)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	switch {
	case g.Result.Terminated():
		h.mu.Unlock()
		return ErrGameOver
	case userID == g.White && len(g.Log) == 0:
		g.WhiteBerserk = true
	case userID == g.Black && len(g.Log) <= 1:
		g.BlackBerserk = true
	case userID != g.White && userID != g.Black:
		h.mu.Unlock()
		return ErrNotInGame
	default:
		h.mu.Unlock()
		return nil
	}
	snapshot := *g
	h.mu.Unlock()
	return h.save(ctx, &snapshot)
}

// Resign ends the game in favour of the opponent.
func (h *LocalHost) Resign(ctx context.Context, gameID, userID string) error {
	h.mu.Lock()
	g, err := h.lookup(ctx, gameID)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if g.Result.Terminated() {
		h.mu.Unlock()
		return ErrGameOver
	}
	switch userID {
	case g.White:
		g.Result = movecodec.BlackWins
	case g.Black:
		g.Result = movecodec.WhiteWins
	default:
		h.mu.Unlock()
		return ErrNotInGame
	}
	g.UpdatedAt = time.Now()
	snapshot := *g
	cb := h.onResult
	h.mu.Unlock()

	if err := h.save(ctx, &snapshot); err != nil {
		return err
	}
	h.report(ctx, cb, &snapshot)
	return nil
}

func (h *LocalHost) CurrentState(ctx context.Context, gameID string) (*tournament.LiveGame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, err := h.lookup(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return g.live(), nil
}

func (h *LocalHost) report(ctx context.Context, cb ResultHandler, g *hostedGame) {
	obslog.L().Info("hosted_game_finished",
		zap.String("tid", g.TournamentID),
		zap.String("gid", g.ID),
		zap.String("result", string(g.Result)),
		zap.Int("ply", len(g.Log)),
	)
	if cb != nil {
		cb(ctx, g.TournamentID, g.data())
	}
}

// lookup must be called with h.mu held. Games missing in memory are
// recovered from redis.
func (h *LocalHost) lookup(ctx context.Context, id string) (*hostedGame, error) {
	if g, ok := h.games[id]; ok {
		return g, nil
	}
	if h.rdb == nil {
		return nil, ErrGameNotFound
	}
	raw, err := h.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	var g hostedGame
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode hosted game %s: %w", id, err)
	}
	h.games[id] = &g
	return &g, nil
}

func (h *LocalHost) save(ctx context.Context, g *hostedGame) error {
	if h.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return h.rdb.Set(ctx, gameKey(g.ID), raw, h.ttl).Err()
}

// replay rebuilds the board from the start position and an encoded log.
func replay(startFEN string, log []string) (*nchess.Game, error) {
	var game *nchess.Game
	if startFEN == "" {
		game = nchess.NewGame()
	} else {
		opt, err := nchess.FEN(startFEN)
		if err != nil {
			return nil, fmt.Errorf("start position: %w", err)
		}
		game = nchess.NewGame(opt)
	}
	moves, err := movecodec.DecodeLog(movecodec.Standard, log)
	if err != nil {
		return nil, err
	}
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay %s: %w", mv, err)
		}
	}
	return game, nil
}

func sideOf(g *hostedGame, userID string) nchess.Color {
	switch userID {
	case g.White:
		return nchess.White
	case g.Black:
		return nchess.Black
	default:
		return nchess.NoColor
	}
}
