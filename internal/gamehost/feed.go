package gamehost

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-Tournament/internal/movecodec"
	"github.com/park285/Cheese-Tournament/internal/obslog"
	"github.com/park285/Cheese-Tournament/internal/tournament"
)

const eventGameEnd = "game_end"

// ResultEvent is one frame pushed by the game server.
type ResultEvent struct {
	Type         string `json:"type"`
	TournamentID string `json:"tid"`
	GameID       string `json:"gid"`
	White        string `json:"white,omitempty"`
	Black        string `json:"black,omitempty"`
	WhiteRating  int    `json:"white_rating,omitempty"`
	BlackRating  int    `json:"black_rating,omitempty"`
	Result       string `json:"result"`
	WhiteBerserk bool   `json:"white_berserk,omitempty"`
	BlackBerserk bool   `json:"black_berserk,omitempty"`
}

func (e ResultEvent) game() tournament.GameData {
	return tournament.GameData{
		ID:           e.GameID,
		White:        e.White,
		Black:        e.Black,
		WhiteRating:  e.WhiteRating,
		BlackRating:  e.BlackRating,
		Result:       movecodec.Result(e.Result),
		WhiteBerserk: e.WhiteBerserk,
		BlackBerserk: e.BlackBerserk,
	}
}

// ResultFeed subscribes to game-end pushes and reconnects with backoff.
type ResultFeed struct {
	wsURL   string
	handler ResultHandler

	conn  *websocket.Conn
	connM sync.Mutex

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewResultFeed(wsURL string, handler ResultHandler, maxReconnectAttempts int) *ResultFeed {
	return &ResultFeed{
		wsURL:                wsURL,
		handler:              handler,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
}

func (f *ResultFeed) Connect(ctx context.Context) error {
	f.rootCtx, f.rootCancel = context.WithCancel(context.Background())
	if err := f.dial(ctx); err != nil {
		f.scheduleReconnect()
		return err
	}
	return nil
}

func (f *ResultFeed) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, f.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	f.connM.Lock()
	f.conn = conn
	f.connM.Unlock()

	obslog.L().Info("result_feed_connected", zap.String("url", f.wsURL))
	f.wg.Add(2)
	go f.listen(conn)
	go f.pingLoop(conn)
	return nil
}

func (f *ResultFeed) listen(conn *websocket.Conn) {
	defer f.wg.Done()
	for {
		var ev ResultEvent
		if err := wsjson.Read(f.rootCtx, conn, &ev); err != nil {
			if f.isStopping() {
				return
			}
			obslog.L().Warn("result_feed_read_error", zap.Error(err))
			f.dropConn(conn, websocket.StatusGoingAway, "reconnect")
			f.scheduleReconnect()
			return
		}
		if ev.Type != eventGameEnd || ev.GameID == "" {
			continue
		}
		if !movecodec.Result(ev.Result).Terminated() {
			obslog.L().Warn("result_feed_bad_result", zap.String("gid", ev.GameID), zap.String("result", ev.Result))
			continue
		}
		if f.handler != nil {
			f.handler(f.rootCtx, ev.TournamentID, ev.game())
		}
	}
}

func (f *ResultFeed) pingLoop(conn *websocket.Conn) {
	defer f.wg.Done()
	t := time.NewTicker(f.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-f.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(f.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			if f.isStopping() || errors.Is(err, context.Canceled) {
				return
			}
			// 연속 2회 실패 시 재연결
			if failures++; failures >= 2 {
				f.dropConn(conn, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (f *ResultFeed) scheduleReconnect() {
	if f.maxReconnectAttempts <= 0 || f.isStopping() {
		return
	}
	go func() {
		for attempt := 1; attempt <= f.maxReconnectAttempts; attempt++ {
			select {
			case <-f.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			if err := f.dial(f.rootCtx); err == nil {
				return
			}
		}
		obslog.L().Error("result_feed_gave_up", zap.String("url", f.wsURL), zap.Int("attempts", f.maxReconnectAttempts))
	}()
}

func (f *ResultFeed) Close(ctx context.Context) error {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.connM.Lock()
	conn := f.conn
	f.connM.Unlock()
	if conn != nil {
		f.dropConn(conn, websocket.StatusNormalClosure, "close")
	}
	if f.rootCancel != nil {
		f.rootCancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (f *ResultFeed) dropConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	f.connM.Lock()
	if f.conn == conn {
		f.conn = nil
	}
	f.connM.Unlock()
	_ = conn.Close(code, reason)
}

func (f *ResultFeed) isStopping() bool {
	select {
	case <-f.stopCh:
		return true
	default:
		return false
	}
}
