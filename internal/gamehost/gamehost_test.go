package gamehost

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-Tournament/internal/movecodec"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/tournament"
	"github.com/park285/Cheese-Tournament/internal/variant"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func chessVariant(t *testing.T) variant.Descriptor {
	t.Helper()
	v, err := variant.ByShortCode("n")
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestLocalHostPlaysToMate(t *testing.T) {
	ctx := context.Background()
	rdb := newRedis(t)
	h := NewLocalHost(WithRedis(rdb, time.Hour))

	var got []tournament.GameData
	h.OnResult(func(_ context.Context, tid string, g tournament.GameData) {
		if tid != "t1" {
			t.Errorf("tid %q", tid)
		}
		got = append(got, g)
	})

	rec := storage.PairingRecord{ID: "g1", TournamentID: "t1", White: "w", Black: "b", WhiteRating: 1500, BlackRating: 1400, Round: 1}
	if err := h.StartGame(ctx, rec, chessVariant(t), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Play(ctx, "g1", "b", "e7e5"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := h.Play(ctx, "g1", "w", "e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := h.Play(ctx, "g1", "x", "e2e4"); !errors.Is(err, ErrNotInGame) {
		t.Fatalf("expected ErrNotInGame, got %v", err)
	}
	if err := h.Berserk(ctx, "g1", "w"); err != nil {
		t.Fatal(err)
	}

	moves := []struct{ who, uci string }{{"w", "f2f3"}, {"b", "e7e5"}, {"w", "g2g4"}, {"b", "d8h4"}}
	var live *tournament.LiveGame
	for _, m := range moves {
		var err error
		if live, err = h.Play(ctx, "g1", m.who, m.uci); err != nil {
			t.Fatalf("%s %s: %v", m.who, m.uci, err)
		}
	}
	if live.Result != movecodec.BlackWins || live.Ply != 4 || strings.Join(live.Moves, " ") != "f2f3 e7e5 g2g4 d8h4" {
		t.Fatalf("live %+v", live)
	}
	if len(got) != 1 || got[0].Result != movecodec.BlackWins || !got[0].WhiteBerserk || got[0].BlackRating != 1400 {
		t.Fatalf("results reported %+v", got)
	}
	if _, err := h.Play(ctx, "g1", "w", "e2e4"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}

	// a fresh host on the same redis recovers the stored game
	again := NewLocalHost(WithRedis(rdb, time.Hour))
	st, err := again.CurrentState(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if st.FEN != live.FEN || st.Result != movecodec.BlackWins {
		t.Fatalf("recovered %+v", st)
	}
}

func TestLocalHostResignAndUnsupported(t *testing.T) {
	ctx := context.Background()
	h := NewLocalHost()
	var reported int
	h.OnResult(func(context.Context, string, tournament.GameData) { reported++ })

	if err := h.StartGame(ctx, storage.PairingRecord{ID: "g2", White: "w", Black: "b"}, chessVariant(t), ""); err != nil {
		t.Fatal(err)
	}
	if err := h.Resign(ctx, "g2", "w"); err != nil {
		t.Fatal(err)
	}
	st, _ := h.CurrentState(ctx, "g2")
	if st.Result != movecodec.BlackWins || reported != 1 {
		t.Fatalf("resign: %+v reported=%d", st, reported)
	}
	if err := h.Resign(ctx, "g2", "b"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if _, err := h.CurrentState(ctx, "nope"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}

	zh, _ := variant.ByShortCode("h")
	if err := h.StartGame(ctx, storage.PairingRecord{ID: "g3"}, zh, ""); !errors.Is(err, ErrUnsupportedVariant) {
		t.Fatalf("expected ErrUnsupportedVariant, got %v", err)
	}
}

func newRemote(t *testing.T, handler fasthttp.RequestHandler) *RemoteClient {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return NewRemoteClient("http://gamehost/", WithRetry(3), WithTimeout(2*time.Second),
		WithDial(func(string) (net.Conn, error) { return ln.Dial() }))
}

func TestRemoteClientCurrentState(t *testing.T) {
	log, err := movecodec.EncodeLog(movecodec.Standard, []string{"e2e4", "e7e5"})
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	c := newRemote(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/api/games/g1":
			if calls.Add(1) == 1 {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				return
			}
			body, _ := json.Marshal(liveGameDTO{ID: "g1", White: "w", Black: "b", FEN: "fen", Family: "standard", Log: log, Result: "*"})
			ctx.SetContentType("application/json")
			ctx.SetBody(body)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})

	st, err := c.CurrentState(context.Background(), "g1")
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
	if st.Ply != 2 || st.Moves[1] != "e7e5" || st.Result != movecodec.Unterminated {
		t.Fatalf("state %+v", st)
	}
	if _, err := c.CurrentState(context.Background(), "missing"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestRemoteClientStartGame(t *testing.T) {
	got := make(chan startGameDTO, 1)
	c := newRemote(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/api/games" || !ctx.IsPost() {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		var dto startGameDTO
		if err := json.Unmarshal(ctx.PostBody(), &dto); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		got <- dto
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"id":"` + dto.ID + `"}`)
	})
	v, err := variant.Lookup("h", false)
	if err != nil {
		t.Fatal(err)
	}
	rec := storage.PairingRecord{ID: "g7", TournamentID: "t1", White: "w", Black: "b", WhiteRating: 1600, Round: 2}
	if err := c.StartGame(context.Background(), rec, v, ""); err != nil {
		t.Fatal(err)
	}
	dto := <-got
	if dto.ID != "g7" || dto.Tournament != "t1" || dto.Variant != "crazyhouse" || dto.WhiteRating != 1600 || dto.Round != 2 {
		t.Fatalf("request %+v", dto)
	}
}

func TestResultFeedDeliversGameEnds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		_ = wsjson.Write(ctx, c, ResultEvent{Type: "crowd", GameID: "x"})
		_ = wsjson.Write(ctx, c, ResultEvent{Type: eventGameEnd, GameID: "g0", Result: "*"})
		_ = wsjson.Write(ctx, c, ResultEvent{Type: eventGameEnd, TournamentID: "t1", GameID: "g1", Result: "1/2-1/2", BlackBerserk: true})
		_, _, _ = c.Read(ctx)
	}))
	defer srv.Close()

	got := make(chan tournament.GameData, 4)
	feed := NewResultFeed("ws"+strings.TrimPrefix(srv.URL, "http"), func(_ context.Context, tid string, g tournament.GameData) {
		if tid == "t1" {
			got <- g
		}
	}, 0)
	if err := feed.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case g := <-got:
		if g.ID != "g1" || g.Result != movecodec.Draw || !g.BlackBerserk {
			t.Fatalf("event %+v", g)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no result delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := feed.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
