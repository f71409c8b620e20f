package gamehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/Cheese-Tournament/internal/movecodec"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/tournament"
	"github.com/park285/Cheese-Tournament/internal/variant"
)

// RemoteClient pulls live game state from an external game server.
type RemoteClient struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type RemoteOption func(*RemoteClient)

func WithTimeout(d time.Duration) RemoteOption {
	return func(c *RemoteClient) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithRetry(max int) RemoteOption {
	return func(c *RemoteClient) { c.retryMax = max }
}

// WithDial replaces the transport dialer; tests use an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) RemoteOption {
	return func(c *RemoteClient) { c.http.Dial = dial }
}

func NewRemoteClient(baseURL string, opts ...RemoteOption) *RemoteClient {
	c := &RemoteClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// liveGameDTO is the game server's JSON shape. Moves arrive in the compact
// encoding and are decoded with the family the server names.
type liveGameDTO struct {
	ID     string   `json:"id"`
	White  string   `json:"white"`
	Black  string   `json:"black"`
	FEN    string   `json:"fen"`
	Family string   `json:"family"`
	Log    []string `json:"log"`
	Result string   `json:"result"`
}

func familyOf(name string) movecodec.Family {
	switch name {
	case movecodec.Flipping.String():
		return movecodec.Flipping
	case movecodec.Duck.String():
		return movecodec.Duck
	default:
		return movecodec.Standard
	}
}

func (c *RemoteClient) CurrentState(ctx context.Context, gameID string) (*tournament.LiveGame, error) {
	var dto liveGameDTO
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/games/"+url.PathEscape(gameID), nil, &dto); err != nil {
		return nil, err
	}
	moves, err := movecodec.DecodeLog(familyOf(dto.Family), dto.Log)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", gameID, err)
	}
	res := movecodec.Result(dto.Result)
	if res == "" {
		res = movecodec.Unterminated
	}
	return &tournament.LiveGame{
		ID:     dto.ID,
		White:  dto.White,
		Black:  dto.Black,
		FEN:    dto.FEN,
		Moves:  moves,
		Ply:    len(moves),
		Result: res,
	}, nil
}

type startGameDTO struct {
	ID          string `json:"id"`
	Tournament  string `json:"tid"`
	Variant     string `json:"variant"`
	FEN         string `json:"fen,omitempty"`
	White       string `json:"white"`
	Black       string `json:"black"`
	WhiteRating int    `json:"whiteRating"`
	BlackRating int    `json:"blackRating"`
	Round       int    `json:"round"`
}

// StartGame asks the game server to host a paired game. The server later
// reports the result on the result feed.
func (c *RemoteClient) StartGame(ctx context.Context, rec storage.PairingRecord, v variant.Descriptor, startFEN string) error {
	body, err := json.Marshal(startGameDTO{
		ID:          rec.ID,
		Tournament:  rec.TournamentID,
		Variant:     v.ServerName(),
		FEN:         startFEN,
		White:       rec.White,
		Black:       rec.Black,
		WhiteRating: rec.WhiteRating,
		BlackRating: rec.BlackRating,
		Round:       rec.Round,
	})
	if err != nil {
		return err
	}
	var ack struct {
		ID string `json:"id"`
	}
	return c.doJSON(ctx, fasthttp.MethodPost, "/api/games", body, &ack)
}

func (c *RemoteClient) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			status := resp.StatusCode()
			switch {
			case status == fasthttp.StatusNotFound:
				return ErrGameNotFound
			case status >= 200 && status < 300:
				if len(resp.Body()) == 0 {
					return nil
				}
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
				return nil
			default:
				lastErr = fmt.Errorf("game host error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
				if !shouldRetryStatus(status) {
					return lastErr
				}
			}
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *RemoteClient) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
