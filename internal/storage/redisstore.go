package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter stores records as JSON values in hashes. Hash iteration has
// no order, so ordered player queries are not supported.
type RedisAdapter struct {
	rdb     *redis.Client
	ttl     time.Duration
	maxChat int
}

type RedisOptions struct {
	// TTL applies to every tournament key; zero keeps keys forever.
	TTL time.Duration
	// MaxChat caps the stored chat list per tournament.
	MaxChat int
}

func NewRedisAdapter(rdb *redis.Client, opts RedisOptions) *RedisAdapter {
	if opts.MaxChat <= 0 {
		opts.MaxChat = 100
	}
	return &RedisAdapter{rdb: rdb, ttl: opts.TTL, maxChat: opts.MaxChat}
}

// DialRedis connects and pings the server named by a redis:// URL.
func DialRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("REDIS_URL required for redis storage")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

func keyTournament(id string) string { return "tourney:" + strings.TrimSpace(id) }
func keyPlayers(id string) string    { return keyTournament(id) + ":players" }
func keyPairings(id string) string   { return keyTournament(id) + ":pairings" }
func keyChat(id string) string       { return keyTournament(id) + ":chat" }
func keyIndex() string               { return "tourney:index" }

func (a *RedisAdapter) SupportsOrderedQuery() bool { return false }

func (a *RedisAdapter) LoadTournament(ctx context.Context, id string) (*TournamentRecord, error) {
	raw, err := a.rdb.Get(ctx, keyTournament(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tournament: %w", err)
	}
	var rec TournamentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode tournament: %w", err)
	}
	return &rec, nil
}

func (a *RedisAdapter) ListTournaments(ctx context.Context, q TournamentQuery) ([]TournamentRecord, error) {
	ids, err := a.rdb.SMembers(ctx, keyIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("list tournament ids: %w", err)
	}
	if len(ids) == 0 {
		return []TournamentRecord{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyTournament(id)
	}
	vals, err := a.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load tournaments: %w", err)
	}
	out := make([]TournamentRecord, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// expired or removed since SMEMBERS
			continue
		}
		var rec TournamentRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode tournament: %w", err)
		}
		if q.matches(rec.Status) {
			out = append(out, rec)
		}
	}
	sortTournamentsNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (a *RedisAdapter) UpsertTournament(ctx context.Context, rec TournamentRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyTournament(rec.ID), raw, a.ttl)
		pipe.SAdd(ctx, keyIndex(), rec.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert tournament: %w", err)
	}
	return nil
}

func (a *RedisAdapter) ListPlayers(ctx context.Context, tid string, _ bool) ([]PlayerRecord, error) {
	m, err := a.rdb.HGetAll(ctx, keyPlayers(tid)).Result()
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make([]PlayerRecord, 0, len(m))
	for _, v := range m {
		var rec PlayerRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("decode player: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (a *RedisAdapter) UpsertPlayer(ctx context.Context, rec PlayerRecord) error {
	return a.hset(ctx, keyPlayers(rec.TournamentID), rec.UserID, rec)
}

func (a *RedisAdapter) ListPairings(ctx context.Context, tid string) ([]PairingRecord, error) {
	m, err := a.rdb.HGetAll(ctx, keyPairings(tid)).Result()
	if err != nil {
		return nil, fmt.Errorf("list pairings: %w", err)
	}
	out := make([]PairingRecord, 0, len(m))
	for _, v := range m {
		var rec PairingRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("decode pairing: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (a *RedisAdapter) UpsertPairing(ctx context.Context, rec PairingRecord) error {
	return a.hset(ctx, keyPairings(rec.TournamentID), rec.ID, rec)
}

func (a *RedisAdapter) hset(ctx context.Context, key, field string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, raw)
		if a.ttl > 0 {
			pipe.Expire(ctx, key, a.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (a *RedisAdapter) RecentChat(ctx context.Context, tid string, limit int) ([]ChatRecord, error) {
	if limit <= 0 || limit > a.maxChat {
		limit = a.maxChat
	}
	vals, err := a.rdb.LRange(ctx, keyChat(tid), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent chat: %w", err)
	}
	out := make([]ChatRecord, 0, len(vals))
	for _, v := range vals {
		var rec ChatRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("decode chat: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (a *RedisAdapter) AppendChat(ctx context.Context, rec ChatRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := keyChat(rec.TournamentID)
	_, err = a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		pipe.LTrim(ctx, key, int64(-a.maxChat), -1)
		if a.ttl > 0 {
			pipe.Expire(ctx, key, a.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append chat: %w", err)
	}
	return nil
}

func (a *RedisAdapter) Close() error {
	if a == nil || a.rdb == nil {
		return nil
	}
	return a.rdb.Close()
}
