package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Tournament/internal/config"
	"github.com/park285/Cheese-Tournament/internal/gamehost"
	"github.com/park285/Cheese-Tournament/internal/metrics"
	"github.com/park285/Cheese-Tournament/internal/obslog"
	"github.com/park285/Cheese-Tournament/internal/registry"
	"github.com/park285/Cheese-Tournament/internal/storage"
)

const feedReconnectAttempts = 10

type Deps struct {
	Store    storage.Adapter
	Registry *registry.Registry
	Metrics  *metrics.Metrics

	// exactly one of Local and Remote is set
	Local  *gamehost.LocalHost
	Remote *gamehost.RemoteClient
	Feed   *gamehost.ResultFeed

	rdb *redis.Client
}

// New wires storage, the game host and the registry from cfg. Nothing is
// preloaded and the result feed is not connected yet.
func New(ctx context.Context, cfg *config.AppConfig, reg prometheus.Registerer) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	d := &Deps{Metrics: metrics.New(reg)}

	// Redis is shared by the redis store and the local host mirror
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := storage.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		d.rdb = rdb
	}

	store, err := newStore(ctx, cfg, d.rdb)
	if err != nil {
		d.closeRedis()
		return nil, err
	}
	d.Store = store

	opts := registry.Options{
		Metrics:            d.Metrics,
		MaxChat:            cfg.MaxChatLines,
		PreloadConcurrency: cfg.PreloadConcurrency,
	}
	switch cfg.GameHostMode {
	case config.HostRemote:
		d.Remote = gamehost.NewRemoteClient(cfg.GameHostURL, gamehost.WithTimeout(cfg.GameHostTimeout))
		opts.Host, opts.Starter = d.Remote, d.Remote
	default:
		var hostOpts []gamehost.LocalOption
		if d.rdb != nil {
			hostOpts = append(hostOpts, gamehost.WithRedis(d.rdb, cfg.RedisTTL))
		}
		d.Local = gamehost.NewLocalHost(hostOpts...)
		opts.Host, opts.Starter = d.Local, d.Local
	}

	d.Registry = registry.New(store, opts)
	if d.Local != nil {
		d.Local.OnResult(d.Registry.OnResult)
	}
	if d.Remote != nil && strings.TrimSpace(cfg.GameHostWSURL) != "" {
		d.Feed = gamehost.NewResultFeed(cfg.GameHostWSURL, d.Registry.OnResult, feedReconnectAttempts)
	}

	obslog.L().Info("builder_ready",
		zap.String("store", cfg.StoreDriver),
		zap.String("gamehost", cfg.GameHostMode),
		zap.Bool("ordered_query", store.SupportsOrderedQuery()),
		zap.Bool("result_feed", d.Feed != nil),
	)
	return d, nil
}

func newStore(ctx context.Context, cfg *config.AppConfig, rdb *redis.Client) (storage.Adapter, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		if rdb == nil {
			return nil, errors.New("REDIS_URL is required for redis storage")
		}
		return storage.NewRedisAdapter(rdb, storage.RedisOptions{TTL: cfg.RedisTTL, MaxChat: cfg.MaxChatLines}), nil
	case config.StorePostgres:
		pg, err := storage.NewPostgresAdapter(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return pg, nil
	default:
		return storage.NewMemoryAdapter(), nil
	}
}

// Close releases the feed, the store and the shared redis client.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if d.Feed != nil {
		errs = append(errs, d.Feed.Close(ctx))
	}
	if d.Store != nil {
		// the redis store closes the shared client itself
		if _, ok := d.Store.(*storage.RedisAdapter); ok {
			d.rdb = nil
		}
		errs = append(errs, d.Store.Close())
	}
	d.closeRedis()
	return errors.Join(errs...)
}

func (d *Deps) closeRedis() {
	if d.rdb != nil {
		_ = d.rdb.Close()
		d.rdb = nil
	}
}
