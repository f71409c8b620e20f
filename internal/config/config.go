package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	HostLocal  = "local"
	HostRemote = "remote"
)

type AppConfig struct {
	StoreDriver string `yaml:"store_driver"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	RedisTTL    time.Duration `yaml:"-"`

	GameHostMode    string `yaml:"gamehost_mode"`
	GameHostURL     string `yaml:"gamehost_url"`
	GameHostWSURL   string `yaml:"gamehost_ws_url"`
	GameHostTimeout time.Duration `yaml:"-"`

	MaxChatLines       int  `yaml:"max_chat_lines"`
	PreloadLive        bool `yaml:"preload_live"`
	PreloadConcurrency int  `yaml:"preload_concurrency"`

	MetricsAddr  string        `yaml:"metrics_addr"`
	TickInterval time.Duration `yaml:"-"`
	Prod         bool          `yaml:"prod"`
}

// fileOverlay mirrors AppConfig for YAML files; durations are given in plain numbers.
type fileOverlay struct {
	AppConfig       `yaml:",inline"`
	RedisTTLHours   int `yaml:"redis_ttl_hours"`
	GameHostTimeout int `yaml:"gamehost_timeout_ms"`
	TickIntervalMS  int `yaml:"tick_interval_ms"`
}

// Load reads defaults, then .env, then the TOURNEY_CONFIG yaml file, then the environment.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		StoreDriver:        StoreMemory,
		GameHostMode:       HostLocal,
		GameHostTimeout:    3 * time.Second,
		MaxChatLines:       100,
		PreloadLive:        true,
		PreloadConcurrency: 4,
		MetricsAddr:        ":9108",
		TickInterval:       2 * time.Second,
	}

	// .env 파일은 없어도 무방
	_ = godotenv.Load()

	if path := strings.TrimSpace(os.Getenv("TOURNEY_CONFIG")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("STORE_DRIVER")); v != "" {
		cfg.StoreDriver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_TTL_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RedisTTL = time.Duration(n) * time.Hour
		}
	}

	if v := strings.TrimSpace(os.Getenv("GAMEHOST_MODE")); v != "" {
		cfg.GameHostMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("GAMEHOST_URL")); v != "" {
		cfg.GameHostURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GAMEHOST_WS_URL")); v != "" {
		cfg.GameHostWSURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GAMEHOST_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GameHostTimeout = time.Duration(n) * time.Millisecond
		}
	}

	if v := strings.TrimSpace(os.Getenv("MAX_CHAT_LINES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxChatLines = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PRELOAD_LIVE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PreloadLive = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("PRELOAD_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PreloadConcurrency = n
		}
	}
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("TICK_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TickInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("PROD")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Prod = b
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	ov := fileOverlay{AppConfig: *cfg}
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	next := ov.AppConfig
	next.RedisTTL = cfg.RedisTTL
	next.GameHostTimeout = cfg.GameHostTimeout
	next.TickInterval = cfg.TickInterval
	if ov.RedisTTLHours > 0 {
		next.RedisTTL = time.Duration(ov.RedisTTLHours) * time.Hour
	}
	if ov.GameHostTimeout > 0 {
		next.GameHostTimeout = time.Duration(ov.GameHostTimeout) * time.Millisecond
	}
	if ov.TickIntervalMS > 0 {
		next.TickInterval = time.Duration(ov.TickIntervalMS) * time.Millisecond
	}
	if next.MaxChatLines <= 0 {
		next.MaxChatLines = cfg.MaxChatLines
	}
	if next.PreloadConcurrency <= 0 {
		next.PreloadConcurrency = cfg.PreloadConcurrency
	}
	*cfg = next
	return nil
}

func (c *AppConfig) validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.GameHostMode {
	case HostLocal:
	case HostRemote:
		if c.GameHostURL == "" {
			return errors.New("GAMEHOST_URL is required")
		}
	default:
		return fmt.Errorf("unsupported GAMEHOST_MODE %q", c.GameHostMode)
	}
	return nil
}
