// Package config resolves service settings from defaults, an optional TOML
// file, a .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type ServerCfg struct {
	Addr string `toml:"addr"`
}

type LogCfg struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
	SampleN int    `toml:"sample_n"`
}

type DatasetCfg struct {
	Path           string `toml:"path"`
	CacheSize      int    `toml:"cache_size"`
	UploadMaxBytes int64  `toml:"upload_max_bytes"`
}

type CacheCfg struct {
	Enabled   bool          `toml:"enabled"`
	RedisAddr string        `toml:"redis_addr"`
	OpTimeout time.Duration `toml:"op_timeout"`
	TTLCold   time.Duration `toml:"ttl_cold"`
	TTLWarm   time.Duration `toml:"ttl_warm"`
	TTLHot    time.Duration `toml:"ttl_hot"`
}

type HotnessCfg struct {
	Threshold float64       `toml:"threshold"`
	HalfLife  time.Duration `toml:"half_life"`
	LogSample float64       `toml:"log_sample"`
}

type AuthCfg struct {
	Enabled    bool              `toml:"enabled"`
	Users      map[string]string `toml:"users"`
	SessionTTL time.Duration     `toml:"session_ttl"`
	SessionMax int               `toml:"session_max"`
}

type HistoryCfg struct {
	Path string `toml:"path"`
}

type InvalidationCfg struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	GroupID string   `toml:"group_id"`

	// publish executed runs to RunsTopic on the same brokers
	RunEvents bool   `toml:"run_events"`
	RunsTopic string `toml:"runs_topic"`
}

type MetricsCfg struct {
	Enabled bool `toml:"enabled"`
}

type Config struct {
	Server       ServerCfg       `toml:"server"`
	Log          LogCfg          `toml:"log"`
	Dataset      DatasetCfg      `toml:"dataset"`
	Cache        CacheCfg        `toml:"cache"`
	Hotness      HotnessCfg      `toml:"hotness"`
	Auth         AuthCfg         `toml:"auth"`
	History      HistoryCfg      `toml:"history"`
	Invalidation InvalidationCfg `toml:"invalidation"`
	Metrics      MetricsCfg      `toml:"metrics"`
}

func Default() Config {
	return Config{
		Server: ServerCfg{Addr: ":8090"},
		Log:    LogCfg{Level: "info"},
		Dataset: DatasetCfg{
			Path:           "datum_Sample_data.csv",
			CacheSize:      16,
			UploadMaxBytes: 64 << 20,
		},
		Cache: CacheCfg{
			Enabled:   false,
			RedisAddr: "localhost:6379",
			OpTimeout: 250 * time.Millisecond,
			TTLCold:   30 * time.Second,
			TTLWarm:   5 * time.Minute,
			TTLHot:    30 * time.Minute,
		},
		Hotness: HotnessCfg{
			Threshold: 5,
			HalfLife:  5 * time.Minute,
			LogSample: 0.01,
		},
		Auth: AuthCfg{
			Enabled:    true,
			Users:      map[string]string{},
			SessionTTL: 12 * time.Hour,
			SessionMax: 10000,
		},
		Invalidation: InvalidationCfg{
			Brokers:   []string{"localhost:9092"},
			Topic:     "hexselect-datasets",
			GroupID:   "hexselect",
			RunsTopic: "hexselect-runs",
		},
		Metrics: MetricsCfg{Enabled: true},
	}
}

// FromEnv is Default overridden by the environment. Malformed values keep
// their defaults.
func FromEnv() Config {
	cfg := Default()
	_ = applyEnv(&cfg)
	return cfg
}

// Load resolves the configuration and validates it for serving.
func Load(path string) (Config, error) {
	cfg, err := Resolve(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Resolve applies path (when non-empty) and then the environment on top of
// the defaults. A .env file in the working directory is read first;
// variables already set in the process win over it.
func Resolve(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("reading .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("HEXSELECT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(c *Config) error {
	c.Server.Addr = getenv("ADDR", c.Server.Addr)

	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)
	c.Log.Console = getbool("LOG_CONSOLE", c.Log.Console)
	c.Log.SampleN = getint("LOG_SAMPLE_N", c.Log.SampleN)

	c.Dataset.Path = getenv("DATASET_PATH", c.Dataset.Path)
	c.Dataset.CacheSize = getint("DATASET_CACHE_SIZE", c.Dataset.CacheSize)
	c.Dataset.UploadMaxBytes = getint64("UPLOAD_MAX_BYTES", c.Dataset.UploadMaxBytes)

	c.Cache.Enabled = getbool("CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.RedisAddr = getenv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.OpTimeout = getduration("CACHE_OP_TIMEOUT", c.Cache.OpTimeout)
	c.Cache.TTLCold = getduration("CACHE_TTL_COLD", c.Cache.TTLCold)
	c.Cache.TTLWarm = getduration("CACHE_TTL_WARM", c.Cache.TTLWarm)
	c.Cache.TTLHot = getduration("CACHE_TTL_HOT", c.Cache.TTLHot)

	c.Hotness.Threshold = getfloat("HOT_THRESHOLD", c.Hotness.Threshold)
	c.Hotness.HalfLife = getduration("HOT_HALF_LIFE", c.Hotness.HalfLife)
	c.Hotness.LogSample = getfloat("LOG_HOTNESS_SAMPLE", c.Hotness.LogSample)

	c.Auth.Enabled = getbool("AUTH_ENABLED", c.Auth.Enabled)
	if v := strings.TrimSpace(os.Getenv("AUTH_USERS")); v != "" {
		users, err := parseUsers(v)
		if err != nil {
			return err
		}
		c.Auth.Users = users
	}
	c.Auth.SessionTTL = getduration("SESSION_TTL", c.Auth.SessionTTL)
	c.Auth.SessionMax = getint("SESSION_MAX", c.Auth.SessionMax)

	c.History.Path = getenv("HISTORY_PATH", c.History.Path)

	c.Invalidation.Enabled = getbool("INVALIDATION_ENABLED", c.Invalidation.Enabled)
	if v := getenv("KAFKA_BROKERS", ""); v != "" {
		c.Invalidation.Brokers = splitCSV(v)
	}
	c.Invalidation.Topic = getenv("KAFKA_TOPIC", c.Invalidation.Topic)
	c.Invalidation.GroupID = getenv("KAFKA_GROUP_ID", c.Invalidation.GroupID)
	c.Invalidation.RunEvents = getbool("RUN_EVENTS_ENABLED", c.Invalidation.RunEvents)
	c.Invalidation.RunsTopic = getenv("KAFKA_RUNS_TOPIC", c.Invalidation.RunsTopic)

	c.Metrics.Enabled = getbool("METRICS_ENABLED", c.Metrics.Enabled)
	return nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Dataset.CacheSize <= 0 {
		errs = append(errs, errors.New("dataset.cache_size must be > 0"))
	}
	if c.Dataset.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("dataset.upload_max_bytes must be > 0"))
	}
	if c.Cache.Enabled && c.Cache.RedisAddr == "" {
		errs = append(errs, errors.New("cache.redis_addr is required when the cache is enabled"))
	}
	if c.Auth.Enabled && len(c.Auth.Users) == 0 {
		errs = append(errs, errors.New("auth is enabled but no users are configured (AUTH_USERS)"))
	}
	if (c.Invalidation.Enabled || c.Invalidation.RunEvents) && len(c.Invalidation.Brokers) == 0 {
		errs = append(errs, errors.New("invalidation.brokers is required when invalidation is enabled"))
	}
	if c.Hotness.Threshold <= 0 {
		errs = append(errs, errors.New("hotness.threshold must be > 0"))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}

// parse "user:pass,other:pass" into map
func parseUsers(s string) (map[string]string, error) {
	out := map[string]string{}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		u, pw, ok := strings.Cut(p, ":")
		u = strings.TrimSpace(u)
		if !ok || u == "" || pw == "" {
			return nil, fmt.Errorf("invalid AUTH_USERS entry %q", p)
		}
		out[u] = pw
	}
	return out, nil
}
