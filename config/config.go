// Package config loads tagcached settings from an optional YAML file and
// TAGCACHE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Store  StoreConfig  `mapstructure:"store"`
	CMS    CMSConfig    `mapstructure:"cms"`
	Admin  AdminConfig  `mapstructure:"admin"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json | console
	MetricsPath string `mapstructure:"metrics_path"`
}

type CacheConfig struct {
	Namespace      string `mapstructure:"namespace"`
	Codec          string `mapstructure:"codec"`
	Disabled       bool   `mapstructure:"disabled"`
	StrictWrites   bool   `mapstructure:"strict_writes"`
	MaxStreamBytes int64  `mapstructure:"max_stream_bytes"`
}

type StoreConfig struct {
	Backend   string          `mapstructure:"backend"` // memory | redis | bigcache | ristretto | sql
	Memory    MemoryConfig    `mapstructure:"memory"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Bigcache  BigcacheConfig  `mapstructure:"bigcache"`
	Ristretto RistrettoConfig `mapstructure:"ristretto"`
	SQL       SQLConfig       `mapstructure:"sql"`
}

type MemoryConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	EntryTTL time.Duration `mapstructure:"entry_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type BigcacheConfig struct {
	LifeWindow   time.Duration `mapstructure:"life_window"`
	HardMaxMB    int           `mapstructure:"hard_max_mb"`
	MaxEntrySize int           `mapstructure:"max_entry_size"`
}

type RistrettoConfig struct {
	NumCounters int64         `mapstructure:"num_counters"`
	MaxCost     int64         `mapstructure:"max_cost"`
	TTL         time.Duration `mapstructure:"ttl"`
}

type SQLConfig struct {
	Dialect string `mapstructure:"dialect"`
	DSN     string `mapstructure:"dsn"`
}

type CMSConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	TaglineTTL time.Duration `mapstructure:"tagline_ttl"`
	Retries    int           `mapstructure:"retries"`
}

type AdminConfig struct {
	AllowedTags []string `mapstructure:"allowed_tags"`
}

var backends = map[string]bool{"memory": true, "redis": true, "bigcache": true, "ristretto": true, "sql": true}

// Load reads config.yaml from ./config and the given paths (all optional),
// then applies TAGCACHE_* env overrides (e.g. TAGCACHE_STORE_BACKEND).
// CMS_URL and CMS_API_KEY are honoured as fallbacks for the CMS settings.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("TAGCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("cms.url", "TAGCACHE_CMS_URL", "CMS_URL")
	_ = v.BindEnv("cms.api_key", "TAGCACHE_CMS_API_KEY", "CMS_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late at wiring time.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if !backends[c.Store.Backend] {
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "sql" && c.Store.SQL.DSN == "" {
		return errors.New("config: store.sql.dsn is required for the sql backend")
	}
	if c.Cache.MaxStreamBytes < 0 {
		return errors.New("config: cache.max_stream_bytes must be >= 0")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":9926")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("cache.namespace", "")
	v.SetDefault("cache.codec", "json")
	v.SetDefault("cache.disabled", false)
	v.SetDefault("cache.strict_writes", false)
	v.SetDefault("cache.max_stream_bytes", 64<<20)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.memory.max_entries", 0)
	v.SetDefault("store.redis.address", "127.0.0.1:6379")
	v.SetDefault("store.redis.username", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "tagcache")
	v.SetDefault("store.redis.entry_ttl", "0s")
	v.SetDefault("store.redis.timeout", "5s")
	v.SetDefault("store.bigcache.life_window", "10m")
	v.SetDefault("store.bigcache.hard_max_mb", 0)
	v.SetDefault("store.bigcache.max_entry_size", 0)
	v.SetDefault("store.ristretto.num_counters", 1_000_000)
	v.SetDefault("store.ristretto.max_cost", 256<<20)
	v.SetDefault("store.ristretto.ttl", "0s")
	v.SetDefault("store.sql.dialect", "sqlite")
	v.SetDefault("store.sql.dsn", "")

	v.SetDefault("cms.url", "")
	v.SetDefault("cms.api_key", "")
	v.SetDefault("cms.timeout", "5s")
	v.SetDefault("cms.tagline_ttl", "3m")
	v.SetDefault("cms.retries", 3)

	v.SetDefault("admin.allowed_tags", []string{"product", "category", "catalog"})
}
