package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Aging    AgingConfig    `mapstructure:"aging"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminAllowedIPs restricts /api/admin to these client IPs. Empty allows all.
	AdminAllowedIPs []string `mapstructure:"admin_allowed_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the SSE origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AgingConfig struct {
	// DailyAt ("HH:MM", local time) runs the nightly update at a fixed time
	// of day. When empty the update runs every Interval.
	DailyAt     string        `mapstructure:"daily_at"`
	Interval    time.Duration `mapstructure:"interval"`
	RunOnStart  bool          `mapstructure:"run_on_start"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	HistorySize int           `mapstructure:"history_size"`
	SeedPath    string        `mapstructure:"seed_path"`
}

// DailyTime parses DailyAt. ok is false when DailyAt is empty.
func (a AgingConfig) DailyTime() (hour, minute int, ok bool, err error) {
	if a.DailyAt == "" {
		return 0, 0, false, nil
	}
	t, err := time.Parse("15:04", a.DailyAt)
	if err != nil {
		return 0, 0, false, fmt.Errorf("config: aging.daily_at %q: want HH:MM", a.DailyAt)
	}
	return t.Hour(), t.Minute(), true, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GILDEDROSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.admin_allowed_ips", []string{})
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/stock.db")
	v.SetDefault("database.mysql_dsn", "")
	v.SetDefault("database.mysql_max_open", 20)
	v.SetDefault("database.mysql_max_idle", 5)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 50)
	v.SetDefault("security.rate_limit_burst", 100)
	v.SetDefault("security.allowed_origins", []string{})
	v.SetDefault("aging.daily_at", "")
	v.SetDefault("aging.interval", "24h")
	v.SetDefault("aging.run_on_start", false)
	v.SetDefault("aging.lock_ttl", "5m")
	v.SetDefault("aging.history_size", 30)
	v.SetDefault("aging.seed_path", "")
	return v
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return unmarshal(v)
}

// LoadOrDefault behaves like Load but falls back to defaults (plus
// environment overrides) when path is empty or the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return unmarshal(newViper())
	}
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
		return nil, err
	}
	return unmarshal(newViper())
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
