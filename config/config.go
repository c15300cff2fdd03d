package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // subscription.timezone must resolve on minimal images

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	App          AppConfig          `yaml:"app"`
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Push         PushConfig         `yaml:"push"`
	WorkerPool   WorkerPoolConfig   `yaml:"worker_pool"`
	Broadcast    BroadcastConfig    `yaml:"broadcast"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

// WorkerPoolConfig holds the configuration for the delivery worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Push mirroring is disabled when the keys are empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// BroadcastConfig controls the realtime channel layer.
type BroadcastConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	SessionBuffer int    `yaml:"session_buffer"`
}

// SubscriptionConfig controls plan enforcement.
type SubscriptionConfig struct {
	Timezone  string         `yaml:"timezone"`
	Location  *time.Location `yaml:"-"`
	SweepCron string         `yaml:"sweep_cron"`
	SeedPlans bool           `yaml:"seed_plans"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	overrideFromEnv(&cfg)
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration suitable for local development against sqlite.
func Default() *Config {
	cfg := &Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:swap.db?_foreign_keys=on"
	cfg.Subscription.SeedPlans = true
	overrideFromEnv(cfg)
	_ = cfg.applyDefaults()
	return cfg
}

// LoadOrDefault reads path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("config file not found, using sqlite defaults")
		return Default(), nil
	}
	return cfg, err
}

func (cfg *Config) applyDefaults() error {
	if cfg.App.Env == "" {
		cfg.App.Env = "dev"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Warn().Msg("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 256
	}

	if cfg.Broadcast.SubjectPrefix == "" {
		cfg.Broadcast.SubjectPrefix = "swap.events"
	}
	if cfg.Broadcast.SessionBuffer <= 0 {
		cfg.Broadcast.SessionBuffer = 32
	}

	if cfg.Subscription.Timezone == "" {
		cfg.Subscription.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Subscription.Timezone)
	if err != nil {
		return err
	}
	cfg.Subscription.Location = loc
	if cfg.Subscription.SweepCron == "" {
		cfg.Subscription.SweepCron = "@every 5m"
	}
	return nil
}

// overrideFromEnv lets deployments replace secrets without editing the file.
func overrideFromEnv(cfg *Config) {
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.App.Env = env
	}
	if env := os.Getenv("DATABASE_DRIVER"); env != "" {
		cfg.Database.Driver = env
	}
	if env := os.Getenv("DATABASE_DSN"); env != "" {
		cfg.Database.DSN = env
	}
	if env := os.Getenv("NATS_URL"); env != "" {
		cfg.Broadcast.NATSURL = env
	}
	if env := os.Getenv("VAPID_PUBLIC_KEY"); env != "" {
		cfg.Push.PublicKey = env
	}
	if env := os.Getenv("VAPID_PRIVATE_KEY"); env != "" {
		cfg.Push.PrivateKey = env
	}
	if env := os.Getenv("PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
}
