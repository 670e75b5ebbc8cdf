package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/tracing"
)

// Config is the root configuration for the research service, loaded from
// features.yaml with DEEPRESEARCH_* environment overrides.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Research      ResearchConfig      `mapstructure:"research"`
	Oracle        OracleConfig        `mapstructure:"oracle"`
	Retriever     RetrieverConfig     `mapstructure:"retriever"`
	Store         StoreConfig         `mapstructure:"store"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Streaming     StreamingConfig     `mapstructure:"streaming"`
}

type ServiceConfig struct {
	HTTPPort    int `mapstructure:"http_port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

type ResearchConfig struct {
	DefaultMaxIterations int           `mapstructure:"default_max_iterations"`
	MaxSubQuestions      int           `mapstructure:"max_sub_questions"`
	SearchTopK           int           `mapstructure:"search_top_k"`
	PhaseTimeout         time.Duration `mapstructure:"phase_timeout"`
}

type OracleConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RetrieverConfig struct {
	// Mode selects the retriever backend: "http" or "stub".
	Mode    string        `mapstructure:"mode"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	TopK    int           `mapstructure:"top_k"`
}

type StoreConfig struct {
	// Backend selects the session store: "memory", "redis" or "postgres".
	Backend  string         `mapstructure:"backend"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type ObservabilityConfig struct {
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

type StreamingConfig struct {
	RingCapacity int `mapstructure:"ring_capacity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.http_port", 8081)
	v.SetDefault("service.metrics_port", 2112)
	v.SetDefault("research.default_max_iterations", 3)
	v.SetDefault("research.max_sub_questions", 3)
	v.SetDefault("research.search_top_k", 5)
	v.SetDefault("research.phase_timeout", "60s")
	v.SetDefault("oracle.base_url", "http://localhost:8000")
	v.SetDefault("oracle.model", "gpt-4o-mini")
	v.SetDefault("oracle.provider", "openai")
	v.SetDefault("oracle.timeout", "60s")
	v.SetDefault("retriever.mode", "stub")
	v.SetDefault("retriever.timeout", "15s")
	v.SetDefault("retriever.top_k", 5)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.ttl", "720h")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.ssl_mode", "disable")
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("streaming.ring_capacity", 256)
}

// Load reads features.yaml from CONFIG_PATH (or ./config/features.yaml) and
// applies environment overrides. A missing file is not an error; defaults and
// environment variables still apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./config/features.yaml"
	}
	v.SetConfigFile(cfgPath)

	v.SetEnvPrefix("DEEPRESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(underlying(err)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Watch reloads the config file on change and invokes onChange with the new
// configuration. Invalid updates are logged and skipped, keeping the last
// good config active.
func Watch(logger *zap.Logger, onChange func(*Config)) {
	v := viper.New()
	setDefaults(v)

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./config/features.yaml"
	}
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		logger.Debug("Config watch disabled, file unreadable", zap.String("path", cfgPath), zap.Error(err))
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			logger.Warn("Ignoring invalid config update", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("Config reloaded", zap.String("file", e.Name))
		onChange(&cfg)
	})
	v.WatchConfig()
}

func underlying(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}

// DSN builds a lib/pq connection string from the Postgres config.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}
