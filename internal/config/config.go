package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. APPTUI_API_BASE_URL.
const EnvPrefix = "APPTUI"

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Log       LogConfig       `mapstructure:"log"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Lookup    LookupConfig    `mapstructure:"lookup"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	// Timezone decides which calendar day is "today" in the date picker.
	Timezone string `mapstructure:"timezone"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Token is the fallback bearer token. Prefer APPTUI_API_TOKEN.
	Token           string        `mapstructure:"token"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type SessionConfig struct {
	Store      string        `mapstructure:"store"`
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
	Secure     bool          `mapstructure:"secure"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
}

type LookupConfig struct {
	// Concurrency bounds parallel name lookups per page; 0 is unbounded.
	Concurrency int `mapstructure:"concurrency"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// Secrets are read only from the environment.
type Secrets struct {
	APIToken      string `envconfig:"API_TOKEN"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 64<<10)

	v.SetDefault("api.base_url", "http://localhost:5000")
	v.SetDefault("api.token", "")
	v.SetDefault("api.breaker_failures", 5)
	v.SetDefault("api.breaker_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("session.store", SessionStoreMemory)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cookie_name", "apptui_session")
	v.SetDefault("session.secure", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.key_prefix", "apptui:session:")

	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("lookup.concurrency", 8)

	v.SetDefault("metrics.namespace", "appointment_web")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("timezone", "Local")
}

// LoadConfig reads path, or config.yaml from . or ./config when path is
// empty, then applies APPTUI_* environment overrides. A missing default
// file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process(EnvPrefix, &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	if secrets.APIToken != "" {
		config.API.Token = secrets.APIToken
	}
	if secrets.RedisPassword != "" {
		config.Redis.Password = secrets.RedisPassword
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when session.store is redis")
		}
	default:
		return fmt.Errorf("unknown session.store %q", c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
