package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	PreferenceStoreMemory = "memory"
	PreferenceStoreRedis  = "redis"
	PreferenceStoreDB     = "db"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	AdminAPIKey      string `env:"ADMIN_API_KEY"`
	EditorAPIKey     string `env:"EDITOR_API_KEY"`
	PolicyBundlePath string `env:"POLICY_BUNDLE_PATH"`

	RateLimitRequests      int  `env:"RATE_LIMIT_REQUESTS" envDefault:"0"`
	RateLimitWindowSeconds int  `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	RateLimitFailClosed    bool `env:"RATE_LIMIT_FAIL_CLOSED" envDefault:"false"`
	RateLimitMaxKeys       int  `env:"RATE_LIMIT_MAX_KEYS" envDefault:"10000"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AdMaxInteractions     int `env:"AD_MAX_INTERACTIONS" envDefault:"10"`
	AdInteractionWindowMS int `env:"AD_INTERACTION_WINDOW_MS" envDefault:"60000"`
	AdHideTransitionMS    int `env:"AD_HIDE_TRANSITION_MS" envDefault:"300"`
	AdShowSettleMS        int `env:"AD_SHOW_SETTLE_MS" envDefault:"50"`

	PreferenceStore       string `env:"PREFERENCE_STORE" envDefault:"memory"`
	SessionMax            int    `env:"SESSION_MAX" envDefault:"10000"`
	SessionIdleTTLSeconds int    `env:"SESSION_IDLE_TTL_SECONDS" envDefault:"1800"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize replaces non-positive sizes and durations with their defaults.
func (c *Config) normalize() {
	positive := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	positive(&c.RateLimitWindowSeconds, 60)
	positive(&c.RateLimitMaxKeys, 10000)
	positive(&c.AdMaxInteractions, 10)
	positive(&c.AdInteractionWindowMS, 60000)
	positive(&c.AdHideTransitionMS, 300)
	positive(&c.AdShowSettleMS, 50)
	positive(&c.SessionMax, 10000)
	positive(&c.SessionIdleTTLSeconds, 1800)
	if c.RateLimitRequests < 0 {
		c.RateLimitRequests = 0
	}
	c.PreferenceStore = strings.ToLower(strings.TrimSpace(c.PreferenceStore))
	if c.PreferenceStore == "" {
		c.PreferenceStore = PreferenceStoreMemory
	}
	origins := c.CORSAllowedOrigins[:0]
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowedOrigins = origins
}

func (c Config) Validate() error {
	switch c.PreferenceStore {
	case PreferenceStoreMemory:
	case PreferenceStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("PREFERENCE_STORE=redis requires REDIS_ADDR")
		}
	case PreferenceStoreDB:
		if c.PostgresDSN == "" {
			return fmt.Errorf("PREFERENCE_STORE=db requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown PREFERENCE_STORE %q", c.PreferenceStore)
	}
	return nil
}

func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	}
	return false
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) AdInteractionWindow() time.Duration {
	return time.Duration(c.AdInteractionWindowMS) * time.Millisecond
}

func (c Config) AdHideTransition() time.Duration {
	return time.Duration(c.AdHideTransitionMS) * time.Millisecond
}

func (c Config) AdShowSettle() time.Duration {
	return time.Duration(c.AdShowSettleMS) * time.Millisecond
}

func (c Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLSeconds) * time.Second
}
