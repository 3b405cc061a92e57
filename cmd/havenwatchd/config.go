package main

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// daemonConfig is everything havenwatchd needs to run. Values come from
// defaults, then the YAML config file, then command-line flags, each layer
// overriding the previous one.
type daemonConfig struct {
	Server struct {
		Addr          string  `koanf:"addr"`
		AuthRateLimit float64 `koanf:"auth_rate_limit"`
		AuthRateBurst int     `koanf:"auth_rate_burst"`
	} `koanf:"server"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	JWT struct {
		Secret    string        `koanf:"secret"`
		AccessTTL time.Duration `koanf:"access_ttl"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
	} `koanf:"jwt"`

	Session struct {
		Lifetime         time.Duration `koanf:"lifetime"`
		RecoveryLifetime time.Duration `koanf:"recovery_lifetime"`
		RedisPrefix      string        `koanf:"redis_prefix"`
	} `koanf:"session"`

	EmailConfirmation struct {
		Required bool          `koanf:"required"`
		TTL      time.Duration `koanf:"ttl"`
	} `koanf:"email_confirmation"`

	PasswordReset struct {
		Enabled bool          `koanf:"enabled"`
		TTL     time.Duration `koanf:"ttl"`
	} `koanf:"password_reset"`

	Log struct {
		Level       string `koanf:"level"`
		Development bool   `koanf:"development"`
	} `koanf:"log"`
}

var configDefaults = map[string]any{
	"server.addr":               ":8080",
	"server.auth_rate_limit":    5.0,
	"server.auth_rate_burst":    10,
	"redis.addr":                "localhost:6379",
	"jwt.access_ttl":            15 * time.Minute,
	"jwt.issuer":                "havenwatch",
	"session.lifetime":          30 * 24 * time.Hour,
	"session.recovery_lifetime": 15 * time.Minute,
	"session.redis_prefix":      "hw",
	"email_confirmation.ttl":    24 * time.Hour,
	"password_reset.enabled":    true,
	"password_reset.ttl":        time.Hour,
	"log.level":                 "info",
}

// loadConfig layers defaults, the optional YAML file, and flags.
func loadConfig(path string, flags *pflag.FlagSet) (*daemonConfig, error) {
	k := koanf.New(".")

	for key, value := range configDefaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %q: %w", path, err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, err
		}
	}

	var cfg daemonConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}

	return &cfg, nil
}
