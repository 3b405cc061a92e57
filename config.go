package havenwatch

import (
	"errors"
	"time"
)

// Config collects the engine's tuning parameters. Builders start from
// [DefaultConfig]; invalid combinations fail Build.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	Password          PasswordConfig
	PasswordReset     PasswordResetConfig
	EmailConfirmation EmailConfirmationConfig
	Security          SecurityConfig
	Events            EventConfig
}

// JWTConfig controls access-token issuance and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// SessionConfig controls the Redis session store.
type SessionConfig struct {
	RedisPrefix string
	// Lifetime bounds the session regardless of refresh activity.
	Lifetime time.Duration
	// RecoveryLifetime bounds the temporary session created by a
	// password-reset deep link.
	RecoveryLifetime time.Duration
}

// PasswordConfig carries argon2id parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// UpgradeOnLogin rehashes stored credentials with the current parameters
	// after a successful sign-in.
	UpgradeOnLogin bool
}

// PasswordResetConfig controls the reset challenge flow.
type PasswordResetConfig struct {
	Enabled     bool
	TTL         time.Duration
	MaxAttempts int
}

// EmailConfirmationConfig controls the sign-up confirmation gate.
type EmailConfirmationConfig struct {
	// Required withholds tokens from sign-up until the email is confirmed.
	Required    bool
	TTL         time.Duration
	MaxAttempts int
}

// SecurityConfig carries login throttling parameters.
type SecurityConfig struct {
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	EnableIPThrottle bool
}

// EventConfig controls the auth event dispatcher.
type EventConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	DropIfFull bool
}

// DefaultConfig returns the configuration [New] starts from.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:      "hw",
			Lifetime:         30 * 24 * time.Hour,
			RecoveryLifetime: 15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:     true,
			TTL:         time.Hour,
			MaxAttempts: 5,
		},
		EmailConfirmation: EmailConfirmationConfig{
			Required:    false,
			TTL:         24 * time.Hour,
			MaxAttempts: 5,
		},
		Security: SecurityConfig{
			MaxLoginAttempts: 10,
			LoginCooldown:    15 * time.Minute,
			EnableIPThrottle: true,
		},
		Events: EventConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.JWT.AccessTTL <= 0 {
		return errors.New("config: JWT.AccessTTL must be positive")
	}
	if cfg.Session.Lifetime <= 0 {
		return errors.New("config: Session.Lifetime must be positive")
	}
	if cfg.Session.RecoveryLifetime <= 0 || cfg.Session.RecoveryLifetime > cfg.Session.Lifetime {
		return errors.New("config: Session.RecoveryLifetime must be positive and no longer than Session.Lifetime")
	}
	if cfg.PasswordReset.Enabled {
		if cfg.PasswordReset.TTL <= 0 {
			return errors.New("config: PasswordReset.TTL must be positive")
		}
		if cfg.PasswordReset.MaxAttempts <= 0 {
			return errors.New("config: PasswordReset.MaxAttempts must be positive")
		}
	}
	if cfg.EmailConfirmation.Required {
		if cfg.EmailConfirmation.TTL <= 0 {
			return errors.New("config: EmailConfirmation.TTL must be positive")
		}
		if cfg.EmailConfirmation.MaxAttempts <= 0 {
			return errors.New("config: EmailConfirmation.MaxAttempts must be positive")
		}
	}
	if cfg.Security.MaxLoginAttempts < 0 {
		return errors.New("config: Security.MaxLoginAttempts must not be negative")
	}
	if cfg.Security.MaxLoginAttempts > 0 && cfg.Security.LoginCooldown <= 0 {
		return errors.New("config: Security.LoginCooldown must be positive when login throttling is enabled")
	}
	switch cfg.JWT.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("config: unsupported JWT.SigningMethod")
	}
	return nil
}
