package havenwatch

import (
	"errors"

	"github.com/havenwatch/havenwatch/internal/rate"
	"github.com/havenwatch/havenwatch/jwt"
	"github.com/havenwatch/havenwatch/password"
	"github.com/havenwatch/havenwatch/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A builder is single-use: Build may be
// called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserProvider
	eventSink EventSink

	built bool
}

// New returns a [Builder] seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing sessions, challenges, and login
// throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the user record store.
func (b *Builder) WithUserProvider(users UserProvider) *Builder {
	b.users = users
	return b
}

// WithEventSink sets the sink that receives auth events. Without one, events
// are discarded.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.users == nil {
		return nil, errors.New("user provider is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     b.config.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(b.config.JWT.SigningMethod),
		PrivateKey:    b.config.JWT.PrivateKey,
		PublicKey:     b.config.JWT.PublicKey,
		Issuer:        b.config.JWT.Issuer,
		Audience:      b.config.JWT.Audience,
		Leeway:        b.config.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if b.config.Security.MaxLoginAttempts > 0 {
		limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle: b.config.Security.EnableIPThrottle,
			MaxAttempts:      b.config.Security.MaxLoginAttempts,
			Cooldown:         b.config.Security.LoginCooldown,
		})
	}

	engine := &Engine{
		config:       b.config,
		sessionStore: session.NewStore(b.redis, b.config.Session.RedisPrefix),
		challenges:   newChallengeStore(b.redis, b.config.Session.RedisPrefix),
		rateLimiter:  limiter,
		events:       newEventDispatcher(b.config.Events, b.eventSink),
		metrics:      NewMetrics(),
		passwordHash: hasher,
		jwtManager:   jwtManager,
		users:        b.users,
	}

	b.built = true
	return engine, nil
}
