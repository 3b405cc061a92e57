package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/havenwatch/havenwatch"
	"github.com/havenwatch/havenwatch/server"
	"github.com/havenwatch/havenwatch/userstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	xrate "golang.org/x/time/rate"
)

var configFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "havenwatchd",
		Short: "HavenWatch credential service",
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.AddCommand(newServeCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the credential service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().String("server.addr", "", "listen address")
	cmd.Flags().String("redis.addr", "", "redis address")
	cmd.Flags().String("log.level", "", "log level")

	return cmd
}

func runServe(cfg *daemonConfig) error {
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return err
	}

	engineCfg := engineConfig(cfg)
	users := userstore.New(redisClient, cfg.Session.RedisPrefix)

	engine, err := havenwatch.New().
		WithConfig(engineCfg).
		WithRedis(redisClient).
		WithUserProvider(users).
		WithEventSink(zapEventSink{logger: logger}).
		Build()
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr,
		AuthRateLimit: xrate.Limit(cfg.Server.AuthRateLimit),
		AuthRateBurst: cfg.Server.AuthRateBurst,
	}, engine, users, nil, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func engineConfig(cfg *daemonConfig) havenwatch.Config {
	engineCfg := havenwatch.DefaultConfig()

	engineCfg.JWT.PrivateKey = []byte(cfg.JWT.Secret)
	engineCfg.JWT.AccessTTL = cfg.JWT.AccessTTL
	engineCfg.JWT.Issuer = cfg.JWT.Issuer
	engineCfg.JWT.Audience = cfg.JWT.Audience

	engineCfg.Session.RedisPrefix = cfg.Session.RedisPrefix
	engineCfg.Session.Lifetime = cfg.Session.Lifetime
	engineCfg.Session.RecoveryLifetime = cfg.Session.RecoveryLifetime

	engineCfg.EmailConfirmation.Required = cfg.EmailConfirmation.Required
	if cfg.EmailConfirmation.TTL > 0 {
		engineCfg.EmailConfirmation.TTL = cfg.EmailConfirmation.TTL
	}

	engineCfg.PasswordReset.Enabled = cfg.PasswordReset.Enabled
	if cfg.PasswordReset.TTL > 0 {
		engineCfg.PasswordReset.TTL = cfg.PasswordReset.TTL
	}

	return engineCfg
}

func buildLogger(cfg *daemonConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Log.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// zapEventSink logs auth events; a production deployment would forward them
// to the mobile clients' push channel instead.
type zapEventSink struct {
	logger *zap.Logger
}

func (s zapEventSink) Emit(_ context.Context, event havenwatch.Event) {
	fields := []zap.Field{zap.String("event", event.Kind.String())}
	if event.Session != nil {
		fields = append(fields,
			zap.String("user_id", event.Session.UserID),
			zap.String("session_id", event.Session.SessionID),
		)
	}
	s.logger.Info("auth event", fields...)
}
