package server

import (
	"context"
	"net/http"

	"github.com/havenwatch/havenwatch"
	"github.com/havenwatch/havenwatch/metrics/export/prometheus"
	"github.com/havenwatch/havenwatch/middleware"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// AuthRateLimit throttles the unauthenticated auth endpoints per IP,
	// in requests per second. Zero disables the throttle.
	AuthRateLimit rate.Limit
	AuthRateBurst int
}

// Server is the HTTP front of the credential engine.
type Server struct {
	echo   *echo.Echo
	config Config
	logger *zap.Logger
}

// New wires the router, middleware, and handlers.
func New(cfg Config, engine *havenwatch.Engine, users havenwatch.UserProvider, mailer Mailer, logger *zap.Logger) *Server {
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(RequestLogger(logger))
	e.Use(SecurityHeaders())

	authHandler := NewAuthHandler(engine, mailer, logger)
	userHandler := NewUserHandler(engine)

	auth := e.Group("/api/v1/auth")
	if cfg.AuthRateLimit > 0 {
		burst := cfg.AuthRateBurst
		if burst <= 0 {
			burst = 1
		}
		auth.Use(NewRateLimiter(cfg.AuthRateLimit, burst).Middleware())
	}
	auth.POST("/signup", authHandler.SignUp)
	auth.POST("/login", authHandler.SignIn)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.SignOut)
	auth.POST("/reset-password", authHandler.RequestPasswordReset)
	auth.POST("/reset-password/confirm", authHandler.ExchangeRecoveryToken)
	auth.POST("/confirm-email", authHandler.ConfirmEmail)

	me := e.Group("/api/v1/users", middleware.Protect(engine, users))
	me.GET("/me", userHandler.Me)
	me.PATCH("/me", userHandler.UpdateMe)
	me.PATCH("/me/password", userHandler.ChangePassword)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(prometheus.NewExporter(engine).Handler()))

	return &Server{echo: e, config: cfg, logger: logger}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until the listener fails or [Server.Shutdown] runs.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
