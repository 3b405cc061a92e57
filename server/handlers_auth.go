package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/havenwatch/havenwatch"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Mailer delivers challenge tokens out of band. The server never returns a
// reset or confirmation token in a response body.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendEmailConfirmation(ctx context.Context, email, token string) error
}

// LogMailer is a [Mailer] for development setups without an email provider:
// it logs the tokens instead of sending them.
type LogMailer struct {
	Logger *zap.Logger
}

// SendPasswordReset logs the reset token.
func (m LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.Logger.Info("password reset issued", zap.String("email", email), zap.String("token", token))
	return nil
}

// SendEmailConfirmation logs the confirmation token.
func (m LogMailer) SendEmailConfirmation(_ context.Context, email, token string) error {
	m.Logger.Info("email confirmation issued", zap.String("email", email), zap.String("token", token))
	return nil
}

// AuthHandler serves the credential endpoints.
type AuthHandler struct {
	engine *havenwatch.Engine
	mailer Mailer
	logger *zap.Logger
}

// NewAuthHandler creates an [AuthHandler].
func NewAuthHandler(engine *havenwatch.Engine, mailer Mailer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{engine: engine, mailer: mailer, logger: logger}
}

type signUpBody struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SignUp handles POST /auth/signup.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var body signUpBody
	if err := c.Bind(&body); err != nil {
		return failMessage(c, http.StatusBadRequest, "Malformed request body.")
	}

	result, err := h.engine.SignUp(c.Request().Context(), havenwatch.SignUpRequest{
		Email:    body.Email,
		Password: body.Password,
		Metadata: body.Metadata,
	})
	if err != nil {
		return writeEngineError(c, err)
	}

	if result.ConfirmationRequired {
		if err := h.mailer.SendEmailConfirmation(c.Request().Context(), result.User.Email, result.ConfirmationToken); err != nil {
			h.logger.Error("confirmation delivery failed", zap.Error(err))
		}
		user := result.User
		return c.JSON(http.StatusCreated, envelope{
			Status:  "success",
			Message: "Please confirm your email address to finish signing up.",
			Data:    &data{User: &user},
		})
	}

	user := result.User
	resp := envelope{Status: "success", Data: &data{User: &user}}
	if result.Tokens != nil {
		resp.Token = result.Tokens.AccessToken
		resp.RefreshToken = result.Tokens.RefreshToken
		resp.ExpiresAt = result.Tokens.ExpiresAt
	}
	return c.JSON(http.StatusCreated, resp)
}

type signInBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn handles POST /auth/login.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var body signInBody
	if err := c.Bind(&body); err != nil {
		return failMessage(c, http.StatusBadRequest, "Malformed request body.")
	}

	ctx := havenwatch.WithClientIP(c.Request().Context(), c.RealIP())
	result, err := h.engine.SignIn(ctx, body.Email, body.Password)
	if err != nil {
		return writeEngineError(c, err)
	}

	return successSession(c, http.StatusOK, result)
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var body refreshBody
	if err := c.Bind(&body); err != nil || body.RefreshToken == "" {
		return failMessage(c, http.StatusBadRequest, "Malformed request body.")
	}

	result, err := h.engine.Refresh(c.Request().Context(), body.RefreshToken)
	if err != nil {
		return writeEngineError(c, err)
	}

	return successSession(c, http.StatusOK, result)
}

// SignOut handles POST /auth/logout. The bearer token identifies the session
// to destroy.
func (h *AuthHandler) SignOut(c echo.Context) error {
	token, ok := bearerFromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return failMessage(c, http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
	}

	if err := h.engine.SignOutByAccessToken(c.Request().Context(), token); err != nil {
		return writeEngineError(c, err)
	}

	return successMessage(c, http.StatusOK, "Signed out.")
}

type resetRequestBody struct {
	Email string `json:"email"`
}

// RequestPasswordReset handles POST /auth/reset-password. A registered email
// gets a recovery token by mail; an unknown one gets the same response, so
// the endpoint cannot confirm whether an address exists.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var body resetRequestBody
	if err := c.Bind(&body); err != nil {
		return failMessage(c, http.StatusBadRequest, "Malformed request body.")
	}

	token, err := h.engine.RequestPasswordReset(c.Request().Context(), body.Email)
	if err != nil {
		return writeEngineError(c, err)
	}

	if token != "" {
		if err := h.mailer.SendPasswordReset(c.Request().Context(), body.Email, token); err != nil {
			h.logger.Error("reset delivery failed", zap.Error(err))
		}
	}

	return successMessage(c, http.StatusOK, "If that email is registered, a reset link is on its way.")
}

type resetConfirmBody struct {
	Token string `json:"token"`
}

// ExchangeRecoveryToken handles POST /auth/reset-password/confirm.
func (h *AuthHandler) ExchangeRecoveryToken(c echo.Context) error {
	var body resetConfirmBody
	if err := c.Bind(&body); err != nil || body.Token == "" {
		return failMessage(c, http.StatusBadRequest, "Malformed request body.")
	}

	result, err := h.engine.ExchangeRecoveryToken(c.Request().Context(), body.Token)
	if err != nil {
		return writeEngineError(c, err)
	}

	return successSession(c, http.StatusOK, result)
}

type confirmEmailBody struct {
	Token string `json:"token"`
}

// ConfirmEmail handles POST /auth/confirm-email.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	var body confirmEmailBody
	if err := c.Bind(&body); err != nil || body.Token == "" {
		return failMessage(c, http.StatusBadRequest, "Malformed request body.")
	}

	user, err := h.engine.ConfirmEmail(c.Request().Context(), body.Token)
	if err != nil {
		return writeEngineError(c, err)
	}

	return success(c, http.StatusOK, &user)
}

func bearerFromHeader(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) || len(value) == len(bearer) {
		return "", false
	}
	return value[len(bearer):], true
}
