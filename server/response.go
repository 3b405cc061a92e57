package server

import (
	"errors"
	"net/http"

	"github.com/havenwatch/havenwatch"
	"github.com/labstack/echo/v4"
)

// envelope is the response shape shared by all endpoints. Token fields are
// present only on session-creating responses.
type envelope struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	Data         *data  `json:"data,omitempty"`
}

type data struct {
	User *havenwatch.User `json:"user,omitempty"`
}

func success(c echo.Context, code int, user *havenwatch.User) error {
	return c.JSON(code, envelope{Status: "success", Data: &data{User: user}})
}

func successMessage(c echo.Context, code int, message string) error {
	return c.JSON(code, envelope{Status: "success", Message: message})
}

func successSession(c echo.Context, code int, result *havenwatch.SignInResult) error {
	user := result.User
	return c.JSON(code, envelope{
		Status:       "success",
		Token:        result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		ExpiresAt:    result.Tokens.ExpiresAt,
		Data:         &data{User: &user},
	})
}

func failMessage(c echo.Context, code int, message string) error {
	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
	}
	return c.JSON(code, envelope{Status: status, Message: message})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Unknown email and wrong password collapse into one message so the endpoint
// cannot be used to probe for accounts.
func writeEngineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, havenwatch.ErrInvalidRequest):
		return failMessage(c, http.StatusBadRequest, "Please provide email and password!")
	case errors.Is(err, havenwatch.ErrInvalidEmail):
		return failMessage(c, http.StatusBadRequest, "Please provide a valid email address.")
	case errors.Is(err, havenwatch.ErrEmailExists):
		return failMessage(c, http.StatusBadRequest, "Email already exists. Please use another email!")
	case errors.Is(err, havenwatch.ErrInvalidCredentials):
		return failMessage(c, http.StatusUnauthorized, "Incorrect email or password")
	case errors.Is(err, havenwatch.ErrAccountDisabled):
		return failMessage(c, http.StatusForbidden, "This account has been disabled.")
	case errors.Is(err, havenwatch.ErrAccountUnconfirmed):
		return failMessage(c, http.StatusForbidden, "Please confirm your email address first.")
	case errors.Is(err, havenwatch.ErrLoginRateLimited):
		return failMessage(c, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
	case errors.Is(err, havenwatch.ErrPasswordPolicy):
		return failMessage(c, http.StatusBadRequest, "Password does not meet the minimum requirements.")
	case errors.Is(err, havenwatch.ErrPasswordReuse):
		return failMessage(c, http.StatusBadRequest, "New password must differ from the current one.")
	case errors.Is(err, havenwatch.ErrPasswordResetDisabled):
		return failMessage(c, http.StatusForbidden, "Password reset is not available.")
	case errors.Is(err, havenwatch.ErrChallengeAttempts):
		return failMessage(c, http.StatusTooManyRequests, "Too many attempts. Please request a new link.")
	case errors.Is(err, havenwatch.ErrChallengeInvalid):
		return failMessage(c, http.StatusBadRequest, "This link is invalid or has expired.")
	case errors.Is(err, havenwatch.ErrRefreshReuse),
		errors.Is(err, havenwatch.ErrRefreshInvalid),
		errors.Is(err, havenwatch.ErrSessionNotFound),
		errors.Is(err, havenwatch.ErrTokenInvalid),
		errors.Is(err, havenwatch.ErrUnauthorized):
		return failMessage(c, http.StatusUnauthorized, "Invalid token or session no longer exists.")
	case errors.Is(err, havenwatch.ErrUserNotFound):
		return failMessage(c, http.StatusUnauthorized, "The user belonging to this token no longer exists.")
	default:
		return failMessage(c, http.StatusInternalServerError, "Something went wrong. Please try again later.")
	}
}
