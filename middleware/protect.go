package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/havenwatch/havenwatch"
	"github.com/labstack/echo/v4"
)

const (
	authContextKey = "havenwatch.auth"
	userContextKey = "havenwatch.user"
)

type failBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Protect rejects requests that do not carry a valid bearer token over a live
// session. On success the validated identity and the loaded account are
// attached to the request context.
func Protect(engine *havenwatch.Engine, users havenwatch.UserProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return fail(c, "You are not logged in! Please log in to get access.")
			}

			auth, err := engine.Validate(c.Request().Context(), token)
			if err != nil {
				return fail(c, "Invalid token or session no longer exists.")
			}

			user, err := users.GetUserByID(c.Request().Context(), auth.UserID)
			if err != nil {
				if errors.Is(err, havenwatch.ErrUserNotFound) {
					return fail(c, "The user belonging to this token no longer exists.")
				}
				return echo.NewHTTPError(http.StatusInternalServerError)
			}

			c.Set(authContextKey, auth)
			c.Set(userContextKey, user.Public())
			return next(c)
		}
	}
}

// AuthFromContext returns the identity attached by [Protect].
func AuthFromContext(c echo.Context) (*havenwatch.AuthResult, bool) {
	auth, ok := c.Get(authContextKey).(*havenwatch.AuthResult)
	return auth, ok
}

// UserFromContext returns the account attached by [Protect].
func UserFromContext(c echo.Context) (havenwatch.User, bool) {
	user, ok := c.Get(userContextKey).(havenwatch.User)
	return user, ok
}

func fail(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, failBody{Status: "fail", Message: message})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
