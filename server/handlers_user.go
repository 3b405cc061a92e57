package server

import (
	"net/http"

	"github.com/havenwatch/havenwatch"
	"github.com/havenwatch/havenwatch/middleware"
	"github.com/labstack/echo/v4"
)

// UserHandler serves the account endpoints behind [middleware.Protect].
type UserHandler struct {
	engine *havenwatch.Engine
}

// NewUserHandler creates a [UserHandler].
func NewUserHandler(engine *havenwatch.Engine) *UserHandler {
	return &UserHandler{engine: engine}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c echo.Context) error {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return failMessage(c, http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
	}
	return success(c, http.StatusOK, &user)
}

type updateMeBody struct {
	Password *string           `json:"password,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UpdateMe handles PATCH /users/me. Setting a password through a recovery
// session destroys all sessions; the client must sign in again.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	auth, ok := middleware.AuthFromContext(c)
	if !ok {
		return failMessage(c, http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
	}

	var body updateMeBody
	if err := c.Bind(&body); err != nil {
		return failMessage(c, http.StatusBadRequest, "Malformed request body.")
	}

	user, err := h.engine.UpdateUser(c.Request().Context(), auth, havenwatch.UpdateUserRequest{
		Password: body.Password,
		Metadata: body.Metadata,
	})
	if err != nil {
		return writeEngineError(c, err)
	}

	return success(c, http.StatusOK, &user)
}

type changePasswordBody struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles PATCH /users/me/password.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	auth, ok := middleware.AuthFromContext(c)
	if !ok {
		return failMessage(c, http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
	}

	var body changePasswordBody
	if err := c.Bind(&body); err != nil {
		return failMessage(c, http.StatusBadRequest, "Malformed request body.")
	}

	if err := h.engine.ChangePassword(c.Request().Context(), auth, body.CurrentPassword, body.NewPassword); err != nil {
		return writeEngineError(c, err)
	}

	return successMessage(c, http.StatusOK, "Password updated.")
}
