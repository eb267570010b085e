package handler

import (
	"net/http"
	"time"

	"github.com/abdusco/shorty/internal"
	"github.com/abdusco/shorty/internal/auth"
	"github.com/abdusco/shorty/internal/service"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	authService   *service.AuthService
	authenticator *auth.Authenticator
}

func NewAuthHandler(authService *service.AuthService, authenticator *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authService: authService, authenticator: authenticator}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

func newUserResponse(u *internal.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	result, err := h.authService.Register(c.Request().Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return err
	}

	c.SetCookie(h.authenticator.Cookie(result.Token, c.IsTLS()))
	return ok(c, http.StatusCreated, AuthResponse{User: newUserResponse(result.User), Token: result.Token})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	result, err := h.authService.Login(c.Request().Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	c.SetCookie(h.authenticator.Cookie(result.Token, c.IsTLS()))
	return ok(c, http.StatusOK, AuthResponse{User: newUserResponse(result.User), Token: result.Token})
}

// Logout clears the auth cookie. Bearer tokens stay valid until they expire.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(auth.ExpireCookie())
	return c.JSON(http.StatusOK, envelope{Success: true, Message: "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c echo.Context) error {
	id, found := auth.IdentityFrom(c)
	if !found {
		return internal.ErrAuthRequired
	}

	user, err := h.authService.GetUser(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, newUserResponse(user))
}
