package auth

import (
	"strings"

	"github.com/abdusco/shorty/internal"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const identityKey = "auth.identity"

// Identity is the authenticated caller.
type Identity struct {
	UserID int64
	Email  string
}

type authStrategy func(c echo.Context) (string, bool)

// NewAuthMiddleware accepts a bearer token from the Authorization header,
// falling back to the auth cookie.
func NewAuthMiddleware(auther *Authenticator) echo.MiddlewareFunc {
	strategies := []authStrategy{
		bearerToken,
		cookieToken,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, strategy := range strategies {
				token, ok := strategy(c)
				if !ok {
					continue
				}

				claims, err := auther.Verify(token)
				if err != nil {
					log.Debug().Err(err).Str("path", c.Path()).Msg("rejected token")
					return err
				}

				c.Set(identityKey, Identity{UserID: claims.UserID, Email: claims.Email})
				return next(c)
			}
			return internal.ErrAuthRequired
		}
	}
}

// IdentityFrom returns the identity stored by the auth middleware.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func cookieToken(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie == nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
