package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/abdusco/shorty/internal"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

var categoryStatus = []struct {
	kind   error
	status int
}{
	{internal.ErrValidation, http.StatusBadRequest},
	{internal.ErrUnauthorized, http.StatusUnauthorized},
	{internal.ErrNotFound, http.StatusNotFound},
	{internal.ErrConflict, http.StatusConflict},
	{internal.ErrGone, http.StatusGone},
}

// ErrorHandler writes every error as a JSON envelope. Domain errors carry
// their own message; anything unclassified is reported as an opaque 500.
func ErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "internal server error"

	var domainErr *internal.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &domainErr):
		message = domainErr.Error()
		for _, cs := range categoryStatus {
			if errors.Is(domainErr, cs.kind) {
				code = cs.status
				break
			}
		}
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}

	event := log.Debug()
	if code >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Int("code", code).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Err(err).
		Msg("http error")

	if c.Response().Committed {
		return
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(code)
		return
	}
	c.JSON(code, envelope{Success: false, Error: message})
}

// paramID parses a numeric path parameter. Anything else cannot name a link,
// so it is reported as not found.
func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.ErrLinkNotFound
	}
	return id, nil
}
