package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/abdusco/shorty/internal"
	"github.com/abdusco/shorty/internal/auth"
	"github.com/abdusco/shorty/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type LinkHandler struct {
	linkService *service.LinkService
	// baseURL prefixes short URLs. Empty means derive it from the request.
	baseURL string
}

func NewLinkHandler(linkService *service.LinkService, baseURL string) *LinkHandler {
	return &LinkHandler{linkService: linkService, baseURL: baseURL}
}

type CreateLinkRequest struct {
	OriginalURL string `json:"originalUrl"`
	ShortCode   string `json:"shortCode"`
	ExpiresAt   string `json:"expiresAt"`
}

// UpdateLinkRequest distinguishes an absent expiresAt from an explicit null,
// which clears the expiration.
type UpdateLinkRequest struct {
	OriginalURL *string         `json:"originalUrl"`
	ShortCode   *string         `json:"shortCode"`
	ExpiresAt   json.RawMessage `json:"expiresAt"`
	IsActive    *bool           `json:"isActive"`
}

func (r UpdateLinkRequest) toInput() (service.UpdateLinkInput, error) {
	in := service.UpdateLinkInput{
		OriginalURL: r.OriginalURL,
		ShortCode:   r.ShortCode,
		IsActive:    r.IsActive,
	}
	if len(r.ExpiresAt) == 0 {
		return in, nil
	}
	if bytes.Equal(bytes.TrimSpace(r.ExpiresAt), []byte("null")) {
		in.ClearExpiry = true
		return in, nil
	}
	var ts string
	if err := json.Unmarshal(r.ExpiresAt, &ts); err != nil {
		return in, echo.NewHTTPError(http.StatusBadRequest, "expiresAt must be a string or null")
	}
	in.ExpiresAt = &ts
	return in, nil
}

func (h *LinkHandler) CreateLink(c echo.Context) error {
	id, found := auth.IdentityFrom(c)
	if !found {
		return internal.ErrAuthRequired
	}

	var req CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	link, err := h.linkService.Create(c.Request().Context(), id.UserID, service.CreateLinkInput{
		OriginalURL: req.OriginalURL,
		ShortCode:   req.ShortCode,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return err
	}

	return ok(c, http.StatusCreated, h.linkService.View(link, h.base(c)))
}

func (h *LinkHandler) ListLinks(c echo.Context) error {
	id, found := auth.IdentityFrom(c)
	if !found {
		return internal.ErrAuthRequired
	}

	views, err := h.linkService.List(c.Request().Context(), id.UserID, h.base(c))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, views)
}

func (h *LinkHandler) UpdateLink(c echo.Context) error {
	id, found := auth.IdentityFrom(c)
	if !found {
		return internal.ErrAuthRequired
	}
	linkID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	in, err := req.toInput()
	if err != nil {
		return err
	}

	link, err := h.linkService.Update(c.Request().Context(), id.UserID, linkID, in)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, h.linkService.View(link, h.base(c)))
}

func (h *LinkHandler) ToggleLink(c echo.Context) error {
	id, found := auth.IdentityFrom(c)
	if !found {
		return internal.ErrAuthRequired
	}
	linkID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	link, err := h.linkService.ToggleActive(c.Request().Context(), id.UserID, linkID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, h.linkService.View(link, h.base(c)))
}

func (h *LinkHandler) DeleteLink(c echo.Context) error {
	id, found := auth.IdentityFrom(c)
	if !found {
		return internal.ErrAuthRequired
	}
	linkID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.linkService.Delete(c.Request().Context(), id.UserID, linkID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Message: "link deleted"})
}

// Redirect handles the public GET /:shortCode.
func (h *LinkHandler) Redirect(c echo.Context) error {
	code := c.Param("shortCode")

	link, err := h.linkService.Resolve(c.Request().Context(), code)
	if err != nil {
		return err
	}

	log.Info().
		Str("short_code", code).
		Str("ip", c.RealIP()).
		Int64("clicks", link.ClickCount).
		Msg("redirecting link")

	return c.Redirect(http.StatusFound, link.OriginalURL)
}

func (h *LinkHandler) base(c echo.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return c.Scheme() + "://" + c.Request().Host
}
