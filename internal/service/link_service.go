package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdusco/shorty/internal"
	"github.com/abdusco/shorty/internal/metrics"
	"github.com/abdusco/shorty/internal/repo"
	"github.com/abdusco/shorty/internal/validate"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// LinkService owns the lifecycle of shortened links.
type LinkService struct {
	links repo.LinkRepo
	now   func() time.Time

	// writeMu serializes the check-then-write sequences (short code
	// uniqueness, toggle read-modify-write) so they act as one step.
	writeMu sync.Mutex
}

func NewLinkService(links repo.LinkRepo, now func() time.Time) *LinkService {
	if now == nil {
		now = time.Now
	}
	return &LinkService{links: links, now: now}
}

type CreateLinkInput struct {
	OriginalURL string
	ShortCode   string
	// ExpiresAt is a timestamp accepted by validate.ParseTimestamp. Empty
	// means the link never expires.
	ExpiresAt string
}

// UpdateLinkInput is a partial update; nil fields are left unchanged.
// ClearExpiry removes the expiration.
type UpdateLinkInput struct {
	OriginalURL *string
	ShortCode   *string
	ExpiresAt   *string
	ClearExpiry bool
	IsActive    *bool
}

func (s *LinkService) Create(ctx context.Context, uid int64, in CreateLinkInput) (*internal.Link, error) {
	if !validate.IsValidURL(in.OriginalURL) {
		return nil, internal.ErrInvalidURL
	}
	if !validate.IsValidShortCode(in.ShortCode) {
		return nil, internal.ErrInvalidShortCode
	}
	expiresAt, err := s.parseExpiry(in.ExpiresAt)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	exists, err := s.links.ShortCodeExists(ctx, in.ShortCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check short code: %w", err)
	}
	if exists || validate.IsReservedShortCode(in.ShortCode) {
		log.Debug().Str("short_code", in.ShortCode).Int64("user_id", uid).Msg("short code taken")
		return nil, internal.ErrShortCodeTaken
	}

	link, err := s.links.Insert(ctx, internal.NewLink{
		OwnerID:     uid,
		OriginalURL: in.OriginalURL,
		ShortCode:   in.ShortCode,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, err
	}

	metrics.LinksCreated.Inc()
	log.Info().Int64("link_id", link.ID).Int64("user_id", uid).Str("short_code", link.ShortCode).Msg("link created")

	return link, nil
}

// List returns the caller's links, newest first, with derived fields filled in.
func (s *LinkService) List(ctx context.Context, uid int64, baseURL string) ([]internal.LinkView, error) {
	links, err := s.links.ListForOwner(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	now := s.now()
	return lo.Map(links, func(l *internal.Link, _ int) internal.LinkView {
		return internal.NewLinkView(*l, baseURL, now)
	}), nil
}

func (s *LinkService) View(link *internal.Link, baseURL string) internal.LinkView {
	return internal.NewLinkView(*link, baseURL, s.now())
}

func (s *LinkService) Update(ctx context.Context, uid, id int64, in UpdateLinkInput) (*internal.Link, error) {
	patch := internal.LinkPatch{
		OriginalURL: in.OriginalURL,
		ShortCode:   in.ShortCode,
		ClearExpiry: in.ClearExpiry,
		IsActive:    in.IsActive,
	}
	if in.OriginalURL != nil && !validate.IsValidURL(*in.OriginalURL) {
		return nil, internal.ErrInvalidURL
	}
	if in.ShortCode != nil && !validate.IsValidShortCode(*in.ShortCode) {
		return nil, internal.ErrInvalidShortCode
	}
	if in.ExpiresAt != nil && !in.ClearExpiry {
		expiresAt, err := s.parseExpiry(*in.ExpiresAt)
		if err != nil {
			return nil, err
		}
		if expiresAt == nil {
			patch.ClearExpiry = true
		}
		patch.ExpiresAt = expiresAt
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.links.GetByIDForOwner(ctx, id, uid)
	if err != nil {
		return nil, err
	}

	if in.ShortCode != nil && *in.ShortCode != current.ShortCode {
		exists, err := s.links.ShortCodeExists(ctx, *in.ShortCode)
		if err != nil {
			return nil, fmt.Errorf("failed to check short code: %w", err)
		}
		if exists || validate.IsReservedShortCode(*in.ShortCode) {
			return nil, internal.ErrShortCodeTaken
		}
	}

	link, err := s.links.Update(ctx, id, uid, patch)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("link_id", id).Int64("user_id", uid).Msg("link updated")

	return link, nil
}

// ToggleActive flips the active flag. Expired links may be toggled too.
func (s *LinkService) ToggleActive(ctx context.Context, uid, id int64) (*internal.Link, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.links.GetByIDForOwner(ctx, id, uid)
	if err != nil {
		return nil, err
	}

	active := !current.IsActive
	link, err := s.links.Update(ctx, id, uid, internal.LinkPatch{IsActive: &active})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("link_id", id).Bool("is_active", link.IsActive).Msg("link toggled")

	return link, nil
}

func (s *LinkService) Delete(ctx context.Context, uid, id int64) (*internal.Link, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	link, err := s.links.Delete(ctx, id, uid)
	if err != nil {
		return nil, err
	}

	metrics.LinksDeleted.Inc()
	log.Info().Int64("link_id", id).Str("short_code", link.ShortCode).Msg("link deleted")

	return link, nil
}

// Resolve looks up a short code for a public redirect. The click is counted
// before Resolve returns, once per successful call.
func (s *LinkService) Resolve(ctx context.Context, code string) (*internal.Link, error) {
	link, err := s.links.GetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, internal.ErrNotFound) {
			metrics.Redirects.WithLabelValues(metrics.OutcomeNotFound).Inc()
		}
		return nil, err
	}

	if !link.Resolvable(s.now()) {
		metrics.Redirects.WithLabelValues(metrics.OutcomeGone).Inc()
		log.Debug().Str("short_code", code).Str("status", string(link.Status(s.now()))).Msg("link not resolvable")
		return nil, internal.ErrLinkGone
	}

	link, err = s.links.IncrementClicks(ctx, link.ID)
	if err != nil {
		if errors.Is(err, internal.ErrNotFound) {
			metrics.Redirects.WithLabelValues(metrics.OutcomeNotFound).Inc()
		}
		return nil, err
	}

	metrics.Redirects.WithLabelValues(metrics.OutcomeRedirected).Inc()
	return link, nil
}

// parseExpiry returns nil for an empty timestamp.
func (s *LinkService) parseExpiry(ts string) (*time.Time, error) {
	if ts == "" {
		return nil, nil
	}
	if !validate.IsFutureDate(ts, s.now()) {
		return nil, internal.ErrExpirationInPast
	}
	t, err := validate.ParseTimestamp(ts)
	if err != nil {
		return nil, internal.ErrExpirationInPast
	}
	t = t.UTC()
	return &t, nil
}
