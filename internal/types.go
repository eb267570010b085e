package internal

import (
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Link struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"userId"`
	OriginalURL string     `json:"originalUrl"`
	ShortCode   string     `json:"shortCode"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	ClickCount  int64      `json:"clickCount"`
	IsActive    bool       `json:"isActive"`
}

// NewLink holds the caller-supplied fields of a link about to be inserted.
type NewLink struct {
	OwnerID     int64
	OriginalURL string
	ShortCode   string
	ExpiresAt   *time.Time
}

// LinkPatch is a partial update. Nil fields are left untouched; ClearExpiry
// removes the expiration and takes precedence over ExpiresAt.
type LinkPatch struct {
	OriginalURL *string
	ShortCode   *string
	ExpiresAt   *time.Time
	ClearExpiry bool
	IsActive    *bool
}

// Apply returns a copy of l with the patch applied.
func (p LinkPatch) Apply(l Link) Link {
	if p.OriginalURL != nil {
		l.OriginalURL = *p.OriginalURL
	}
	if p.ShortCode != nil {
		l.ShortCode = *p.ShortCode
	}
	if p.ClearExpiry {
		l.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		l.ExpiresAt = &t
	}
	if p.IsActive != nil {
		l.IsActive = *p.IsActive
	}
	return l
}

type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusDisabled LinkStatus = "disabled"
	LinkStatusExpired  LinkStatus = "expired"
)

// Expired reports whether the link has an expiration at or before now.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// Resolvable reports whether the link may be used for a redirect at now.
func (l Link) Resolvable(now time.Time) bool {
	return l.IsActive && !l.Expired(now)
}

// Status classifies the link. Expiration wins over the active flag.
func (l Link) Status(now time.Time) LinkStatus {
	switch {
	case l.Expired(now):
		return LinkStatusExpired
	case !l.IsActive:
		return LinkStatusDisabled
	default:
		return LinkStatusActive
	}
}

// LinkView is a link with fields derived at read time.
type LinkView struct {
	Link
	ShortURL  string     `json:"shortUrl"`
	IsExpired bool       `json:"isExpired"`
	State     LinkStatus `json:"status"`
}

func NewLinkView(l Link, baseURL string, now time.Time) LinkView {
	return LinkView{
		Link:      l,
		ShortURL:  ShortURL(baseURL, l.ShortCode),
		IsExpired: l.Expired(now),
		State:     l.Status(now),
	}
}

func ShortURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/" + code
}
