package repo

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/abdusco/shorty/internal"
	"github.com/rs/zerolog/log"
)

// MemoryUsersRepo keeps users in process memory. Nothing survives a restart.
type MemoryUsersRepo struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*internal.User
	byEmail map[string]int64
	now     func() time.Time
}

func NewMemoryUsersRepo(now func() time.Time) *MemoryUsersRepo {
	if now == nil {
		now = time.Now
	}
	return &MemoryUsersRepo{
		nextID:  1,
		byID:    make(map[int64]*internal.User),
		byEmail: make(map[string]int64),
		now:     now,
	}
}

func (r *MemoryUsersRepo) Create(_ context.Context, email, name, passwordHash string) (*internal.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[email]; ok {
		return nil, internal.ErrEmailTaken
	}

	user := &internal.User{
		ID:           r.nextID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC(),
	}
	r.nextID++
	r.byID[user.ID] = user
	r.byEmail[email] = user.ID

	log.Debug().Int64("user_id", user.ID).Msg("user created")

	u := *user
	return &u, nil
}

func (r *MemoryUsersRepo) GetByEmail(_ context.Context, email string) (*internal.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	u := *r.byID[id]
	return &u, nil
}

func (r *MemoryUsersRepo) GetByID(_ context.Context, id int64) (*internal.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// MemoryLinksRepo keeps links in process memory behind a single lock, indexed
// by id, short code and owner.
type MemoryLinksRepo struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*internal.Link
	byCode  map[string]int64
	byOwner map[int64]map[int64]struct{}
	now     func() time.Time
}

func NewMemoryLinksRepo(now func() time.Time) *MemoryLinksRepo {
	if now == nil {
		now = time.Now
	}
	return &MemoryLinksRepo{
		nextID:  1,
		byID:    make(map[int64]*internal.Link),
		byCode:  make(map[string]int64),
		byOwner: make(map[int64]map[int64]struct{}),
		now:     now,
	}
}

func (r *MemoryLinksRepo) Insert(_ context.Context, nl internal.NewLink) (*internal.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[nl.ShortCode]; ok {
		return nil, internal.ErrShortCodeTaken
	}

	link := &internal.Link{
		ID:          r.nextID,
		OwnerID:     nl.OwnerID,
		OriginalURL: nl.OriginalURL,
		ShortCode:   nl.ShortCode,
		CreatedAt:   r.now().UTC(),
		ExpiresAt:   copyTime(nl.ExpiresAt),
		IsActive:    true,
	}
	r.nextID++

	r.byID[link.ID] = link
	r.byCode[link.ShortCode] = link.ID
	owned, ok := r.byOwner[link.OwnerID]
	if !ok {
		owned = make(map[int64]struct{})
		r.byOwner[link.OwnerID] = owned
	}
	owned[link.ID] = struct{}{}

	log.Debug().Int64("link_id", link.ID).Str("short_code", link.ShortCode).Msg("link inserted")

	return copyLink(link), nil
}

func (r *MemoryLinksRepo) GetByShortCode(_ context.Context, code string) (*internal.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[code]
	if !ok {
		return nil, internal.ErrLinkNotFound
	}
	return copyLink(r.byID[id]), nil
}

func (r *MemoryLinksRepo) GetByID(_ context.Context, id int64) (*internal.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.byID[id]
	if !ok {
		return nil, internal.ErrLinkNotFound
	}
	return copyLink(link), nil
}

func (r *MemoryLinksRepo) GetByIDForOwner(_ context.Context, id, ownerID int64) (*internal.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.owned(id, ownerID)
	if !ok {
		return nil, internal.ErrLinkNotFound
	}
	return copyLink(link), nil
}

func (r *MemoryLinksRepo) ListForOwner(_ context.Context, ownerID int64) ([]*internal.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := make([]*internal.Link, 0, len(r.byOwner[ownerID]))
	for id := range r.byOwner[ownerID] {
		links = append(links, copyLink(r.byID[id]))
	}
	sortNewestFirst(links)
	return links, nil
}

func (r *MemoryLinksRepo) Update(_ context.Context, id, ownerID int64, patch internal.LinkPatch) (*internal.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.owned(id, ownerID)
	if !ok {
		return nil, internal.ErrLinkNotFound
	}

	updated := patch.Apply(*link)
	if updated.ShortCode != link.ShortCode {
		if _, taken := r.byCode[updated.ShortCode]; taken {
			return nil, internal.ErrShortCodeTaken
		}
		delete(r.byCode, link.ShortCode)
		r.byCode[updated.ShortCode] = id
	}
	*link = updated

	log.Debug().Int64("link_id", id).Msg("link updated")

	return copyLink(link), nil
}

func (r *MemoryLinksRepo) Delete(_ context.Context, id, ownerID int64) (*internal.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.owned(id, ownerID)
	if !ok {
		return nil, internal.ErrLinkNotFound
	}

	delete(r.byID, id)
	delete(r.byCode, link.ShortCode)
	delete(r.byOwner[ownerID], id)

	log.Debug().Int64("link_id", id).Str("short_code", link.ShortCode).Msg("link deleted")

	return link, nil
}

func (r *MemoryLinksRepo) IncrementClicks(_ context.Context, id int64) (*internal.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.byID[id]
	if !ok {
		return nil, internal.ErrLinkNotFound
	}
	link.ClickCount++
	return copyLink(link), nil
}

func (r *MemoryLinksRepo) ShortCodeExists(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byCode[code]
	return ok, nil
}

// owned must be called with r.mu held.
func (r *MemoryLinksRepo) owned(id, ownerID int64) (*internal.Link, bool) {
	link, ok := r.byID[id]
	if !ok || link.OwnerID != ownerID {
		return nil, false
	}
	return link, true
}

// Ids are assigned in insertion order, so they break timestamp ties.
func sortNewestFirst(links []*internal.Link) {
	slices.SortFunc(links, func(a, b *internal.Link) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func copyLink(l *internal.Link) *internal.Link {
	c := *l
	c.ExpiresAt = copyTime(l.ExpiresAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
