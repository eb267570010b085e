package repo

import (
	"context"

	"github.com/abdusco/shorty/internal"
)

// UserRepo holds registered users. Records are write-once.
type UserRepo interface {
	Create(ctx context.Context, email, name, passwordHash string) (*internal.User, error)
	GetByEmail(ctx context.Context, email string) (*internal.User, error)
	GetByID(ctx context.Context, id int64) (*internal.User, error)
}

// LinkRepo holds shortened links. Lookups that take an owner return
// internal.ErrLinkNotFound for links owned by someone else.
//
// Short codes form a single namespace across all owners. Insert and Update
// reject a code that is already indexed with internal.ErrShortCodeTaken, but
// callers are expected to check ShortCodeExists first.
type LinkRepo interface {
	Insert(ctx context.Context, link internal.NewLink) (*internal.Link, error)
	GetByShortCode(ctx context.Context, code string) (*internal.Link, error)
	GetByID(ctx context.Context, id int64) (*internal.Link, error)
	GetByIDForOwner(ctx context.Context, id, ownerID int64) (*internal.Link, error)
	// ListForOwner returns links newest first; equal timestamps keep insertion order.
	ListForOwner(ctx context.Context, ownerID int64) ([]*internal.Link, error)
	Update(ctx context.Context, id, ownerID int64, patch internal.LinkPatch) (*internal.Link, error)
	Delete(ctx context.Context, id, ownerID int64) (*internal.Link, error)
	IncrementClicks(ctx context.Context, id int64) (*internal.Link, error)
	ShortCodeExists(ctx context.Context, code string) (bool, error)
}
