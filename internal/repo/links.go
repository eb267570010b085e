package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdusco/shorty/internal"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const dialect = "sqlite3"

var linkColumns = []any{
	"id", "user_id", "original_url", "short_code", "created_at", "expires_at", "click_count", "is_active",
}

type linkRow struct {
	ID          int64  `db:"id"`
	UserID      int64  `db:"user_id"`
	OriginalURL string `db:"original_url"`
	ShortCode   string `db:"short_code"`
	CreatedAt   Date   `db:"created_at"`
	ExpiresAt   *Date  `db:"expires_at"`
	ClickCount  int64  `db:"click_count"`
	IsActive    bool   `db:"is_active"`
}

// LinksRepo is the SQLite-backed LinkRepo.
type LinksRepo struct {
	db  *goqu.Database
	now func() time.Time
}

func NewLinksRepo(db *sql.DB, now func() time.Time) *LinksRepo {
	if now == nil {
		now = time.Now
	}
	return &LinksRepo{db: goqu.New(dialect, db), now: now}
}

func (r *LinksRepo) Insert(ctx context.Context, nl internal.NewLink) (*internal.Link, error) {
	log.Debug().Str("short_code", nl.ShortCode).Str("url", nl.OriginalURL).Msg("creating link")

	query := r.db.Insert("links").Rows(goqu.Record{
		"user_id":      nl.OwnerID,
		"original_url": nl.OriginalURL,
		"short_code":   nl.ShortCode,
		"created_at":   Date(r.now()),
		"expires_at":   datePtr(nl.ExpiresAt),
		"click_count":  0,
		"is_active":    true,
	})

	res, err := query.Executor().ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrShortCodeTaken
		}
		return nil, fmt.Errorf("failed to insert link: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read link id: %w", err)
	}

	log.Info().Int64("link_id", id).Str("short_code", nl.ShortCode).Msg("link created")

	return r.GetByID(ctx, id)
}

func (r *LinksRepo) GetByShortCode(ctx context.Context, code string) (*internal.Link, error) {
	return r.getOne(ctx, goqu.Ex{"short_code": code})
}

func (r *LinksRepo) GetByID(ctx context.Context, id int64) (*internal.Link, error) {
	return r.getOne(ctx, goqu.Ex{"id": id})
}

func (r *LinksRepo) GetByIDForOwner(ctx context.Context, id, ownerID int64) (*internal.Link, error) {
	return r.getOne(ctx, goqu.Ex{"id": id, "user_id": ownerID})
}

func (r *LinksRepo) ListForOwner(ctx context.Context, ownerID int64) ([]*internal.Link, error) {
	query := r.db.From("links").
		Select(linkColumns...).
		Where(goqu.Ex{"user_id": ownerID}).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc())

	var rows []linkRow
	if err := query.ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	links := make([]*internal.Link, len(rows))
	for i := range rows {
		links[i] = rows[i].toDomain()
	}
	return links, nil
}

func (r *LinksRepo) Update(ctx context.Context, id, ownerID int64, patch internal.LinkPatch) (*internal.Link, error) {
	current, err := r.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(*current)

	query := r.db.Update("links").
		Set(goqu.Record{
			"original_url": updated.OriginalURL,
			"short_code":   updated.ShortCode,
			"expires_at":   datePtr(updated.ExpiresAt),
			"is_active":    updated.IsActive,
		}).
		Where(goqu.Ex{"id": id, "user_id": ownerID})

	res, err := query.Executor().ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrShortCodeTaken
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, internal.ErrLinkNotFound
	}

	log.Debug().Int64("link_id", id).Msg("link updated")

	return r.GetByID(ctx, id)
}

func (r *LinksRepo) Delete(ctx context.Context, id, ownerID int64) (*internal.Link, error) {
	link, err := r.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	query := r.db.Delete("links").Where(goqu.Ex{"id": id, "user_id": ownerID})
	res, err := query.Executor().ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to delete link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, internal.ErrLinkNotFound
	}

	log.Debug().Int64("link_id", id).Str("short_code", link.ShortCode).Msg("link deleted")

	return link, nil
}

// IncrementClicks relies on SQLite applying the UPDATE atomically.
func (r *LinksRepo) IncrementClicks(ctx context.Context, id int64) (*internal.Link, error) {
	query := r.db.Update("links").
		Set(goqu.Record{"click_count": goqu.L("click_count + 1")}).
		Where(goqu.Ex{"id": id})

	res, err := query.Executor().ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to increment clicks: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, internal.ErrLinkNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *LinksRepo) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	n, err := r.db.From("links").Where(goqu.Ex{"short_code": code}).CountContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check short code: %w", err)
	}
	return n > 0, nil
}

func (r *LinksRepo) getOne(ctx context.Context, where goqu.Ex) (*internal.Link, error) {
	query := r.db.From("links").Select(linkColumns...).Where(where)

	var row linkRow
	found, err := query.ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch link")
		return nil, fmt.Errorf("failed to fetch link: %w", err)
	}
	if !found {
		return nil, internal.ErrLinkNotFound
	}
	return row.toDomain(), nil
}

func (r *linkRow) toDomain() *internal.Link {
	return &internal.Link{
		ID:          r.ID,
		OwnerID:     r.UserID,
		OriginalURL: r.OriginalURL,
		ShortCode:   r.ShortCode,
		CreatedAt:   r.CreatedAt.Time(),
		ExpiresAt:   r.ExpiresAt.timePtr(),
		ClickCount:  r.ClickCount,
		IsActive:    r.IsActive,
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
