package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/token-registry/internal/model"
)

// TokenRepo persists access tokens in the 'tokens' table. The unique
// index on `value` is the authoritative uniqueness check for token
// values; callers rely on InsertUnique surfacing collisions as
// ErrTokenValueExists.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const tokenColumns = "id, value, purpose, is_active, expires_at, created_at"

func scanToken(row *sql.Row) (model.Token, error) {
	var (
		t         model.Token
		purpose   sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Value, &purpose, &t.IsActive, &expiresAt, &t.CreatedAt)
	if err != nil {
		return model.Token{}, err
	}
	if purpose.Valid {
		t.Purpose = &purpose.String
	}
	if expiresAt.Valid {
		exp := expiresAt.Time
		t.ExpiresAt = &exp
	}
	return t, nil
}

// InsertUnique inserts a token row and returns it with its assigned
// id. A duplicate value is reported as ErrTokenValueExists.
func (r *TokenRepo) InsertUnique(ctx context.Context, value string, purpose *string, expiresAt *time.Time) (model.Token, error) {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tokens (value, purpose, expires_at, created_at) VALUES (?,?,?,?)",
		value, purpose, expiresAt, now)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return model.Token{}, ErrTokenValueExists
		}
		return model.Token{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Token{}, err
	}
	return model.Token{
		ID:        uint64(id),
		Value:     value,
		Purpose:   purpose,
		IsActive:  true,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// FindActiveByValue fetches a token by value where is_active=1. The
// expiry check is intentionally NOT applied here: the service layer
// needs to distinguish an expired token from a missing one.
func (r *TokenRepo) FindActiveByValue(ctx context.Context, value string) (model.Token, error) {
	return scanToken(r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM tokens WHERE value=? AND is_active=1 LIMIT 1",
		value))
}

// FindByID fetches a token by primary key regardless of state.
func (r *TokenRepo) FindByID(ctx context.Context, id uint64) (model.Token, error) {
	return scanToken(r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM tokens WHERE id=? LIMIT 1",
		id))
}

// ListActive returns a page of active, non-expired tokens ordered by
// newest first, along with the total count matching the same filter.
// Expired rows are excluded at read time so a lagging sweep never
// leaks an expired token into the listing.
func (r *TokenRepo) ListActive(ctx context.Context, offset, limit int) ([]model.Token, int, error) {
	const filter = "is_active=1 AND (expires_at IS NULL OR expires_at > UTC_TIMESTAMP())"

	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tokens WHERE "+filter).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+tokenColumns+" FROM tokens WHERE "+filter+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Token
	for rows.Next() {
		var (
			t         model.Token
			purpose   sql.NullString
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Value, &purpose, &t.IsActive, &expiresAt, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		if purpose.Valid {
			t.Purpose = &purpose.String
		}
		if expiresAt.Valid {
			exp := expiresAt.Time
			t.ExpiresAt = &exp
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// SetActive flips the is_active flag and returns the updated row.
// sql.ErrNoRows is returned when the id does not exist.
func (r *TokenRepo) SetActive(ctx context.Context, id uint64, active bool) (model.Token, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tokens SET is_active=? WHERE id=?", active, id)
	if err != nil {
		return model.Token{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Token{}, err
	} else if n == 0 {
		// Either the id is unknown or the flag already had the target
		// value; re-read to tell the two apart.
		if _, err := r.FindByID(ctx, id); err != nil {
			return model.Token{}, err
		}
	}
	return r.FindByID(ctx, id)
}

// DeleteExpired purges token rows whose expiry has passed. This is
// store-level housekeeping driven by the background sweeper; expiry
// semantics do not depend on it because reads filter independently.
func (r *TokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at <= UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
