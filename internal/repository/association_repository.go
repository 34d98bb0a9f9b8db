package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/token-registry/internal/model"
)

// AssociationRepo persists (token, username) pairs in the
// 'associations' table. A unique index covers the pair across all
// rows; removal is a soft delete (is_active=0) and re-adding a
// removed pair reactivates the existing row rather than inserting a
// second one, so the index never blocks a legitimate re-add.
type AssociationRepo struct{ DB *sql.DB }

func NewAssociationRepo(db *sql.DB) *AssociationRepo { return &AssociationRepo{DB: db} }

const associationColumns = "id, token_value, external_username, is_active, created_at"

// FindActive fetches the active association for the pair, if any.
func (r *AssociationRepo) FindActive(ctx context.Context, tokenValue, username string) (model.Association, error) {
	var a model.Association
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+associationColumns+" FROM associations WHERE token_value=? AND external_username=? AND is_active=1 LIMIT 1",
		tokenValue, username).Scan(&a.ID, &a.TokenValue, &a.ExternalUsername, &a.IsActive, &a.CreatedAt)
	return a, err
}

// CountActive returns how many active associations a token holds.
func (r *AssociationRepo) CountActive(ctx context.Context, tokenValue string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM associations WHERE token_value=? AND is_active=1",
		tokenValue).Scan(&n)
	return n, err
}

// Insert creates an active association for the pair. On a duplicate
// key it attempts to reactivate an inactive row; if the row is
// already active the insert is a true duplicate and
// ErrAssociationExists is returned. The guarded UPDATE makes the
// race between two concurrent adds safe: only one of them flips
// is_active back to 1, the other sees zero rows affected.
func (r *AssociationRepo) Insert(ctx context.Context, tokenValue, username string) (model.Association, error) {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO associations (token_value, external_username, created_at) VALUES (?,?,?)",
		tokenValue, username, now)
	if err == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return model.Association{}, err
		}
		return model.Association{
			ID:               uint64(id),
			TokenValue:       tokenValue,
			ExternalUsername: username,
			IsActive:         true,
			CreatedAt:        now,
		}, nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), "1062") {
		return model.Association{}, err
	}

	// The pair exists. Reactivate it only if it is currently inactive.
	upd, err := r.DB.ExecContext(ctx,
		"UPDATE associations SET is_active=1, created_at=? WHERE token_value=? AND external_username=? AND is_active=0",
		now, tokenValue, username)
	if err != nil {
		return model.Association{}, err
	}
	n, err := upd.RowsAffected()
	if err != nil {
		return model.Association{}, err
	}
	if n == 0 {
		return model.Association{}, ErrAssociationExists
	}
	return r.FindActive(ctx, tokenValue, username)
}

// DeactivateOne soft-deletes the active association for the pair and
// returns the row as it was before deactivation. sql.ErrNoRows is
// returned when no active pair exists.
func (r *AssociationRepo) DeactivateOne(ctx context.Context, tokenValue, username string) (model.Association, error) {
	a, err := r.FindActive(ctx, tokenValue, username)
	if err != nil {
		return model.Association{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE associations SET is_active=0 WHERE id=? AND is_active=1", a.ID)
	if err != nil {
		return model.Association{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Association{}, err
	} else if n == 0 {
		// Lost a race with a concurrent remove.
		return model.Association{}, sql.ErrNoRows
	}
	return a, nil
}

// ListByToken returns all active associations for a token, newest first.
func (r *AssociationRepo) ListByToken(ctx context.Context, tokenValue string) ([]model.Association, error) {
	return r.list(ctx,
		"SELECT "+associationColumns+" FROM associations WHERE token_value=? AND is_active=1 ORDER BY created_at DESC, id DESC",
		tokenValue)
}

// ListByUsername returns all active associations carrying a username,
// across every token that added it.
func (r *AssociationRepo) ListByUsername(ctx context.Context, username string) ([]model.Association, error) {
	return r.list(ctx,
		"SELECT "+associationColumns+" FROM associations WHERE external_username=? AND is_active=1 ORDER BY created_at DESC, id DESC",
		username)
}

func (r *AssociationRepo) list(ctx context.Context, query string, arg any) ([]model.Association, error) {
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Association
	for rows.Next() {
		var a model.Association
		if err := rows.Scan(&a.ID, &a.TokenValue, &a.ExternalUsername, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
