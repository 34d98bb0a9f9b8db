package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/token-registry/internal/model"
	"github.com/iliyamo/token-registry/internal/repository"
	"github.com/iliyamo/token-registry/internal/utils"
)

// maxGenerateAttempts bounds the retry loop in Generate. With 96
// bits of entropy per value a single collision is already unlikely;
// ten collisions in a row mean something is broken and the caller
// should see a hard failure instead of a spin.
const maxGenerateAttempts = 10

// TokenStore is the persistence contract the token service depends
// on. *repository.TokenRepo satisfies it; tests supply an in-memory
// implementation. Lookups report a missing row as sql.ErrNoRows.
type TokenStore interface {
	InsertUnique(ctx context.Context, value string, purpose *string, expiresAt *time.Time) (model.Token, error)
	FindActiveByValue(ctx context.Context, value string) (model.Token, error)
	FindByID(ctx context.Context, id uint64) (model.Token, error)
	ListActive(ctx context.Context, offset, limit int) ([]model.Token, int, error)
	SetActive(ctx context.Context, id uint64, active bool) (model.Token, error)
}

// TokenService mints, validates and deactivates access tokens. It is
// the single validation gate: every privileged operation goes through
// Validate, and validity is never cached between calls.
type TokenService struct {
	log   *zap.Logger
	store TokenStore
}

func NewTokenService(log *zap.Logger, store TokenStore) *TokenService {
	return &TokenService{log: log, store: store}
}

// Generate mints a fresh token. purpose may be empty; expiresInDays
// sets an expiry only when positive. Value collisions are detected by
// the store's unique index, not by a read-then-write existence check,
// and generation is retried up to maxGenerateAttempts before giving
// up with ErrGenerationExhausted.
func (s *TokenService) Generate(ctx context.Context, purpose string, expiresInDays int) (model.Token, error) {
	var purposePtr *string
	if purpose != "" {
		purposePtr = &purpose
	}
	var expiresAt *time.Time
	if expiresInDays > 0 {
		exp := time.Now().UTC().Add(time.Duration(expiresInDays) * 24 * time.Hour)
		expiresAt = &exp
	}

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		value, err := utils.NewTokenValue()
		if err != nil {
			return model.Token{}, err
		}
		tok, err := s.store.InsertUnique(ctx, value, purposePtr, expiresAt)
		if err == nil {
			s.log.Info("token generated",
				zap.Uint64("id", tok.ID),
				zap.Int("attempt", attempt))
			return tok, nil
		}
		if errors.Is(err, repository.ErrTokenValueExists) {
			s.log.Warn("token value collision", zap.Int("attempt", attempt))
			continue
		}
		return model.Token{}, err
	}
	return model.Token{}, ErrGenerationExhausted
}

// Validate resolves a token value to a usable token. It fails with
// ErrTokenNotFound when the value is unknown or the token has been
// deactivated, and with ErrTokenExpired when the token is active but
// past its expiry.
func (s *TokenService) Validate(ctx context.Context, value string) (model.Token, error) {
	tok, err := s.store.FindActiveByValue(ctx, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Token{}, ErrTokenNotFound
		}
		return model.Token{}, err
	}
	if tok.ExpiresAt != nil && !tok.ExpiresAt.After(time.Now().UTC()) {
		return model.Token{}, ErrTokenExpired
	}
	return tok, nil
}

// GetByID fetches a token by primary key.
func (s *TokenService) GetByID(ctx context.Context, id uint64) (model.Token, error) {
	tok, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Token{}, ErrTokenNotFound
		}
		return model.Token{}, err
	}
	return tok, nil
}

// Deactivate turns a token off permanently. Associations held by the
// token are left in place; they simply stop being reachable because
// every operation revalidates the token first.
func (s *TokenService) Deactivate(ctx context.Context, id uint64) (model.Token, error) {
	tok, err := s.store.SetActive(ctx, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Token{}, ErrTokenNotFound
		}
		return model.Token{}, err
	}
	s.log.Info("token deactivated", zap.Uint64("id", tok.ID))
	return tok, nil
}

// TokenPage is one page of the active-token listing.
type TokenPage struct {
	Items []model.Token
	Total int
	Page  int
	Limit int
	Pages int
}

// List returns active, non-expired tokens newest first. page starts
// at 1; out-of-range values are clamped to sane defaults.
func (s *TokenService) List(ctx context.Context, page, limit int) (TokenPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	items, total, err := s.store.ListActive(ctx, (page-1)*limit, limit)
	if err != nil {
		return TokenPage{}, err
	}
	pages := (total + limit - 1) / limit
	return TokenPage{Items: items, Total: total, Page: page, Limit: limit, Pages: pages}, nil
}
