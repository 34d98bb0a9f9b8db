package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/token-registry/internal/model"
	"github.com/iliyamo/token-registry/internal/repository"
)

// MaxAssociationsPerToken caps how many usernames a single token may
// hold simultaneously. The cap counts active associations only;
// removing one frees a slot.
const MaxAssociationsPerToken = 300

// usernamePattern matches the external platform's handle rules:
// 1 to 15 characters, letters, digits and underscores.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// NormalizeUsername strips one leading '@' and surrounding
// whitespace. Applying it twice yields the same string.
func NormalizeUsername(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(raw, "@"))
}

// AssociationStore is the persistence contract for associations.
// *repository.AssociationRepo satisfies it. FindActive and
// DeactivateOne report a missing pair as sql.ErrNoRows; Insert
// reports a duplicate active pair as repository.ErrAssociationExists.
type AssociationStore interface {
	FindActive(ctx context.Context, tokenValue, username string) (model.Association, error)
	CountActive(ctx context.Context, tokenValue string) (int, error)
	Insert(ctx context.Context, tokenValue, username string) (model.Association, error)
	DeactivateOne(ctx context.Context, tokenValue, username string) (model.Association, error)
	ListByToken(ctx context.Context, tokenValue string) ([]model.Association, error)
	ListByUsername(ctx context.Context, username string) ([]model.Association, error)
}

// AssociationService enforces the business rules around the
// token-to-username relation: token validation before every mutation,
// pair uniqueness, and the per-token quota. The duplicate and quota
// pre-checks are advisory fast paths; the store's unique index is the
// authoritative arbiter under concurrency.
type AssociationService struct {
	log    *zap.Logger
	tokens *TokenService
	store  AssociationStore
}

func NewAssociationService(log *zap.Logger, tokens *TokenService, store AssociationStore) *AssociationService {
	return &AssociationService{log: log, tokens: tokens, store: store}
}

// Add associates a username with a token. Failure modes, in order:
// ErrInvalidUsername, ErrTokenNotFound / ErrTokenExpired,
// repository.ErrAssociationExists, *QuotaError.
func (s *AssociationService) Add(ctx context.Context, tokenValue, rawUsername string) (model.Association, error) {
	username := NormalizeUsername(rawUsername)
	if !usernamePattern.MatchString(username) {
		return model.Association{}, ErrInvalidUsername
	}
	if _, err := s.tokens.Validate(ctx, tokenValue); err != nil {
		return model.Association{}, err
	}

	// Advisory duplicate check so the common case fails fast with a
	// clean error instead of a constraint violation.
	if _, err := s.store.FindActive(ctx, tokenValue, username); err == nil {
		return model.Association{}, repository.ErrAssociationExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.Association{}, err
	}

	count, err := s.store.CountActive(ctx, tokenValue)
	if err != nil {
		return model.Association{}, err
	}
	if count >= MaxAssociationsPerToken {
		return model.Association{}, &QuotaError{Count: count, Limit: MaxAssociationsPerToken}
	}

	// The insert may still collide with a concurrent add for the same
	// pair; the store surfaces that as ErrAssociationExists.
	assoc, err := s.store.Insert(ctx, tokenValue, username)
	if err != nil {
		return model.Association{}, err
	}
	s.log.Info("association added",
		zap.String("username", assoc.ExternalUsername),
		zap.Int("count", count+1))
	return assoc, nil
}

// Remove deactivates the active association for the pair. Token
// validation failures take precedence over a missing pair, so a
// caller with an expired token sees ErrTokenExpired rather than
// ErrAssociationNotFound.
func (s *AssociationService) Remove(ctx context.Context, tokenValue, rawUsername string) (model.Association, error) {
	username := NormalizeUsername(rawUsername)
	if !usernamePattern.MatchString(username) {
		return model.Association{}, ErrInvalidUsername
	}
	if _, err := s.tokens.Validate(ctx, tokenValue); err != nil {
		return model.Association{}, err
	}
	assoc, err := s.store.DeactivateOne(ctx, tokenValue, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Association{}, ErrAssociationNotFound
		}
		return model.Association{}, err
	}
	s.log.Info("association removed", zap.String("username", assoc.ExternalUsername))
	return assoc, nil
}

// ListByToken returns every active association held by a token. The
// token is validated first so a deactivated or expired token cannot
// enumerate its former associations.
func (s *AssociationService) ListByToken(ctx context.Context, tokenValue string) ([]model.Association, error) {
	if _, err := s.tokens.Validate(ctx, tokenValue); err != nil {
		return nil, err
	}
	return s.store.ListByToken(ctx, tokenValue)
}

// ListByUsername is a public read: it returns every active
// association carrying the username across all tokens. No token is
// required, only normalization is applied.
func (s *AssociationService) ListByUsername(ctx context.Context, rawUsername string) ([]model.Association, error) {
	return s.store.ListByUsername(ctx, NormalizeUsername(rawUsername))
}
