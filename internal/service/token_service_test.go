package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/token-registry/internal/model"
	"github.com/iliyamo/token-registry/internal/repository"
)

// memTokenStore is an in-memory TokenStore used by the service
// tests. It mirrors the MySQL repo contract: sql.ErrNoRows for
// missing rows, repository.ErrTokenValueExists on value collisions.
type memTokenStore struct {
	mu          sync.Mutex
	seq         uint64
	byValue     map[string]model.Token
	forcedFails int // pending inserts to reject as collisions
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{byValue: map[string]model.Token{}}
}

func (m *memTokenStore) InsertUnique(_ context.Context, value string, purpose *string, expiresAt *time.Time) (model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forcedFails > 0 {
		m.forcedFails--
		return model.Token{}, repository.ErrTokenValueExists
	}
	if _, ok := m.byValue[value]; ok {
		return model.Token{}, repository.ErrTokenValueExists
	}
	m.seq++
	tok := model.Token{
		ID:        m.seq,
		Value:     value,
		Purpose:   purpose,
		IsActive:  true,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	m.byValue[value] = tok
	return tok, nil
}

func (m *memTokenStore) FindActiveByValue(_ context.Context, value string) (model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.byValue[value]
	if !ok || !tok.IsActive {
		return model.Token{}, sql.ErrNoRows
	}
	return tok, nil
}

func (m *memTokenStore) FindByID(_ context.Context, id uint64) (model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.byValue {
		if tok.ID == id {
			return tok, nil
		}
	}
	return model.Token{}, sql.ErrNoRows
}

func (m *memTokenStore) ListActive(_ context.Context, offset, limit int) ([]model.Token, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var all []model.Token
	for _, tok := range m.byValue {
		if tok.Usable(now) {
			all = append(all, tok)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memTokenStore) SetActive(_ context.Context, id uint64, active bool) (model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for v, tok := range m.byValue {
		if tok.ID == id {
			tok.IsActive = active
			m.byValue[v] = tok
			return tok, nil
		}
	}
	return model.Token{}, sql.ErrNoRows
}

func newTokenService(store TokenStore) *TokenService {
	return NewTokenService(zap.NewNop(), store)
}

func TestGenerateProducesUniqueValues(t *testing.T) {
	store := newMemTokenStore()
	svc := newTokenService(store)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := svc.Generate(context.Background(), "", 0)
		require.NoError(t, err)
		assert.Len(t, tok.Value, 24)
		assert.False(t, seen[tok.Value], "duplicate value %s", tok.Value)
		seen[tok.Value] = true
		assert.True(t, tok.IsActive)
		assert.Nil(t, tok.ExpiresAt)
	}
}

func TestGenerateSetsExpiryFromDays(t *testing.T) {
	svc := newTokenService(newMemTokenStore())

	tok, err := svc.Generate(context.Background(), "nightly import", 7)
	require.NoError(t, err)
	require.NotNil(t, tok.ExpiresAt)
	require.NotNil(t, tok.Purpose)
	assert.Equal(t, "nightly import", *tok.Purpose)

	want := time.Now().UTC().Add(7 * 24 * time.Hour)
	assert.WithinDuration(t, want, *tok.ExpiresAt, time.Minute)

	// Zero and negative day counts mean "no expiry".
	for _, days := range []int{0, -1} {
		tok, err := svc.Generate(context.Background(), "", days)
		require.NoError(t, err)
		assert.Nil(t, tok.ExpiresAt)
	}
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	store := newMemTokenStore()
	store.forcedFails = 3
	svc := newTokenService(store)

	tok, err := svc.Generate(context.Background(), "", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Value)
	assert.Zero(t, store.forcedFails, "all forced collisions should be consumed")
}

func TestGenerateExhaustsAfterTenAttempts(t *testing.T) {
	store := newMemTokenStore()
	store.forcedFails = 10
	svc := newTokenService(store)

	_, err := svc.Generate(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrGenerationExhausted)
}

func TestValidate(t *testing.T) {
	store := newMemTokenStore()
	svc := newTokenService(store)

	tok, err := svc.Generate(context.Background(), "", 0)
	require.NoError(t, err)

	got, err := svc.Validate(context.Background(), tok.Value)
	require.NoError(t, err)
	assert.Equal(t, tok.Value, got.Value)

	_, err = svc.Validate(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestValidateExpiredToken(t *testing.T) {
	store := newMemTokenStore()
	svc := newTokenService(store)

	// Insert a pre-expired fixture directly: Generate never produces
	// an expiry in the past.
	past := time.Now().UTC().Add(-time.Hour)
	tok, err := store.InsertUnique(context.Background(), "aaaabbbbccccddddeeeeffff", nil, &past)
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), tok.Value)
	assert.ErrorIs(t, err, ErrTokenExpired, "expired must not be reported as not found")
}

func TestDeactivateThenValidateFails(t *testing.T) {
	store := newMemTokenStore()
	svc := newTokenService(store)

	tok, err := svc.Generate(context.Background(), "", 0)
	require.NoError(t, err)

	got, err := svc.Deactivate(context.Background(), tok.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = svc.Validate(context.Background(), tok.Value)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = svc.Deactivate(context.Background(), 99999)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestListPagination(t *testing.T) {
	store := newMemTokenStore()
	svc := newTokenService(store)

	for i := 0; i < 25; i++ {
		_, err := svc.Generate(context.Background(), "", 0)
		require.NoError(t, err)
	}

	pg, err := svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, pg.Total)
	assert.Equal(t, 3, pg.Pages)
	assert.Len(t, pg.Items, 10)

	pg, err = svc.List(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.Len(t, pg.Items, 5)

	// Out-of-range inputs are clamped rather than rejected.
	pg, err = svc.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, pg.Page)
	assert.Equal(t, 20, pg.Limit)
}

func TestListExcludesExpiredAndInactive(t *testing.T) {
	store := newMemTokenStore()
	svc := newTokenService(store)

	live, err := svc.Generate(context.Background(), "", 0)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	_, err = store.InsertUnique(context.Background(), "000011112222333344445555", nil, &past)
	require.NoError(t, err)

	dead, err := svc.Generate(context.Background(), "", 0)
	require.NoError(t, err)
	_, err = svc.Deactivate(context.Background(), dead.ID)
	require.NoError(t, err)

	pg, err := svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, pg.Items, 1)
	assert.Equal(t, live.Value, pg.Items[0].Value)
}
