package handler

// Shared test fixtures: in-memory stores satisfying the service
// contracts, and an echo instance with the full route table mounted.

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/token-registry/internal/model"
	"github.com/iliyamo/token-registry/internal/repository"
	"github.com/iliyamo/token-registry/internal/service"
)

type fakeTokenStore struct {
	mu      sync.Mutex
	seq     uint64
	byValue map[string]model.Token
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{byValue: map[string]model.Token{}}
}

func (f *fakeTokenStore) InsertUnique(_ context.Context, value string, purpose *string, expiresAt *time.Time) (model.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byValue[value]; ok {
		return model.Token{}, repository.ErrTokenValueExists
	}
	f.seq++
	tok := model.Token{
		ID: f.seq, Value: value, Purpose: purpose,
		IsActive: true, ExpiresAt: expiresAt, CreatedAt: time.Now().UTC(),
	}
	f.byValue[value] = tok
	return tok, nil
}

func (f *fakeTokenStore) FindActiveByValue(_ context.Context, value string) (model.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.byValue[value]
	if !ok || !tok.IsActive {
		return model.Token{}, sql.ErrNoRows
	}
	return tok, nil
}

func (f *fakeTokenStore) FindByID(_ context.Context, id uint64) (model.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tok := range f.byValue {
		if tok.ID == id {
			return tok, nil
		}
	}
	return model.Token{}, sql.ErrNoRows
}

func (f *fakeTokenStore) ListActive(_ context.Context, offset, limit int) ([]model.Token, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var all []model.Token
	for _, tok := range f.byValue {
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

func (f *fakeTokenStore) SetActive(_ context.Context, id uint64, active bool) (model.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for v, tok := range f.byValue {
		if tok.ID == id {
			tok.IsActive = active
			f.byValue[v] = tok
			return tok, nil
		}
	}
	return model.Token{}, sql.ErrNoRows
}

type fakeAssocStore struct {
	mu   sync.Mutex
	seq  uint64
	rows []model.Association

	countOverride int // when > 0, CountActive reports this value
}

func (f *fakeAssocStore) find(tokenValue, username string) int {
	for i, a := range f.rows {
		if a.TokenValue == tokenValue && a.ExternalUsername == username {
			return i
		}
	}
	return -1
}

func (f *fakeAssocStore) FindActive(_ context.Context, tokenValue, username string) (model.Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(tokenValue, username); i >= 0 && f.rows[i].IsActive {
		return f.rows[i], nil
	}
	return model.Association{}, sql.ErrNoRows
}

func (f *fakeAssocStore) CountActive(_ context.Context, tokenValue string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countOverride > 0 {
		return f.countOverride, nil
	}
	n := 0
	for _, a := range f.rows {
		if a.TokenValue == tokenValue && a.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeAssocStore) Insert(_ context.Context, tokenValue, username string) (model.Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(tokenValue, username); i >= 0 {
		if f.rows[i].IsActive {
			return model.Association{}, repository.ErrAssociationExists
		}
		f.rows[i].IsActive = true
		f.rows[i].CreatedAt = time.Now().UTC()
		return f.rows[i], nil
	}
	f.seq++
	a := model.Association{
		ID: f.seq, TokenValue: tokenValue, ExternalUsername: username,
		IsActive: true, CreatedAt: time.Now().UTC(),
	}
	f.rows = append(f.rows, a)
	return a, nil
}

func (f *fakeAssocStore) DeactivateOne(_ context.Context, tokenValue, username string) (model.Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(tokenValue, username); i >= 0 && f.rows[i].IsActive {
		a := f.rows[i]
		f.rows[i].IsActive = false
		return a, nil
	}
	return model.Association{}, sql.ErrNoRows
}

func (f *fakeAssocStore) ListByToken(_ context.Context, tokenValue string) ([]model.Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Association
	for _, a := range f.rows {
		if a.TokenValue == tokenValue && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssocStore) ListByUsername(_ context.Context, username string) ([]model.Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Association
	for _, a := range f.rows {
		if a.ExternalUsername == username && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// testServer mounts the full route table over in-memory stores.
type testServer struct {
	e          *echo.Echo
	tokens     *service.TokenService
	tokenStore *fakeTokenStore
	assocStore *fakeAssocStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	tokenStore := newFakeTokenStore()
	assocStore := &fakeAssocStore{}
	tokens := service.NewTokenService(log, tokenStore)
	assoc := service.NewAssociationService(log, tokens, assocStore)

	e := echo.New()
	e.GET("/healthz", Health)

	th := NewTokenHandler(log, tokens)
	tg := e.Group("/v1/tokens")
	tg.POST("", th.Generate)
	tg.GET("", th.List)
	tg.GET("/validate/:value", th.Validate)
	tg.GET("/:id", th.GetByID)
	tg.PATCH("/:id/deactivate", th.Deactivate)

	ah := NewAuthHandler(log, tokens)
	ag := e.Group("/v1/auth")
	ag.POST("/login", ah.Login)
	ag.POST("/me", ah.Me)

	uh := NewAssociationHandler(log, assoc)
	ug := e.Group("/v1/usernames")
	ug.POST("", uh.Add)
	ug.DELETE("", uh.Remove)
	ug.GET("/token/:value", uh.ListByToken)
	ug.GET("/username/:username", uh.ListByUsername)

	return &testServer{e: e, tokens: tokens, tokenStore: tokenStore, assocStore: assocStore}
}

func (s *testServer) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req = httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) mintToken(t *testing.T) string {
	t.Helper()
	tok, err := s.tokens.Generate(context.Background(), "", 0)
	require.NoError(t, err)
	return tok.Value
}

func (s *testServer) mintExpiredToken(t *testing.T) string {
	t.Helper()
	past := time.Now().UTC().Add(-time.Hour)
	tok, err := s.tokenStore.InsertUnique(context.Background(), "deadbeefdeadbeefdeadbeef", nil, &past)
	require.NoError(t, err)
	return tok.Value
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
