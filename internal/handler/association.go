package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/token-registry/internal/queue"
	"github.com/iliyamo/token-registry/internal/repository"
	"github.com/iliyamo/token-registry/internal/service"
)

// AssociationHandler bundles dependencies for the endpoints that
// manage token-to-username associations.
type AssociationHandler struct {
	Log          *zap.Logger
	Associations *service.AssociationService
}

func NewAssociationHandler(log *zap.Logger, assoc *service.AssociationService) *AssociationHandler {
	return &AssociationHandler{Log: log, Associations: assoc}
}

// ----- DTOs -----

type associationReq struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
}

type associationResp struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type byTokenResp struct {
	Usernames []associationResp `json:"usernames"`
	Count     int               `json:"count"`
}

type byUsernameEntry struct {
	TokenPrefix string    `json:"token_prefix"`
	CreatedAt   time.Time `json:"created_at"`
}

type byUsernameResp struct {
	Username string            `json:"username"`
	Entries  []byUsernameEntry `json:"entries"`
	Count    int               `json:"count"`
}

// Add associates a username with the caller's token.
func (h *AssociationHandler) Add(c echo.Context) error {
	var req associationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "access_token required"})
	}
	if strings.TrimSpace(req.Username) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	assoc, err := h.Associations.Add(ctx, req.AccessToken, req.Username)
	if err != nil {
		return associationFailure(c, err)
	}

	go func() {
		_ = queue.Publish(context.Background(), h.Log,
			queue.NewEvent(queue.EventAssociationAdded, 0, assoc.TokenValue, assoc.ExternalUsername))
	}()

	return c.JSON(http.StatusCreated, associationResp{
		Username:  assoc.ExternalUsername,
		CreatedAt: assoc.CreatedAt,
	})
}

// Remove deactivates the association between the caller's token and
// a username.
func (h *AssociationHandler) Remove(c echo.Context) error {
	var req associationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "access_token required"})
	}
	if strings.TrimSpace(req.Username) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	assoc, err := h.Associations.Remove(ctx, req.AccessToken, req.Username)
	if err != nil {
		return associationFailure(c, err)
	}

	go func() {
		_ = queue.Publish(context.Background(), h.Log,
			queue.NewEvent(queue.EventAssociationRemoved, 0, assoc.TokenValue, assoc.ExternalUsername))
	}()

	return c.JSON(http.StatusOK, echo.Map{
		"username":   assoc.ExternalUsername,
		"removed_at": time.Now().UTC(),
	})
}

// ListByToken returns every username the token has associated. The
// token is revalidated first, so a deactivated or expired token gets
// the corresponding failure instead of an empty list.
func (h *AssociationHandler) ListByToken(c echo.Context) error {
	value := c.Param("value")
	if value == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token value required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Associations.ListByToken(ctx, value)
	if err != nil {
		return associationFailure(c, err)
	}
	out := make([]associationResp, 0, len(items))
	for _, a := range items {
		out = append(out, associationResp{Username: a.ExternalUsername, CreatedAt: a.CreatedAt})
	}
	return c.JSON(http.StatusOK, byTokenResp{Usernames: out, Count: len(out)})
}

// ListByUsername is the public lookup: which tokens carry this
// username. Full token values are credentials and never leave the
// service; only a short prefix is exposed per entry.
func (h *AssociationHandler) ListByUsername(c echo.Context) error {
	raw := c.Param("username")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Associations.ListByUsername(ctx, raw)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	entries := make([]byUsernameEntry, 0, len(items))
	for _, a := range items {
		entries = append(entries, byUsernameEntry{
			TokenPrefix: tokenPrefix(a.TokenValue),
			CreatedAt:   a.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, byUsernameResp{
		Username: service.NormalizeUsername(raw),
		Entries:  entries,
		Count:    len(entries),
	})
}

func tokenPrefix(value string) string {
	if len(value) > 6 {
		return value[:6] + "…"
	}
	return value
}

// associationFailure maps service errors from association operations
// to their HTTP responses, including the quota payload.
func associationFailure(c echo.Context, err error) error {
	var quota *service.QuotaError
	switch {
	case errors.Is(err, service.ErrInvalidUsername):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "invalid username format: must be 1-15 characters, letters, numbers and underscores only",
		})
	case errors.Is(err, service.ErrTokenNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found or inactive"})
	case errors.Is(err, service.ErrTokenExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has expired"})
	case errors.Is(err, repository.ErrAssociationExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "this token has already added this username"})
	case errors.Is(err, service.ErrAssociationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "username not found for this token"})
	case errors.As(err, &quota):
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":         "token has reached the maximum number of usernames",
			"current_count": quota.Count,
			"limit":         quota.Limit,
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
}
