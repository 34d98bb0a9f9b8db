package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/token-registry/internal/model"
	"github.com/iliyamo/token-registry/internal/queue"
	"github.com/iliyamo/token-registry/internal/service"
)

// TokenHandler bundles dependencies for token lifecycle endpoints.
type TokenHandler struct {
	Log    *zap.Logger
	Tokens *service.TokenService
}

func NewTokenHandler(log *zap.Logger, tokens *service.TokenService) *TokenHandler {
	return &TokenHandler{Log: log, Tokens: tokens}
}

// ----- DTOs -----

type generateReq struct {
	Purpose       string `json:"purpose"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type tokenResp struct {
	ID        uint64     `json:"id"`
	Token     string     `json:"token"`
	Purpose   *string    `json:"purpose,omitempty"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type tokenListResp struct {
	Items []tokenResp `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Pages int         `json:"pages"`
}

func toTokenResp(t model.Token) tokenResp {
	return tokenResp{
		ID:        t.ID,
		Token:     t.Value,
		Purpose:   t.Purpose,
		IsActive:  t.IsActive,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	}
}

// Generate mints a new token. Expiry is optional: only a positive
// expires_in_days produces an expiring token.
func (h *TokenHandler) Generate(c echo.Context) error {
	var req generateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Tokens.Generate(ctx, req.Purpose, req.ExpiresInDays)
	if err != nil {
		if errors.Is(err, service.ErrGenerationExhausted) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate unique token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate token failed"})
	}

	go func() {
		_ = queue.Publish(context.Background(), h.Log,
			queue.NewEvent(queue.EventTokenGenerated, tok.ID, tok.Value, ""))
	}()

	return c.JSON(http.StatusCreated, toTokenResp(tok))
}

// List returns a page of active tokens, newest first.
func (h *TokenHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pg, err := h.Tokens.List(ctx, page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list tokens failed"})
	}
	items := make([]tokenResp, 0, len(pg.Items))
	for _, t := range pg.Items {
		items = append(items, toTokenResp(t))
	}
	return c.JSON(http.StatusOK, tokenListResp{
		Items: items,
		Total: pg.Total,
		Page:  pg.Page,
		Limit: pg.Limit,
		Pages: pg.Pages,
	})
}

// GetByID returns a single token row, active or not.
func (h *TokenHandler) GetByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Tokens.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toTokenResp(tok))
}

// Validate checks whether a token value is usable. Expired tokens
// are distinguished from unknown or deactivated ones.
func (h *TokenHandler) Validate(c echo.Context) error {
	value := c.Param("value")
	if value == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token value required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Tokens.Validate(ctx, value)
	if err != nil {
		return tokenFailure(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "token": toTokenResp(tok)})
}

// Deactivate turns a token off. Already-inactive tokens deactivate
// idempotently.
func (h *TokenHandler) Deactivate(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Tokens.Deactivate(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate failed"})
	}

	go func() {
		_ = queue.Publish(context.Background(), h.Log,
			queue.NewEvent(queue.EventTokenDeactivated, tok.ID, tok.Value, ""))
	}()

	return c.JSON(http.StatusOK, toTokenResp(tok))
}

// tokenFailure maps token validation errors to responses shared by
// every endpoint that gates on a token.
func tokenFailure(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found or inactive"})
	case errors.Is(err, service.ErrTokenExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has expired"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
}
