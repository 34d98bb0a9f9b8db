package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/token-registry/internal/model"
	"github.com/iliyamo/token-registry/internal/service"
)

// AuthHandler implements token-based login. There are no separate
// user accounts: the token value is both credential and identity, so
// "logging in" is just validating the token and echoing its record
// back in a user-shaped payload.
type AuthHandler struct {
	Log    *zap.Logger
	Tokens *service.TokenService
}

func NewAuthHandler(log *zap.Logger, tokens *service.TokenService) *AuthHandler {
	return &AuthHandler{Log: log, Tokens: tokens}
}

// ----- DTOs -----

type loginReq struct {
	AccessToken string `json:"access_token"`
}

type loginUser struct {
	ID        string    `json:"id"`
	Purpose   *string   `json:"purpose,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type loginToken struct {
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type loginResp struct {
	UserID string     `json:"user_id"`
	User   loginUser  `json:"user"`
	Token  loginToken `json:"token"`
}

func toLoginResp(tok model.Token) loginResp {
	return loginResp{
		UserID: tok.Value,
		User: loginUser{
			ID:        tok.Value,
			Purpose:   tok.Purpose,
			CreatedAt: tok.CreatedAt,
		},
		Token: loginToken{
			IsActive:  tok.IsActive,
			ExpiresAt: tok.ExpiresAt,
		},
	}
}

// Login validates the supplied token and returns its user-shaped
// identity. Unknown and deactivated tokens are both rejected with
// 401 rather than 404 so the endpoint does not confirm whether a
// guessed value ever existed.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.AccessToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "access_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Tokens.Validate(ctx, strings.TrimSpace(req.AccessToken))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenNotFound):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid access token"})
		case errors.Is(err, service.ErrTokenExpired):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "access token has expired"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}
	return c.JSON(http.StatusOK, toLoginResp(tok))
}

// Me returns the current identity for a token. Same contract as
// Login; the endpoints are separate so clients can poll Me cheaply
// without implying a fresh login.
func (h *AuthHandler) Me(c echo.Context) error {
	return h.Login(c)
}
