package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/token-registry/internal/handler"
)

// RegisterRoutes registers routes that do not require a token on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring systems to verify that the
	// service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterTokens registers the token lifecycle endpoints under
// /v1/tokens. These are administrative operations: minting,
// listing, inspecting, validating and deactivating tokens.
func RegisterTokens(e *echo.Echo, t *handler.TokenHandler) {
	g := e.Group("/v1/tokens")
	g.POST("", t.Generate)
	g.GET("", t.List)
	// The validate route is registered before /:id so the literal
	// segment wins over the parameter match.
	g.GET("/validate/:value", t.Validate)
	g.GET("/:id", t.GetByID)
	g.PATCH("/:id/deactivate", t.Deactivate)
}

// RegisterAuth registers token-based login endpoints under /v1/auth.
// There is no register/logout pair: tokens are minted through the
// token endpoints, and a token stays valid until it is deactivated
// or expires.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/me", a.Me)
}

// RegisterAssociations registers the username association endpoints
// under /v1/usernames. The by-username lookup is public and takes an
// optional response-cache middleware; all other operations carry the
// access token in the request body and are gated by token validation
// inside the service.
func RegisterAssociations(e *echo.Echo, h *handler.AssociationHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/usernames")
	g.POST("", h.Add)
	g.DELETE("", h.Remove)
	g.GET("/token/:value", h.ListByToken)
	if cache != nil {
		g.GET("/username/:username", h.ListByUsername, cache)
	} else {
		g.GET("/username/:username", h.ListByUsername)
	}
}
