// Package gate enforces the access-control policy on every page. It
// replaces per-page session checks with two middlewares over a single
// check: pages that require authentication and pages that require
// anonymity. The handler behind RequireAuth never runs without a live,
// provider-confirmed user.
package gate

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/escpfinance/finprep/internal/identity"
	"github.com/escpfinance/finprep/internal/logger"
	"github.com/escpfinance/finprep/internal/session"
)

// LoginRoute is where unauthenticated visitors of protected pages are
// sent. HomeRoute is where authenticated visitors of anonymous-only
// pages are sent.
const (
	LoginRoute = "/login"
	HomeRoute  = "/choose-career"
)

type sessionReader interface {
	FromRequest(request *http.Request) (*session.Claims, error)
}

type userResolver interface {
	GetUser(ctx context.Context, accessToken string) (*identity.User, error)
}

// Gate resolves the current session once per request and applies a
// redirect policy.
type Gate struct {
	sessions sessionReader
	provider userResolver
}

// ContextKey is a custom type for context values to avoid collisions.
type ContextKey string

const (
	userKey        ContextKey = "currentUser"
	accessTokenKey ContextKey = "accessToken"
)

// New creates a Gate over the given session reader and provider client.
func New(sessions sessionReader, provider userResolver) *Gate {
	return &Gate{
		sessions: sessions,
		provider: provider,
	}
}

// resolve returns the live user behind the request's session cookie, or
// nil when there is none. A provider failure during the check is logged
// and treated as "no session": the page fails safe to the logged-out
// branch instead of crashing.
func (g *Gate) resolve(request *http.Request) (*identity.User, string) {
	claims, err := g.sessions.FromRequest(request)
	if err != nil || claims == nil {
		return nil, ""
	}

	usr, err := g.provider.GetUser(request.Context(), claims.AccessToken)
	if err != nil {
		logger.Log.Errorln(
			"session check failed, treating as logged out",
			"path", request.URL.Path,
			zap.Error(err),
		)
		return nil, ""
	}
	if usr == nil {
		return nil, ""
	}

	return usr, claims.AccessToken
}

// RequireAuth admits only requests with a live session. Everyone else is
// redirected to the login page before the handler runs.
func (g *Gate) RequireAuth(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		usr, accessToken := g.resolve(request)
		if usr == nil {
			http.Redirect(response, request, LoginRoute, http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(request.Context(), userKey, usr)
		ctx = context.WithValue(ctx, accessTokenKey, accessToken)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// RequireAnonymous admits only requests without a live session. A signed
// in visitor is redirected to the career chooser before the handler runs.
func (g *Gate) RequireAnonymous(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		usr, _ := g.resolve(request)
		if usr != nil {
			http.Redirect(response, request, HomeRoute, http.StatusSeeOther)
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

// CurrentUser returns the user placed in the context by RequireAuth.
func CurrentUser(ctx context.Context) *identity.User {
	usr, _ := ctx.Value(userKey).(*identity.User)
	return usr
}

// AccessToken returns the provider access token placed in the context by
// RequireAuth.
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey).(string)
	return token
}
