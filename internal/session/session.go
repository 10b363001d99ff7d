// Package session manages the application's signed session cookie. The
// cookie is an HMAC-signed JWT wrapping the provider-issued access token
// together with the user id, so the gate can restore both without
// re-deriving configuration on every page.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/escpfinance/finprep/internal/identity"
)

// Claims are the signed contents of the session cookie.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

// Manager signs, sets, reads, and clears the session cookie.
type Manager struct {
	cookieName string
	signingKey []byte
	defaultTTL time.Duration
}

// New creates a session manager. defaultTTL bounds cookie lifetime when
// the provider session carries no expiry of its own.
func New(cookieName string, signingKey []byte, defaultTTL time.Duration) *Manager {
	return &Manager{
		cookieName: cookieName,
		signingKey: signingKey,
		defaultTTL: defaultTTL,
	}
}

// Issue signs a cookie for the given provider session and sets it on the
// response.
func (m *Manager) Issue(response http.ResponseWriter, providerSession *identity.Session) error {
	ttl := m.defaultTTL
	if providerSession.ExpiresIn > 0 {
		ttl = time.Duration(providerSession.ExpiresIn) * time.Second
	}

	userID := ""
	if providerSession.User != nil {
		userID = providerSession.User.ID
	}

	expiresAt := time.Now().Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:      userID,
		AccessToken: providerSession.AccessToken,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return fmt.Errorf("signing session cookie: %w", err)
	}

	http.SetCookie(response, &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(response http.ResponseWriter) {
	http.SetCookie(response, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest reads the session claims from the request cookie. An
// absent, expired, or forged cookie yields (nil, nil): the caller treats
// it as "no session", never as a failure.
func (m *Manager) FromRequest(request *http.Request) (*Claims, error) {
	cookie, err := request.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.signingKey, nil
		},
	)
	if err != nil || !token.Valid {
		return nil, nil
	}

	return claims, nil
}
