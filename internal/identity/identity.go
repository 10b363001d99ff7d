// Package identity is the client for the hosted authentication and
// database provider. Accounts, sessions, and profile rows all live on the
// provider side; this package only issues REST calls and interprets the
// results. It is the single wire-level boundary of the application.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// User is an account record owned by the provider. It is never mutated
// by this application.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	EmailConfirmedAt string `json:"email_confirmed_at,omitempty"`
}

// Session is the provider-issued proof of authentication. The access
// token is carried inside the application session cookie and presented
// back to the provider on subsequent checks.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Profile is the secondary record associated one-to-one with a User,
// stored in the provider's database. Read-only from this application.
type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// SignUpParams carries the signup form data forwarded to the provider.
// EmailRedirectTo is the link the confirmation email points back to.
type SignUpParams struct {
	Email           string
	Password        string
	FullName        string
	EmailRedirectTo string
}

// SignUpResult is the provider's answer to a signup. A User with a nil
// Session means the account exists but awaits email confirmation.
type SignUpResult struct {
	User    *User
	Session *Session
}

// Error is a failure reported by the provider. Message is safe to show
// to the user.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity provider: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to the provider's auth and data REST endpoints.
type Client struct {
	http *resty.Client
}

// New creates a provider client for the given base URL. The project API
// key is attached to every request.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("apikey", apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpClient}
}

type errorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func providerError(response *resty.Response) error {
	var body errorBody
	message := ""
	if err := json.Unmarshal(response.Body(), &body); err == nil {
		switch {
		case body.Msg != "":
			message = body.Msg
		case body.Message != "":
			message = body.Message
		case body.ErrorDescription != "":
			message = body.ErrorDescription
		}
	}
	if message == "" {
		message = http.StatusText(response.StatusCode())
	}

	return &Error{
		StatusCode: response.StatusCode(),
		Message:    message,
	}
}

// GetUser resolves the user behind an access token. A rejected or expired
// token is not an error: it returns (nil, nil), meaning "no session".
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var usr User
	response, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&usr).
		Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}

	switch response.StatusCode() {
	case http.StatusOK:
		return &usr, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, nil
	}

	return nil, providerError(response)
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
	Options  *signUpOptions `json:"options,omitempty"`
}

type signUpOptions struct {
	EmailRedirectTo string `json:"email_redirect_to,omitempty"`
}

type signUpResponse struct {
	// A signup that starts an immediate session answers with the session
	// fields at the top level; a confirmation-pending signup answers with
	// the bare user object, whose id arrives in the same top-level shape.
	ID               string `json:"id"`
	Email            string `json:"email"`
	EmailConfirmedAt string `json:"email_confirmed_at"`

	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
}

// SignUp registers a new account. The display name travels in the user
// metadata so the provider can populate the profile row. The confirmation
// email (when required) is dispatched by the provider, not by this code.
func (c *Client) SignUp(ctx context.Context, params SignUpParams) (*SignUpResult, error) {
	payload := signUpRequest{
		Email:    params.Email,
		Password: params.Password,
		Data: map[string]any{
			"full_name": params.FullName,
		},
		Options: &signUpOptions{
			EmailRedirectTo: params.EmailRedirectTo,
		},
	}

	var body signUpResponse
	response, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&body).
		Post("/auth/v1/signup")
	if err != nil {
		return nil, fmt.Errorf("signing up: %w", err)
	}

	if response.IsError() {
		return nil, providerError(response)
	}

	if body.AccessToken != "" {
		usr := body.User
		if usr == nil {
			usr = &User{ID: body.ID, Email: body.Email}
		}
		return &SignUpResult{
			User: usr,
			Session: &Session{
				AccessToken:  body.AccessToken,
				RefreshToken: body.RefreshToken,
				TokenType:    body.TokenType,
				ExpiresIn:    body.ExpiresIn,
				User:         usr,
			},
		}, nil
	}

	return &SignUpResult{
		User: &User{
			ID:               body.ID,
			Email:            body.Email,
			EmailConfirmedAt: body.EmailConfirmedAt,
		},
	}, nil
}

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	response, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(passwordGrantRequest{Email: email, Password: password}).
		SetResult(&session).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}

	if response.IsError() {
		return nil, providerError(response)
	}

	return &session, nil
}

type codeGrantRequest struct {
	AuthCode string `json:"auth_code"`
}

// ExchangeCode turns an email-confirmation code into a session. The
// provider redirects the user to /auth/callback with this code after the
// confirmation link is clicked.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	var session Session
	response, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "authorization_code").
		SetBody(codeGrantRequest{AuthCode: code}).
		SetResult(&session).
		Post("/auth/v1/token")
	if err != nil {
		return nil, fmt.Errorf("exchanging confirmation code: %w", err)
	}

	if response.IsError() {
		return nil, providerError(response)
	}

	return &session, nil
}

// ProfileByID reads at most one profile row for the given user id using
// the caller's access token. A missing row is an absent-but-valid state
// and returns (nil, nil).
func (c *Client) ProfileByID(ctx context.Context, accessToken, id string) (*Profile, error) {
	var rows []Profile
	response, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParam("id", "eq."+id).
		SetQueryParam("limit", "1").
		SetResult(&rows).
		Get("/rest/v1/profiles")
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	if response.IsError() {
		return nil, providerError(response)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return &rows[0], nil
}

// Health checks that the provider's auth service is reachable.
func (c *Client) Health(ctx context.Context) error {
	response, err := c.http.R().
		SetContext(ctx).
		Get("/auth/v1/health")
	if err != nil {
		return fmt.Errorf("provider health check: %w", err)
	}

	if response.IsError() {
		return providerError(response)
	}

	return nil
}
