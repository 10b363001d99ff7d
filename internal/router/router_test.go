package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escpfinance/finprep/internal/gate"
	"github.com/escpfinance/finprep/internal/identity"
	"github.com/escpfinance/finprep/internal/logger"
	"github.com/escpfinance/finprep/internal/session"
	"github.com/escpfinance/finprep/internal/view"
)

const testSiteBaseURL = "http://localhost:8080"

func init() {
	if err := logger.Init("error"); err != nil {
		panic(err)
	}
}

// fakeProvider records invocations so tests can assert that ineligible
// input never reaches the provider.
type fakeProvider struct {
	signUpCalls   int
	signInCalls   int
	getUserCalls  int
	exchangeCalls int
	profileCalls  int

	lastSignUpParams identity.SignUpParams
	lastSignInEmail  string

	onSignUp   func(params identity.SignUpParams) (*identity.SignUpResult, error)
	onSignIn   func(email, password string) (*identity.Session, error)
	onGetUser  func(accessToken string) (*identity.User, error)
	onExchange func(code string) (*identity.Session, error)
	onProfile  func(accessToken, id string) (*identity.Profile, error)
	onHealth   func() error
}

func (f *fakeProvider) SignUp(_ context.Context, params identity.SignUpParams) (*identity.SignUpResult, error) {
	f.signUpCalls++
	f.lastSignUpParams = params
	if f.onSignUp != nil {
		return f.onSignUp(params)
	}
	return &identity.SignUpResult{User: &identity.User{ID: "user-1", Email: params.Email}}, nil
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	f.signInCalls++
	f.lastSignInEmail = email
	if f.onSignIn != nil {
		return f.onSignIn(email, password)
	}
	return &identity.Session{
		AccessToken: "at-1",
		ExpiresIn:   3600,
		User:        &identity.User{ID: "user-1", Email: email},
	}, nil
}

func (f *fakeProvider) GetUser(_ context.Context, accessToken string) (*identity.User, error) {
	f.getUserCalls++
	if f.onGetUser != nil {
		return f.onGetUser(accessToken)
	}
	return nil, nil
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code string) (*identity.Session, error) {
	f.exchangeCalls++
	if f.onExchange != nil {
		return f.onExchange(code)
	}
	return &identity.Session{
		AccessToken: "at-1",
		ExpiresIn:   3600,
		User:        &identity.User{ID: "user-1"},
	}, nil
}

func (f *fakeProvider) ProfileByID(_ context.Context, accessToken, id string) (*identity.Profile, error) {
	f.profileCalls++
	if f.onProfile != nil {
		return f.onProfile(accessToken, id)
	}
	return nil, nil
}

func (f *fakeProvider) Health(_ context.Context) error {
	if f.onHealth != nil {
		return f.onHealth()
	}
	return nil
}

type testEnv struct {
	server   *httptest.Server
	provider *fakeProvider
	sessions *session.Manager
	client   *http.Client
}

func newTestEnv(t *testing.T, provider *fakeProvider) *testEnv {
	t.Helper()

	renderer, err := view.New()
	require.NoError(t, err)

	sessions := session.New("finprep_session", []byte("0123456789abcdef0123456789abcdef"), time.Hour)
	accessPolicy := gate.New(sessions, provider)

	server := httptest.NewServer(New(provider, sessions, accessPolicy, renderer, testSiteBaseURL))
	t.Cleanup(server.Close)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{
		server:   server,
		provider: provider,
		sessions: sessions,
		client:   client,
	}
}

func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()

	recorder := httptest.NewRecorder()
	err := e.sessions.Issue(recorder, &identity.Session{
		AccessToken: "at-1",
		User:        &identity.User{ID: "user-1"},
	})
	require.NoError(t, err)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)

	return cookies[0]
}

func (e *testEnv) get(t *testing.T, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	request, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}

	response, err := e.client.Do(request)
	require.NoError(t, err)

	return response
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	request, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}

	response, err := e.client.Do(request)
	require.NoError(t, err)

	return response
}

func readBody(t *testing.T, response *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.NoError(t, response.Body.Close())

	return string(body)
}

func sessionCookieFrom(response *http.Response) *http.Cookie {
	for _, cookie := range response.Cookies() {
		if cookie.Name == "finprep_session" {
			return cookie
		}
	}
	return nil
}

func TestGetLanding(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.get(t, "/")
	body := readBody(t, response)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "Exclusive to ESCP Students")
	assert.Contains(t, body, "Corporate Finance")
	assert.Contains(t, body, "Financial Markets")
}

func TestGetLandingRedirectsLiveSession(t *testing.T) {
	provider := &fakeProvider{
		onGetUser: func(string) (*identity.User, error) {
			return &identity.User{ID: "user-1"}, nil
		},
	}
	env := newTestEnv(t, provider)

	response := env.get(t, "/", env.sessionCookie(t))
	defer func() { require.NoError(t, response.Body.Close()) }()

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/choose-career", response.Header.Get("Location"))
}

func TestPostSignupIneligibleEmailNeverCallsProvider(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.postForm(t, "/signup", url.Values{
		"full_name": {"Jane Doe"},
		"email":     {"jane@gmail.com"},
		"password":  {"secret99"},
	})
	body := readBody(t, response)

	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode)
	assert.Contains(t, body, "Only ESCP students can create an account")
	assert.Zero(t, env.provider.signUpCalls)
}

func TestPostSignupShortPasswordNeverCallsProvider(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.postForm(t, "/signup", url.Values{
		"full_name": {"Jane Doe"},
		"email":     {"jane.doe@edu.escp.eu"},
		"password":  {"12345"},
	})
	body := readBody(t, response)

	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode)
	assert.Contains(t, body, "Password must be at least 6 characters.")
	assert.Zero(t, env.provider.signUpCalls)
}

func TestPostSignupConfirmationPending(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.postForm(t, "/signup", url.Values{
		"full_name": {"Jane Doe"},
		"email":     {" Jane.Doe@EDU.ESCP.EU "},
		"password":  {"123456"},
	})
	body := readBody(t, response)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "Check your email")
	assert.Nil(t, sessionCookieFrom(response))

	require.Equal(t, 1, env.provider.signUpCalls)
	assert.Equal(t, "jane.doe@edu.escp.eu", env.provider.lastSignUpParams.Email)
	assert.Equal(t, "Jane Doe", env.provider.lastSignUpParams.FullName)
	assert.Equal(
		t,
		testSiteBaseURL+"/auth/callback?next=/choose-career",
		env.provider.lastSignUpParams.EmailRedirectTo,
	)
}

func TestPostSignupImmediateSession(t *testing.T) {
	provider := &fakeProvider{
		onSignUp: func(params identity.SignUpParams) (*identity.SignUpResult, error) {
			usr := &identity.User{ID: "user-1", Email: params.Email}
			return &identity.SignUpResult{
				User: usr,
				Session: &identity.Session{
					AccessToken: "at-1",
					ExpiresIn:   3600,
					User:        usr,
				},
			}, nil
		},
	}
	env := newTestEnv(t, provider)

	response := env.postForm(t, "/signup", url.Values{
		"full_name": {"Jane Doe"},
		"email":     {"jane.doe@edu.escp.eu"},
		"password":  {"123456"},
	})
	defer func() { require.NoError(t, response.Body.Close()) }()

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/choose-career", response.Header.Get("Location"))
	assert.NotNil(t, sessionCookieFrom(response))
}

func TestPostSignupProviderError(t *testing.T) {
	provider := &fakeProvider{
		onSignUp: func(identity.SignUpParams) (*identity.SignUpResult, error) {
			return nil, &identity.Error{
				StatusCode: http.StatusUnprocessableEntity,
				Message:    "User already registered",
			}
		},
	}
	env := newTestEnv(t, provider)

	response := env.postForm(t, "/signup", url.Values{
		"full_name": {"Jane Doe"},
		"email":     {"jane.doe@edu.escp.eu"},
		"password":  {"123456"},
	})
	body := readBody(t, response)

	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode)
	assert.Contains(t, body, "User already registered")
}

func TestPostLoginIneligibleEmailNeverCallsProvider(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.postForm(t, "/login", url.Values{
		"email":    {"jane@gmail.com"},
		"password": {"secret99"},
	})
	body := readBody(t, response)

	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode)
	assert.Contains(t, body, "Only ESCP students can access this platform")
	assert.Zero(t, env.provider.signInCalls)
}

func TestPostLoginSuccess(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.postForm(t, "/login", url.Values{
		"email":    {"Jane.Doe@EDU.ESCP.EU"},
		"password": {"secret99"},
	})
	defer func() { require.NoError(t, response.Body.Close()) }()

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/choose-career", response.Header.Get("Location"))
	assert.NotNil(t, sessionCookieFrom(response))
	assert.Equal(t, "jane.doe@edu.escp.eu", env.provider.lastSignInEmail)
}

func TestPostLoginBadCredentials(t *testing.T) {
	provider := &fakeProvider{
		onSignIn: func(string, string) (*identity.Session, error) {
			return nil, &identity.Error{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid login credentials",
			}
		},
	}
	env := newTestEnv(t, provider)

	response := env.postForm(t, "/login", url.Values{
		"email":    {"jane.doe@edu.escp.eu"},
		"password": {"wrong"},
	})
	body := readBody(t, response)

	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode)
	assert.Contains(t, body, "Invalid login credentials")
	assert.Nil(t, sessionCookieFrom(response))
}

func TestGetLoginSurfacesErrorQueryParameter(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.get(t, "/login?error="+url.QueryEscape("Email link is invalid or has expired"))
	body := readBody(t, response)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "Email link is invalid or has expired")
}

func TestGetLoginRedirectsLiveSession(t *testing.T) {
	provider := &fakeProvider{
		onGetUser: func(string) (*identity.User, error) {
			return &identity.User{ID: "user-1"}, nil
		},
	}
	env := newTestEnv(t, provider)

	response := env.get(t, "/login", env.sessionCookie(t))
	body := readBody(t, response)

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/choose-career", response.Header.Get("Location"))
	// The form itself must never render before the redirect.
	assert.NotContains(t, body, "Welcome Back")
}

func TestGetChooseCareerWithoutSessionRedirects(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.get(t, "/choose-career")
	body := readBody(t, response)

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/login", response.Header.Get("Location"))
	assert.NotContains(t, body, "Choose Your Path")
}

func TestGetChooseCareerWithLiveSession(t *testing.T) {
	provider := &fakeProvider{
		onGetUser: func(string) (*identity.User, error) {
			return &identity.User{ID: "user-1"}, nil
		},
	}
	env := newTestEnv(t, provider)

	response := env.get(t, "/choose-career", env.sessionCookie(t))
	body := readBody(t, response)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "Choose Your Path")
	assert.Contains(t, body, "Investment Banker")
	assert.Contains(t, body, "Quant")
}

func TestGetCorporateFinanceRendersProfileName(t *testing.T) {
	provider := &fakeProvider{
		onGetUser: func(string) (*identity.User, error) {
			return &identity.User{ID: "user-1"}, nil
		},
		onProfile: func(accessToken, id string) (*identity.Profile, error) {
			return &identity.Profile{ID: id, FullName: "Jane Doe"}, nil
		},
	}
	env := newTestEnv(t, provider)

	response := env.get(t, "/corporate-finance", env.sessionCookie(t))
	body := readBody(t, response)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "Jane Doe")
	assert.Contains(t, body, "Mock Interviews")
	assert.Equal(t, 1, env.provider.profileCalls)
}

func TestGetCorporateFinanceToleratesMissingProfile(t *testing.T) {
	provider := &fakeProvider{
		onGetUser: func(string) (*identity.User, error) {
			return &identity.User{ID: "user-1"}, nil
		},
	}
	env := newTestEnv(t, provider)

	response := env.get(t, "/corporate-finance", env.sessionCookie(t))
	body := readBody(t, response)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "Corporate Finance")
}

func TestGetCorporateFinanceToleratesProfileFetchError(t *testing.T) {
	provider := &fakeProvider{
		onGetUser: func(string) (*identity.User, error) {
			return &identity.User{ID: "user-1"}, nil
		},
		onProfile: func(string, string) (*identity.Profile, error) {
			return nil, errors.New("profile backend down")
		},
	}
	env := newTestEnv(t, provider)

	response := env.get(t, "/corporate-finance", env.sessionCookie(t))
	body := readBody(t, response)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "Corporate Finance")
}

func TestGetSelectBlock(t *testing.T) {
	provider := &fakeProvider{
		onGetUser: func(string) (*identity.User, error) {
			return &identity.User{ID: "user-1"}, nil
		},
	}
	env := newTestEnv(t, provider)

	response := env.get(t, "/select-block", env.sessionCookie(t))
	body := readBody(t, response)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, "Financial Markets")
	assert.Contains(t, body, "Coming soon")
}

func TestGetAuthCallbackMissingCode(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.get(t, "/auth/callback")
	defer func() { require.NoError(t, response.Body.Close()) }()

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	location := response.Header.Get("Location")
	assert.Contains(t, location, "/login?error=")
	assert.Zero(t, env.provider.exchangeCalls)
}

func TestGetAuthCallbackSuccess(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.get(t, "/auth/callback?code=code-1&next=/corporate-finance")
	defer func() { require.NoError(t, response.Body.Close()) }()

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/corporate-finance", response.Header.Get("Location"))
	assert.NotNil(t, sessionCookieFrom(response))
}

func TestGetAuthCallbackDisallowedNextFallsBack(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.get(t, "/auth/callback?code=code-1&next=https://attacker.io")
	defer func() { require.NoError(t, response.Body.Close()) }()

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/choose-career", response.Header.Get("Location"))
}

func TestGetAuthCallbackRejectedCode(t *testing.T) {
	provider := &fakeProvider{
		onExchange: func(string) (*identity.Session, error) {
			return nil, &identity.Error{
				StatusCode: http.StatusBadRequest,
				Message:    "Email link is invalid or has expired",
			}
		},
	}
	env := newTestEnv(t, provider)

	response := env.get(t, "/auth/callback?code=stale")
	defer func() { require.NoError(t, response.Body.Close()) }()

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	location := response.Header.Get("Location")
	assert.Contains(t, location, "/login?error=")
	assert.Contains(t, location, url.QueryEscape("Email link is invalid or has expired"))
	assert.Nil(t, sessionCookieFrom(response))
}

func TestPostLogout(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.postForm(t, "/logout", url.Values{})
	defer func() { require.NoError(t, response.Body.Close()) }()

	assert.Equal(t, http.StatusSeeOther, response.StatusCode)
	assert.Equal(t, "/", response.Header.Get("Location"))

	cookie := sessionCookieFrom(response)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestGetHealthz(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	response := env.get(t, "/healthz")
	body := readBody(t, response)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
}

func TestGetHealthzProviderDown(t *testing.T) {
	provider := &fakeProvider{
		onHealth: func() error {
			return errors.New("provider unreachable")
		},
	}
	env := newTestEnv(t, provider)

	response := env.get(t, "/healthz")
	body := readBody(t, response)

	assert.Equal(t, http.StatusServiceUnavailable, response.StatusCode)
	assert.Contains(t, body, "unhealthy")
}
