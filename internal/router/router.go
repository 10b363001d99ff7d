// Package router wires the HTTP routes of the application: the public
// marketing page, the login/signup forms and their submit actions, the
// authenticated career pages, the email-confirmation callback, and the
// health endpoint. Access control is applied per route group through the
// gate middlewares.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/escpfinance/finprep/internal/catalog"
	"github.com/escpfinance/finprep/internal/eligibility"
	"github.com/escpfinance/finprep/internal/gate"
	"github.com/escpfinance/finprep/internal/identity"
	"github.com/escpfinance/finprep/internal/logger"
	"github.com/escpfinance/finprep/internal/models"
	"github.com/escpfinance/finprep/internal/view"
)

type authProvider interface {
	SignUp(ctx context.Context, params identity.SignUpParams) (*identity.SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	ExchangeCode(ctx context.Context, code string) (*identity.Session, error)
	ProfileByID(ctx context.Context, accessToken, id string) (*identity.Profile, error)
	Health(ctx context.Context) error
}

type sessionWriter interface {
	Issue(response http.ResponseWriter, providerSession *identity.Session) error
	Clear(response http.ResponseWriter)
}

type accessGate interface {
	RequireAuth(h http.Handler) http.Handler
	RequireAnonymous(h http.Handler) http.Handler
}

// Generic messages for failures that carry no provider message of their
// own. Field-level problems map onto them in formErrorMessage.
const (
	genericErrorMessage      = "An error occurred"
	requiredFieldsMessage    = "All fields are required."
	shortPasswordMessage     = "Password must be at least 6 characters."
	missingCodeMessage       = "Missing confirmation code"
	confirmationCallbackPath = "/auth/callback?next=/choose-career"
)

// Router owns the handlers and their collaborators.
type Router struct {
	provider    authProvider
	sessions    sessionWriter
	renderer    *view.Renderer
	validate    *validator.Validate
	siteBaseURL string
}

// New builds the chi mux with logging middleware and the gate policies
// applied per route group.
func New(
	provider authProvider,
	sessions sessionWriter,
	accessPolicy accessGate,
	renderer *view.Renderer,
	siteBaseURL string,
) chi.Router {
	r := &Router{
		provider:    provider,
		sessions:    sessions,
		renderer:    renderer,
		validate:    validator.New(),
		siteBaseURL: siteBaseURL,
	}

	mux := chi.NewRouter()
	mux.Use(logger.WithLoggingHTTPMiddleware)

	// Anonymous-only pages: a live session is redirected away.
	mux.Group(func(anonymous chi.Router) {
		anonymous.Use(accessPolicy.RequireAnonymous)
		anonymous.Get(`/`, r.GetLanding)
		anonymous.Get(`/login`, r.GetLogin)
		anonymous.Post(`/login`, r.PostLogin)
		anonymous.Get(`/signup`, r.GetSignup)
		anonymous.Post(`/signup`, r.PostSignup)
	})

	// Authenticated pages: no live session is redirected to /login.
	mux.Group(func(authenticated chi.Router) {
		authenticated.Use(accessPolicy.RequireAuth)
		authenticated.Get(`/choose-career`, r.GetChooseCareer)
		authenticated.Get(`/corporate-finance`, r.GetCorporateFinance)
		authenticated.Get(`/select-block`, r.GetSelectBlock)
	})

	mux.Get(`/auth/callback`, r.GetAuthCallback)
	mux.Post(`/logout`, r.PostLogout)
	mux.Get(`/healthz`, r.GetHealthz)

	return mux
}

func (r *Router) renderPage(response http.ResponseWriter, status int, page string, data any) {
	if err := r.renderer.Render(response, status, page, data); err != nil {
		logger.Log.Errorln("Error rendering page:", zap.Error(err))
		http.Error(response, genericErrorMessage, http.StatusInternalServerError)
	}
}

// GetLanding renders the marketing landing page.
func (r *Router) GetLanding(response http.ResponseWriter, request *http.Request) {
	r.renderPage(response, http.StatusOK, view.PageLanding, view.LandingData{
		Paths: catalog.CareerPaths(),
	})
}

// GetLogin renders the login form. A provider failure forwarded by the
// auth callback arrives in the `error` query parameter and is surfaced
// in the form's inline error region.
func (r *Router) GetLogin(response http.ResponseWriter, request *http.Request) {
	r.renderPage(response, http.StatusOK, view.PageLogin, view.LoginData{
		Error: request.URL.Query().Get("error"),
	})
}

// GetSignup renders the signup form.
func (r *Router) GetSignup(response http.ResponseWriter, request *http.Request) {
	r.renderPage(response, http.StatusOK, view.PageSignup, view.SignupData{
		Error: request.URL.Query().Get("error"),
	})
}

func formErrorMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			if fieldError.Field() == "Password" && fieldError.Tag() == "min" {
				return shortPasswordMessage
			}
		}
		return requiredFieldsMessage
	}

	return genericErrorMessage
}

func providerErrorMessage(err error) string {
	var providerErr *identity.Error
	if errors.As(err, &providerErr) {
		return providerErr.Message
	}

	return genericErrorMessage
}

// PostLogin handles the login form submission: eligibility first, then
// the provider. No provider call is made for an ineligible email.
func (r *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	form := models.SignInForm{
		Email:    request.PostFormValue("email"),
		Password: request.PostFormValue("password"),
	}

	if err := r.validate.Struct(form); err != nil {
		r.renderPage(response, http.StatusUnprocessableEntity, view.PageLogin, view.LoginData{
			Error: formErrorMessage(err),
			Email: form.Email,
		})
		return
	}

	email := eligibility.Normalize(form.Email)
	if !eligibility.IsEligible(email) {
		r.renderPage(response, http.StatusUnprocessableEntity, view.PageLogin, view.LoginData{
			Error: eligibility.SignInRejectionMessage,
			Email: form.Email,
		})
		return
	}

	providerSession, err := r.provider.SignInWithPassword(request.Context(), email, form.Password)
	if err != nil {
		logger.Log.Debugln("Sign in rejected:", zap.Error(err))
		r.renderPage(response, http.StatusUnprocessableEntity, view.PageLogin, view.LoginData{
			Error: providerErrorMessage(err),
			Email: form.Email,
		})
		return
	}

	if err := r.sessions.Issue(response, providerSession); err != nil {
		logger.Log.Errorln("Error issuing session cookie:", zap.Error(err))
		http.Error(response, genericErrorMessage, http.StatusInternalServerError)
		return
	}

	http.Redirect(response, request, gate.HomeRoute, http.StatusSeeOther)
}

// PostSignup handles the signup form submission. The provider answers
// one of three ways: an error (surfaced inline), a user without a
// session (email confirmation pending, renders the "check your email"
// view), or a full session (cookie issued, redirect to the chooser).
func (r *Router) PostSignup(response http.ResponseWriter, request *http.Request) {
	form := models.SignUpForm{
		FullName: request.PostFormValue("full_name"),
		Email:    request.PostFormValue("email"),
		Password: request.PostFormValue("password"),
	}

	if err := r.validate.Struct(form); err != nil {
		r.renderPage(response, http.StatusUnprocessableEntity, view.PageSignup, view.SignupData{
			Error:    formErrorMessage(err),
			FullName: form.FullName,
			Email:    form.Email,
		})
		return
	}

	email := eligibility.Normalize(form.Email)
	if !eligibility.IsEligible(email) {
		r.renderPage(response, http.StatusUnprocessableEntity, view.PageSignup, view.SignupData{
			Error:    eligibility.SignUpRejectionMessage,
			FullName: form.FullName,
			Email:    form.Email,
		})
		return
	}

	result, err := r.provider.SignUp(request.Context(), identity.SignUpParams{
		Email:           email,
		Password:        form.Password,
		FullName:        form.FullName,
		EmailRedirectTo: r.siteBaseURL + confirmationCallbackPath,
	})
	if err != nil {
		logger.Log.Debugln("Sign up rejected:", zap.Error(err))
		r.renderPage(response, http.StatusUnprocessableEntity, view.PageSignup, view.SignupData{
			Error:    providerErrorMessage(err),
			FullName: form.FullName,
			Email:    form.Email,
		})
		return
	}

	if result.Session == nil {
		r.renderPage(response, http.StatusOK, view.PageSignupSuccess, view.SignupSuccessData{
			Email: email,
		})
		return
	}

	if err := r.sessions.Issue(response, result.Session); err != nil {
		logger.Log.Errorln("Error issuing session cookie:", zap.Error(err))
		http.Error(response, genericErrorMessage, http.StatusInternalServerError)
		return
	}

	http.Redirect(response, request, gate.HomeRoute, http.StatusSeeOther)
}

// GetChooseCareer renders the two career cards. No fetch happens here:
// the cards are static links into the catalog.
func (r *Router) GetChooseCareer(response http.ResponseWriter, request *http.Request) {
	r.renderPage(response, http.StatusOK, view.PageChooseCareer, view.ChooseCareerData{
		Paths: catalog.CareerPaths(),
	})
}

// GetCorporateFinance renders the corporate finance dashboard. It makes
// exactly one profile point-read for the current user; a missing row or
// a failed read leaves the profile unset and the page still renders.
func (r *Router) GetCorporateFinance(response http.ResponseWriter, request *http.Request) {
	usr := gate.CurrentUser(request.Context())

	profile, err := r.provider.ProfileByID(request.Context(), gate.AccessToken(request.Context()), usr.ID)
	if err != nil {
		logger.Log.Errorln("Error fetching profile:", zap.Error(err))
		profile = nil
	}

	path, _ := catalog.CareerPathByID(catalog.CorporateFinanceID)
	r.renderPage(response, http.StatusOK, view.PageCorporateFinance, view.CorporateFinanceData{
		Path:    path,
		Blocks:  catalog.CorporateFinanceBlocks(),
		Profile: profile,
	})
}

// GetSelectBlock renders the financial markets placeholder page.
func (r *Router) GetSelectBlock(response http.ResponseWriter, request *http.Request) {
	path, _ := catalog.CareerPathByID(catalog.FinancialMarketsID)
	r.renderPage(response, http.StatusOK, view.PageSelectBlock, view.SelectBlockData{
		Path: path,
	})
}

// GetAuthCallback completes the email-confirmation flow: it exchanges
// the provider's code for a session, issues the cookie, and forwards to
// the allowlisted `next` target. Failures land back on the login form
// with the message in the `error` query parameter.
func (r *Router) GetAuthCallback(response http.ResponseWriter, request *http.Request) {
	redirectToLogin := func(message string) {
		http.Redirect(
			response,
			request,
			gate.LoginRoute+"?error="+url.QueryEscape(message),
			http.StatusSeeOther,
		)
	}

	code := request.URL.Query().Get("code")
	if code == "" {
		redirectToLogin(missingCodeMessage)
		return
	}

	providerSession, err := r.provider.ExchangeCode(request.Context(), code)
	if err != nil {
		logger.Log.Debugln("Confirmation code rejected:", zap.Error(err))
		redirectToLogin(providerErrorMessage(err))
		return
	}

	if err := r.sessions.Issue(response, providerSession); err != nil {
		logger.Log.Errorln("Error issuing session cookie:", zap.Error(err))
		redirectToLogin(genericErrorMessage)
		return
	}

	next := request.URL.Query().Get("next")
	if !catalog.IsAllowedRedirectTarget(next) {
		next = gate.HomeRoute
	}

	http.Redirect(response, request, next, http.StatusSeeOther)
}

// PostLogout clears the session cookie and returns to the landing page.
// The provider session itself expires on its own; only the local cookie
// is discarded.
func (r *Router) PostLogout(response http.ResponseWriter, request *http.Request) {
	r.sessions.Clear(response)
	http.Redirect(response, request, "/", http.StatusSeeOther)
}

type healthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// GetHealthz reports whether the identity provider is reachable.
func (r *Router) GetHealthz(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	if err := r.provider.Health(request.Context()); err != nil {
		logger.Log.Errorln("Provider health check failed:", zap.Error(err))
		response.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(response).Encode(healthResponse{
			Status: "unhealthy",
			Detail: err.Error(),
		})
		return
	}

	_ = json.NewEncoder(response).Encode(healthResponse{Status: "ok"})
}
