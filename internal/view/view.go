// Package view renders the HTML pages from templates embedded in the
// binary. Each page template plugs its title and content blocks into the
// shared layout.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/escpfinance/finprep/internal/catalog"
	"github.com/escpfinance/finprep/internal/identity"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// Page names accepted by Render.
const (
	PageLanding          = "landing"
	PageLogin            = "login"
	PageSignup           = "signup"
	PageSignupSuccess    = "signup_success"
	PageChooseCareer     = "choose_career"
	PageCorporateFinance = "corporate_finance"
	PageSelectBlock      = "select_block"
)

var pageFiles = map[string]string{
	PageLanding:          "templates/landing.gohtml",
	PageLogin:            "templates/login.gohtml",
	PageSignup:           "templates/signup.gohtml",
	PageSignupSuccess:    "templates/signup_success.gohtml",
	PageChooseCareer:     "templates/choose_career.gohtml",
	PageCorporateFinance: "templates/corporate_finance.gohtml",
	PageSelectBlock:      "templates/select_block.gohtml",
}

// LandingData feeds the marketing landing page.
type LandingData struct {
	Paths []catalog.CareerPath
}

// LoginData feeds the login form. Error is the single inline error
// region; Email keeps the submitted value on re-render.
type LoginData struct {
	Error string
	Email string
}

// SignupData feeds the signup form.
type SignupData struct {
	Error    string
	FullName string
	Email    string
}

// SignupSuccessData feeds the "check your email" confirmation view.
type SignupSuccessData struct {
	Email string
}

// ChooseCareerData feeds the career chooser.
type ChooseCareerData struct {
	Paths []catalog.CareerPath
}

// CorporateFinanceData feeds the corporate finance landing page. Profile
// may be nil: the page renders without a name in the header.
type CorporateFinanceData struct {
	Path    catalog.CareerPath
	Blocks  []catalog.PreparationBlock
	Profile *identity.Profile
}

// SelectBlockData feeds the financial markets placeholder page.
type SelectBlockData struct {
	Path catalog.CareerPath
}

// Renderer holds the parsed page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page template against the shared layout.
func New() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageFiles))
	for name, file := range pageFiles {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.gohtml", file)
		if err != nil {
			return nil, fmt.Errorf("parsing template %q: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{pages: pages}, nil
}

// Render writes the named page with the given status. The page is
// buffered first so a template failure never emits a half-written body.
func (r *Renderer) Render(response http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("rendering page %q: %w", page, err)
	}

	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	response.WriteHeader(status)
	_, err := buf.WriteTo(response)

	return err
}
