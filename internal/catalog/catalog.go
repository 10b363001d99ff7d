// Package catalog holds the static taxonomy of the platform: career
// paths, the job roles under each path, and the preparation blocks shown
// on the dashboard. Keeping the lists in one table instead of inline page
// literals lets "coming soon" items become real modules without touching
// the handlers.
package catalog

import funk "github.com/thoas/go-funk"

// Job is a single role label under a career path.
type Job struct {
	ID    string
	Label string
}

// CareerPath is one of the two top-level preparation tracks offered
// after login.
type CareerPath struct {
	ID          string
	Title       string
	Tagline     string
	Route       string
	Jobs        []Job
	ComingSoon  bool
	Description string
}

// PreparationBlock is a dashboard card on a career path landing page.
// All blocks are currently placeholders.
type PreparationBlock struct {
	ID          string
	Title       string
	Description string
}

// CorporateFinanceID and FinancialMarketsID identify the two career paths.
const (
	CorporateFinanceID = "corporate-finance"
	FinancialMarketsID = "financial-markets"
)

var careerPaths = []CareerPath{
	{
		ID:          CorporateFinanceID,
		Title:       "Corporate Finance",
		Tagline:     "Investment Banking, M&A, Private Equity, Advisory",
		Route:       "/corporate-finance",
		Description: "Preparation blocks and mock interviews for corporate finance roles",
		Jobs: []Job{
			{ID: "ib", Label: "Investment Banker"},
			{ID: "ma", Label: "Mergers & Acquisition"},
			{ID: "pe", Label: "Private Equity"},
			{ID: "advisory", Label: "Advisory"},
		},
	},
	{
		ID:          FinancialMarketsID,
		Title:       "Financial Markets",
		Tagline:     "Sales, Trader, Quant",
		Route:       "/select-block",
		Description: "Practice blocks for trading, sales, quant, assets & strategies",
		ComingSoon:  true,
		Jobs: []Job{
			{ID: "sales", Label: "Sales"},
			{ID: "trading", Label: "Trader"},
			{ID: "quant", Label: "Quant"},
		},
	},
}

var corporateFinanceBlocks = []PreparationBlock{
	{ID: "ma", Title: "M&A", Description: "Mergers & Acquisitions preparation"},
	{ID: "pe", Title: "Private Equity", Description: "Private Equity interview prep"},
	{ID: "advisory", Title: "Advisory", Description: "Advisory & restructuring"},
}

// allowedRedirectTargets lists the routes the auth callback may forward
// to via its `next` query parameter. Anything else falls back to the
// career chooser.
var allowedRedirectTargets = []string{
	"/choose-career",
	"/corporate-finance",
	"/select-block",
}

// CareerPaths returns the career paths in display order.
func CareerPaths() []CareerPath {
	return careerPaths
}

// CareerPathByID looks up a career path by its identifier.
func CareerPathByID(id string) (CareerPath, bool) {
	found := funk.Find(careerPaths, func(path CareerPath) bool {
		return path.ID == id
	})
	if found == nil {
		return CareerPath{}, false
	}

	return found.(CareerPath), true
}

// CorporateFinanceBlocks returns the dashboard blocks for the corporate
// finance landing page.
func CorporateFinanceBlocks() []PreparationBlock {
	return corporateFinanceBlocks
}

// IsAllowedRedirectTarget reports whether target is a route the auth
// callback may redirect to.
func IsAllowedRedirectTarget(target string) bool {
	return funk.ContainsString(allowedRedirectTargets, target)
}
