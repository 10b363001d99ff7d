// The application is the project's static analysis multichecker. It
// bundles standard Go toolchain analyzers, third-party analyzers, a
// configurable staticcheck set, and the project-specific noexit analyzer
// into a single binary.
//
// The staticcheck analyzer list is read from a config.json file next to
// the binary, e.g. {"Staticcheck": ["SA1000", "SA4010"]}.
package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/staticcheck"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"

	"github.com/escpfinance/finprep/cmd/staticlint/noexit"
)

// Config is the name of the JSON configuration file that lists enabled
// staticcheck analyzers.
const Config = `config.json`

// ConfigData describes the structure of the configuration file.
type ConfigData struct {
	Staticcheck []string
}

func main() {
	appfile, err := os.Executable()
	if err != nil {
		panic(err)
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(appfile), Config))
	if err != nil {
		panic(err)
	}
	var cfg ConfigData
	if err = json.Unmarshal(data, &cfg); err != nil {
		panic(err)
	}

	checks := []*analysis.Analyzer{
		copylock.Analyzer,     // Checks for copying of locks by value.
		httpresponse.Analyzer, // Checks for mistakes using HTTP responses.
		loopclosure.Analyzer,  // Detects references to loop variables inside closures.
		lostcancel.Analyzer,   // Finds contexts that are not canceled.
		printf.Analyzer,       // Verifies format strings.
		structtag.Analyzer,    // Checks for incorrect struct field tags.
		unmarshal.Analyzer,    // Detects unused fields in JSON unmarshal targets.
		unreachable.Analyzer,  // Detects unreachable code.

		ineffassign.Analyzer, // Detects ineffective assignments.
		nilerr.Analyzer,      // Flags returning nil after an error was created.

		noexit.Analyzer, // Project-specific: keeps os.Exit inside main.main.
	}

	enabled := make(map[string]bool)
	for _, name := range cfg.Staticcheck {
		enabled[name] = true
	}

	for _, v := range staticcheck.Analyzers {
		if enabled[v.Analyzer.Name] {
			checks = append(checks, v.Analyzer)
		}
	}

	multichecker.Main(checks...)
}
