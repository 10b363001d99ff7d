// Package app initializes and runs the web front-end. It wires
// configuration, logging, the identity provider client, the session
// cookie layer, the access gate, and the HTTP routes, and handles
// graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escpfinance/finprep/internal/config"
	"github.com/escpfinance/finprep/internal/gate"
	"github.com/escpfinance/finprep/internal/identity"
	"github.com/escpfinance/finprep/internal/logger"
	"github.com/escpfinance/finprep/internal/router"
	"github.com/escpfinance/finprep/internal/session"
	"github.com/escpfinance/finprep/internal/view"
)

// App holds the configuration and the fully wired HTTP handler.
type App struct {
	cfg         *config.Config
	httpHandler http.Handler
}

// New builds the application:
// - loads and validates configuration
// - initializes the logger
// - constructs the provider client, session manager, gate, and renderer
// - assembles the routes
func New() (*App, error) {
	app := &App{}

	var err error
	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	if err := logger.Init(app.cfg.LogLevel); err != nil {
		return nil, err
	}

	signingKey, err := base64.URLEncoding.DecodeString(app.cfg.SessionSigningSecretKey)
	if err != nil {
		return nil, fmt.Errorf("decoding session signing key: %w", err)
	}

	provider := identity.New(app.cfg.ProviderURL, app.cfg.ProviderKey, app.cfg.ProviderTimeout)
	sessions := session.New(app.cfg.SessionCookieName, signingKey, app.cfg.SessionTTL)
	accessPolicy := gate.New(sessions, provider)

	renderer, err := view.New()
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(
		provider,
		sessions,
		accessPolicy,
		renderer,
		app.cfg.SiteBaseURL,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support. It listens
// for system signals and drains in-flight requests before exiting.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return nil

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}
