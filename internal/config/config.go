// Package config loads application configuration from defaults, command
// line flags, a .env file, and environment variables, in increasing
// priority, and validates the result.
package config

import (
	"flag"
	"fmt"
	"log"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the application.
type Config struct {
	// RunAddr is the address the HTTP server listens on.
	RunAddr string `env:"SERVER_ADDRESS" validate:"hostname_port"`

	// SiteBaseURL is the public base URL of this deployment. It builds
	// the email-confirmation redirect link sent to the identity provider.
	SiteBaseURL string `env:"SITE_BASE_URL" validate:"url"`

	// ProviderURL is the base URL of the hosted identity/database provider.
	ProviderURL string `env:"PROVIDER_URL" validate:"url"`

	// ProviderKey is the project API key sent on every provider call.
	ProviderKey string `env:"PROVIDER_KEY" validate:"required"`

	// ProviderTimeout bounds every provider call.
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT"`

	LogLevel string `env:"LOG_LEVEL" validate:"loglevel"`

	// SessionCookieName is the name of the signed session cookie.
	SessionCookieName string `env:"SESSION_COOKIE_NAME" validate:"required"`

	// SessionSigningSecretKey is the base64url-encoded HMAC key used to
	// sign session cookies.
	SessionSigningSecretKey string `env:"SESSION_SIGNING_SECRET_KEY" validate:"base64url"`

	// SessionTTL bounds cookie lifetime when the provider session
	// carries no expiry.
	SessionTTL time.Duration `env:"SESSION_TTL"`
}

var defaultConfig = Config{
	RunAddr:           ":8080",
	SiteBaseURL:       "http://localhost:8080",
	ProviderURL:       "http://localhost:9999",
	ProviderKey:       "dev-api-key",
	ProviderTimeout:   10 * time.Second,
	LogLevel:          "info",
	SessionCookieName: "finprep_session",
	// Development-only key. Real deployments must supply their own.
	SessionSigningSecretKey: "c2Vzc2lvbi1zaWduaW5nLWRldi1rZXktMzItYnl0ZXM=",
	SessionTTL:              24 * time.Hour,
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func (c *Config) validate() error {
	validate := validator.New()

	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// InitOption customizes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips command line flag parsing. Used by tests,
// where the test binary owns the flag set.
func WithDisableFlagsParsing(disable bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disable
	}
}

func applyDefaults(target *Config, defaults Config) {
	*target = defaults
}

func overlayEnv(target *Config) error {
	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return err
	}

	if fromEnv.RunAddr != "" {
		target.RunAddr = fromEnv.RunAddr
	}
	if fromEnv.SiteBaseURL != "" {
		target.SiteBaseURL = fromEnv.SiteBaseURL
	}
	if fromEnv.ProviderURL != "" {
		target.ProviderURL = fromEnv.ProviderURL
	}
	if fromEnv.ProviderKey != "" {
		target.ProviderKey = fromEnv.ProviderKey
	}
	if fromEnv.ProviderTimeout != 0 {
		target.ProviderTimeout = fromEnv.ProviderTimeout
	}
	if fromEnv.LogLevel != "" {
		target.LogLevel = fromEnv.LogLevel
	}
	if fromEnv.SessionCookieName != "" {
		target.SessionCookieName = fromEnv.SessionCookieName
	}
	if fromEnv.SessionSigningSecretKey != "" {
		target.SessionSigningSecretKey = fromEnv.SessionSigningSecretKey
	}
	if fromEnv.SessionTTL != 0 {
		target.SessionTTL = fromEnv.SessionTTL
	}

	return nil
}

// New builds the configuration. Priority, lowest to highest: built-in
// defaults, command line flags, .env file, process environment.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	cfg := &Config{}
	applyDefaults(cfg, defaultConfig)

	if !options.disableFlagsParsing {
		flag.StringVar(&cfg.RunAddr, "a", cfg.RunAddr, "address and port to run server")
		flag.StringVar(&cfg.SiteBaseURL, "s", cfg.SiteBaseURL, "public base URL of this deployment")
		flag.StringVar(&cfg.ProviderURL, "p", cfg.ProviderURL, "base URL of the identity provider")
		flag.StringVar(&cfg.ProviderKey, "k", cfg.ProviderKey, "identity provider project API key")
		flag.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "logger level")
		flag.Parse()
	}

	if err := godotenv.Load(); err != nil {
		// Missing .env is the normal case outside local development.
		log.Printf("Unable to load .env file: %v", err)
	}

	if err := overlayEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
