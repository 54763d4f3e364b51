package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// Secrets are credentials and endpoints read from the process environment,
// never from config files. Each field answers to an EVENTSCOUT_-prefixed
// variable; the config file can additionally name an unprefixed fallback
// variable per secret (api_key_env, postgres_dsn_env, sentry_dsn_env).
type Secrets struct {
	FirecrawlAPIKey string `envconfig:"FIRECRAWL_API_KEY"`
	SerperAPIKey    string `envconfig:"SERPER_API_KEY"`
	RankAPIKey      string `envconfig:"RANK_API_KEY"`
	PostgresDSN     string `envconfig:"POSTGRES_DSN"`
	SentryDSN       string `envconfig:"SENTRY_DSN"`
}

// LoadSecrets reads .env when present, then the EVENTSCOUT_-prefixed
// environment.
func LoadSecrets() (*Secrets, error) {
	_ = godotenv.Load()

	var s Secrets
	if err := envconfig.Process("EVENTSCOUT", &s); err != nil {
		return nil, eserrors.ConfigError("failed to read environment configuration", err)
	}
	return &s, nil
}

// resolve prefers the prefixed value, then the variable the config names.
func resolve(prefixed, envName string) string {
	if prefixed != "" {
		return prefixed
	}
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

// Firecrawl returns the scrape-search API key.
func (s *Secrets) Firecrawl(c *Config) string {
	return resolve(s.FirecrawlAPIKey, c.Providers.Firecrawl.APIKeyEnv)
}

// Serper returns the web-search API key.
func (s *Secrets) Serper(c *Config) string {
	return resolve(s.SerperAPIKey, c.Providers.Serper.APIKeyEnv)
}

// Rank returns the ranking API key.
func (s *Secrets) Rank(c *Config) string {
	return resolve(s.RankAPIKey, c.Rank.APIKeyEnv)
}

// Postgres returns the shared-tier DSN.
func (s *Secrets) Postgres(c *Config) string {
	return resolve(s.PostgresDSN, c.Cache.PostgresDSNEnv)
}

// Sentry returns the error-reporting DSN.
func (s *Secrets) Sentry(c *Config) string {
	return resolve(s.SentryDSN, c.Telemetry.SentryDSNEnv)
}
