package preflight

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/provider"
)

// CheckSearchProviders verifies the network search providers have
// credentials. Non-critical: with neither key set the curated catalog
// still serves results, just nothing fresh from the web.
func (c *Checker) CheckSearchProviders(cfg *config.Config, secrets *config.Secrets) CheckResult {
	result := CheckResult{
		Name:     "search_providers",
		Required: false,
	}

	var missing []string
	if secrets.Firecrawl(cfg) == "" {
		missing = append(missing, keyHint("FIRECRAWL_API_KEY", cfg.Providers.Firecrawl.APIKeyEnv))
	}
	if secrets.Serper(cfg) == "" {
		missing = append(missing, keyHint("SERPER_API_KEY", cfg.Providers.Serper.APIKeyEnv))
	}

	configured := 2 - len(missing)
	switch configured {
	case 2:
		result.Status = StatusPass
		result.Message = "firecrawl and serper configured"
	case 1:
		result.Status = StatusWarn
		result.Message = "1 of 2 network providers configured"
		result.Details = "Missing: " + strings.Join(missing, ", ")
	default:
		result.Status = StatusFail
		result.Message = "no network providers configured"
		result.Details = "Set " + strings.Join(missing, " and ") +
			"; only the curated catalog will serve results"
	}
	return result
}

// CheckRanking reports whether the AI ranking branch can run. Non-critical,
// the heuristic ranker stands in whenever it cannot.
func (c *Checker) CheckRanking(cfg *config.Config, secrets *config.Secrets) CheckResult {
	result := CheckResult{
		Name:     "ranking",
		Required: false,
	}

	switch {
	case !cfg.Rank.Enabled:
		result.Status = StatusPass
		result.Message = "AI ranking disabled, heuristic order"
	case cfg.Rank.Bypass:
		result.Status = StatusPass
		result.Message = "AI ranking bypassed, heuristic order"
	case secrets.Rank(cfg) == "":
		result.Status = StatusWarn
		result.Message = "rank API key not set, heuristic order will be used"
		result.Details = "Set " + keyHint("RANK_API_KEY", cfg.Rank.APIKeyEnv)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("AI ranking configured (model: %s)", cfg.Rank.Model)
	}
	return result
}

// CheckLocalCatalog validates the curated catalog the local provider
// indexes: the embedded one when no path is configured, the external file
// otherwise. A configured file that fails to parse is a failure because
// the local provider would start empty.
func (c *Checker) CheckLocalCatalog(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "local_catalog",
		Required: false,
	}

	path := cfg.Providers.Local.CatalogPath
	if path == "" {
		catalog, err := provider.DefaultCatalog()
		if err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("embedded catalog is invalid: %v", err)
			return result
		}
		result.Status = StatusPass
		result.Message = fmt.Sprintf("embedded catalog (%d entries)", len(catalog.Entries))
		return result
	}

	catalog, err := provider.LoadCatalog(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("catalog at %s is unusable: %v", path, err)
		result.Details = "Fix or remove providers.local.catalog_path to fall back to the embedded catalog"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("catalog at %s (%d entries)", path, len(catalog.Entries))
	if len(catalog.Entries) == 0 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("catalog at %s has no entries", path)
	}
	return result
}

// CheckCacheBackend verifies the shared cache tier is reachable on paper:
// the SQLite directory is writable, or the Postgres DSN is present.
// Non-critical, the pipeline runs uncached.
func (c *Checker) CheckCacheBackend(cfg *config.Config, secrets *config.Secrets) CheckResult {
	result := CheckResult{
		Name:     "cache_backend",
		Required: false,
	}

	if !cfg.Cache.Enabled {
		result.Status = StatusPass
		result.Message = "cache disabled"
		return result
	}

	switch strings.ToLower(cfg.Cache.SharedBackend) {
	case "none", "":
		result.Status = StatusPass
		result.Message = fmt.Sprintf("memory only (%d entries)", cfg.Cache.MemorySize)
	case "sqlite":
		path := cfg.Cache.ResolveSQLitePath()
		dirCheck := c.CheckWritePermissions(filepath.Dir(path))
		if dirCheck.Status == StatusFail {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("sqlite directory is not writable: %s", dirCheck.Message)
			result.Details = fmt.Sprintf("Database: %s", path)
			return result
		}
		result.Status = StatusPass
		result.Message = fmt.Sprintf("sqlite at %s", path)
	case "postgres":
		if secrets.Postgres(cfg) == "" {
			result.Status = StatusWarn
			result.Message = "postgres backend selected but no DSN is set"
			result.Details = "Set " + keyHint("POSTGRES_DSN", cfg.Cache.PostgresDSNEnv)
			return result
		}
		result.Status = StatusPass
		result.Message = "postgres configured (DSN set)"
	default:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unknown shared backend %q", cfg.Cache.SharedBackend)
	}
	return result
}

// keyHint names both ways a secret can be supplied: the variable the
// config names and the EVENTSCOUT_-prefixed override.
func keyHint(prefixed, configured string) string {
	if configured == "" {
		return "EVENTSCOUT_" + prefixed
	}
	return fmt.Sprintf("%s (or EVENTSCOUT_%s)", configured, prefixed)
}
