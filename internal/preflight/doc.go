// Package preflight validates the environment before EventScout starts
// serving searches.
//
// System checks cover the state directory (disk space, write permissions)
// plus memory and file descriptor limits. Dependency checks cover the
// pieces a search actually needs: network provider credentials, the AI
// ranking key, the curated catalog, and the shared cache backend. Only
// system checks are critical; every dependency check has a fallback and
// at worst degrades the result set.
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg, secrets)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
