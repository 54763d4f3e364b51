// Package errors provides structured error handling for eventscout.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration and request validation errors
//   - 2XX: Cache backend errors
//   - 3XX: Transient provider errors (retryable)
//   - 4XX: Permanent provider errors (not retryable)
//   - 5XX: Resilience errors (circuit open, budget exhausted)
//   - 6XX: Ranking and response parsing errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration or request validation errors.
	CategoryConfig Category = "CONFIG"
	// CategoryCache indicates cache backend errors.
	CategoryCache Category = "CACHE"
	// CategoryTransient indicates transient provider errors worth retrying.
	CategoryTransient Category = "TRANSIENT"
	// CategoryPermanent indicates permanent provider errors (bad request, auth).
	CategoryPermanent Category = "PERMANENT"
	// CategoryResilience indicates errors raised by the protection layer itself.
	CategoryResilience Category = "RESILIENCE"
	// CategoryRanking indicates AI ranking call and parse errors.
	CategoryRanking Category = "RANKING"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config and request validation errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeQueryEmpty     = "ERR_110_QUERY_EMPTY"
	ErrCodeWindowInvalid  = "ERR_111_WINDOW_INVALID"
	ErrCodeLimitInvalid   = "ERR_112_LIMIT_INVALID"
	ErrCodeCountryInvalid = "ERR_113_COUNTRY_INVALID"

	// Cache backend errors (200-299)
	ErrCodeCacheBackend = "ERR_201_CACHE_BACKEND"
	ErrCodeCacheCorrupt = "ERR_202_CACHE_CORRUPT"

	// Transient provider errors (300-399)
	ErrCodeProviderTimeout     = "ERR_301_PROVIDER_TIMEOUT"
	ErrCodeProviderUnavailable = "ERR_302_PROVIDER_UNAVAILABLE"
	ErrCodeProviderRateLimited = "ERR_303_PROVIDER_RATE_LIMITED"
	ErrCodeProviderServer      = "ERR_304_PROVIDER_SERVER"

	// Permanent provider errors (400-499)
	ErrCodeProviderRejected = "ERR_401_PROVIDER_REJECTED"
	ErrCodeProviderAuth     = "ERR_402_PROVIDER_AUTH"
	ErrCodeProviderResponse = "ERR_403_PROVIDER_RESPONSE"

	// Resilience errors (500-599)
	ErrCodeCircuitOpen   = "ERR_501_CIRCUIT_OPEN"
	ErrCodeRateBudget    = "ERR_502_RATE_BUDGET"
	ErrCodeOverallBudget = "ERR_503_OVERALL_BUDGET"

	// Ranking errors (600-699)
	ErrCodeRankCall  = "ERR_601_RANK_CALL"
	ErrCodeRankParse = "ERR_602_RANK_PARSE"
	ErrCodeRankShape = "ERR_603_RANK_SHAPE"

	// Internal errors (900-999)
	ErrCodeInternal = "ERR_901_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "301" from "ERR_301_PROVIDER_TIMEOUT")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryCache
	case '3':
		return CategoryTransient
	case '4':
		return CategoryPermanent
	case '5':
		return CategoryResilience
	case '6':
		return CategoryRanking
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors
	switch code {
	case ErrCodeConfigInvalid, ErrCodeConfigNotFound:
		return SeverityFatal
	}

	// Retryable errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderTimeout, ErrCodeProviderUnavailable,
		ErrCodeProviderRateLimited, ErrCodeProviderServer:
		return true
	default:
		return false
	}
}

// CodeForHTTPStatus maps an upstream HTTP status to an error code.
// 429 and 5xx are transient; every other non-2xx status is permanent.
func CodeForHTTPStatus(status int) string {
	switch {
	case status == 429:
		return ErrCodeProviderRateLimited
	case status == 401 || status == 403:
		return ErrCodeProviderAuth
	case status >= 500:
		return ErrCodeProviderServer
	default:
		return ErrCodeProviderRejected
	}
}
