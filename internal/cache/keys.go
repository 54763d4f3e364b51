package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/event"
)

// Key derives a canonical, order-independent key from named parameters.
// Params are sorted by name and joined with NUL separators before hashing,
// so semantically identical inputs collide deterministically regardless of
// construction order.
func Key(params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte('\x00')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(params[name])
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

// QueryKey derives the unified cache key for a search query with its
// resolved limit. Text is lower-cased, trimmed and whitespace-collapsed,
// country upper-cased, omitted dates fixed to the empty string, so query
// spelling variants share one key. The same key feeds in-flight dedup.
func QueryKey(q event.SearchQuery, limit int) string {
	return Key(map[string]string{
		"text":    canonicalText(q.Text),
		"country": strings.ToUpper(strings.TrimSpace(q.Country)),
		"from":    canonicalDate(q.DateFrom),
		"to":      canonicalDate(q.DateTo),
		"limit":   strconv.Itoa(limit),
	})
}

func canonicalText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func canonicalDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// DependencyForProvider names the invalidation tag of one provider's entries.
func DependencyForProvider(p event.ProviderName) string {
	return "provider:" + string(p)
}
