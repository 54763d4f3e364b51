package rank

import (
	"regexp"
	"strings"
)

// The repair pass is deliberately bounded to these textual fixes; anything
// it cannot make parseable falls back to the heuristic ranker. It never
// invents structure the model did not produce.
var (
	trailingCommaRe = regexp.MustCompile(`,\s*([\}\]])`)
	bareKeyRe       = regexp.MustCompile(`([\{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	leadingQuoteRe  = regexp.MustCompile(`([\{\[:,]\s*)'`)
	trailingQuoteRe = regexp.MustCompile(`'(\s*[\}\],:])`)

	curlyQuotes = strings.NewReplacer(
		"“", `"`, // left double
		"”", `"`, // right double
		"‘", "'", // left single
		"’", "'", // right single
	)
)

// extractJSONObject trims text to its outermost {...} block, dropping
// markdown fences and prose the model wrapped around it.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// repairJSON applies the bounded fixes: wrapper trim, curly quote
// normalization, structural single quotes to double quotes, bare key
// quoting, trailing comma removal.
func repairJSON(text string) string {
	body, ok := extractJSONObject(text)
	if !ok {
		body = text
	}
	body = curlyQuotes.Replace(body)
	body = leadingQuoteRe.ReplaceAllString(body, `$1"`)
	body = trailingQuoteRe.ReplaceAllString(body, `"$1`)
	body = bareKeyRe.ReplaceAllString(body, `$1"$2":`)
	body = trailingCommaRe.ReplaceAllString(body, `$1`)
	return body
}
