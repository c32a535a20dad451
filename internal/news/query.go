package news

import (
	"fmt"
	"strings"
)

// regionalTerms widen the category queries toward the regions the
// watchlist trades against.
var regionalTerms = []string{"europe", "middle east", "turkey", "asia"}

// categoryTopics seed each category query beyond the watchlist aliases.
var categoryTopics = map[string][]string{
	"crypto": {"bitcoin", "crypto regulation", "stablecoin", "crypto etf"},
	"energy": {"oil prices", "opec", "natural gas", "energy supply"},
	"tech":   {"semiconductor", "artificial intelligence", "big tech"},
}

// BuildQueries produces 1+N provider queries: the base query followed
// by one per watchlist category. The caller caps how many are used.
func BuildQueries(base string, wl Watchlist) []string {
	queries := []string{base}
	for _, cat := range wl.Categories() {
		var terms []string
		for _, t := range categoryTopics[cat.Name] {
			terms = append(terms, quote(t))
		}
		// Two leading aliases per asset keeps query length bounded.
		for _, asset := range cat.Assets {
			for i, alias := range asset.Aliases {
				if i >= 2 {
					break
				}
				terms = append(terms, quote(alias))
			}
		}
		if len(terms) == 0 {
			continue
		}
		q := fmt.Sprintf("(%s)", strings.Join(terms, " OR "))
		if cat.Name != "tech" {
			q += fmt.Sprintf(" (%s)", strings.Join(quoteAll(regionalTerms), " OR "))
		}
		queries = append(queries, q)
	}
	return queries
}

// DefaultBaseQuery is used when the request carries no query.
const DefaultBaseQuery = `("markets" OR "economy" OR "central bank" OR "geopolitics")`

func quote(s string) string {
	if strings.ContainsAny(s, " -") {
		return `"` + s + `"`
	}
	return s
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = quote(s)
	}
	return out
}

// spanLadder is the timespan fallback ladder for short-window requests.
var spanLadder = []string{"1h", "6h", "24h"}

// IsLongSpan reports whether the caller asked for a >= 1 day window, in
// which case no ladder fallback is performed.
func IsLongSpan(timespan string) bool {
	switch timespan {
	case "24h", "1d", "7d", "30d":
		return true
	default:
		return false
	}
}

// ladderFrom returns the ladder starting at the requested span.
func ladderFrom(timespan string) []string {
	if IsLongSpan(timespan) {
		return []string{timespan}
	}
	for i, s := range spanLadder {
		if s == timespan {
			return spanLadder[i:]
		}
	}
	return spanLadder
}
