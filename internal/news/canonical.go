// Package news implements the ingestion and ranking pipeline: fetch
// orchestration with timespan fallback, URL canonicalization, cluster
// deduplication, watchlist-driven tagging, multi-signal scoring and
// event-feed assembly. FetchNews never fails a request; every error
// path degrades to a debug note.
package news

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// trackingParams is the fixed blocklist of query parameters stripped
// during canonicalization. utm_* is matched by prefix.
var trackingParams = map[string]bool{
	"ref":     true,
	"fbclid":  true,
	"gclid":   true,
	"mc_cid":  true,
	"mc_eid":  true,
	"cmpid":   true,
	"spm":     true,
	"igshid":  true,
	"mkt_tok": true,
	"yclid":   true,
}

// CanonicalizeURL strips tracking parameters and fragments, preserving
// scheme+host+path. It is idempotent.
func CanonicalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Fragment = ""
	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if trackingParams[lower] || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// titleTokens normalizes a title into its sorted unique token set.
func titleTokens(title string) []string {
	lower := strings.ToLower(title)
	parts := nonWordRe.Split(lower, -1)
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if len(p) >= 2 {
			seen[p] = true
		}
	}
	tokens := make([]string, 0, len(seen))
	for t := range seen {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// TokenSetRatio is the Dice coefficient over unique title tokens:
// 2|A∩B| / (|A|+|B|). Identical token sets score 1.0.
func TokenSetRatio(a, b string) float64 {
	ta, tb := titleTokens(a), titleTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	var common int
	for _, t := range tb {
		if set[t] {
			common++
		}
	}
	return 2 * float64(common) / float64(len(ta)+len(tb))
}

// clusterID derives the deterministic dedup cluster ID: hash of the
// canonical URL when present, else of the canonical title plus top
// entities.
func clusterID(canonicalURL, title string, entities []string) string {
	var key string
	if canonicalURL != "" {
		key = "u:" + canonicalURL
	} else {
		top := entities
		if len(top) > 2 {
			top = top[:2]
		}
		key = "t:" + strings.Join(titleTokens(title), " ") + "|" + strings.Join(top, ",")
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
