package portfolio

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/news"
)

const (
	fuzzyThreshold  = 0.88
	maxDirectBlast  = 4 // more matches than this drops all fuzzy hits
	lowSignalFactor = 0.25
	topMatchesKept  = 5
)

var methodWeights = map[string]float64{
	"direct": 1.0,
	"entity": 0.9,
	"title":  0.7,
	"fuzzy":  0.6,
	"sector": 0.4,
}

var (
	tickerRegexMu sync.Mutex
	tickerRegexes = make(map[string]*regexp.Regexp)
)

// tickerRegexp matches the symbol as a standalone token, optionally
// prefixed with $.
func tickerRegexp(symbol string) *regexp.Regexp {
	tickerRegexMu.Lock()
	defer tickerRegexMu.Unlock()
	if re, ok := tickerRegexes[symbol]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)(^|[^A-Za-z0-9])\$?` + regexp.QuoteMeta(symbol) + `($|[^A-Za-z0-9])`)
	tickerRegexes[symbol] = re
	return re
}

type attribution struct {
	symbol string
	method string
	item   *models.NewsItem
}

// AttributeImpacts matches news items against holdings and aggregates a
// signed impact score per symbol.
func AttributeImpacts(items []models.NewsItem, holdings []Holding, now time.Time) []SymbolImpact {
	bySymbol := make(map[string]*SymbolImpact)
	get := func(symbol string) *SymbolImpact {
		if si, ok := bySymbol[symbol]; ok {
			return si
		}
		si := &SymbolImpact{Symbol: symbol}
		bySymbol[symbol] = si
		return si
	}

	for i := range items {
		item := &items[i]
		matches := matchItem(item, holdings)
		if len(matches) > maxDirectBlast {
			matches = dropFuzzy(matches)
		}
		lowSignal := item.EventType == "OTHER" && len(item.ImpactChannel) == 0

		for _, m := range matches {
			impact := itemImpact(item, now, methodWeights[m.method], lowSignal)
			si := get(m.symbol)
			si.Score += impact
			if m.method == "sector" {
				si.SectorCount++
			} else {
				si.DirectCount++
			}
			si.LowSignal = si.LowSignal || lowSignal
			si.TopMatches = append(si.TopMatches, ImpactMatch{
				Title:     item.Title,
				URL:       item.URL,
				Method:    m.method,
				Impact:    impact,
				Direction: item.ExpectedDir,
			})
		}
	}

	out := make([]SymbolImpact, 0, len(bySymbol))
	for _, si := range bySymbol {
		sort.SliceStable(si.TopMatches, func(i, j int) bool {
			return math.Abs(si.TopMatches[i].Impact) > math.Abs(si.TopMatches[j].Impact)
		})
		if len(si.TopMatches) > topMatchesKept {
			si.TopMatches = si.TopMatches[:topMatchesKept]
		}
		out = append(out, *si)
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := math.Abs(out[i].Score), math.Abs(out[j].Score); a != b {
			return a > b
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// matchItem applies the four direct methods in order, then sector
// indirection. A symbol matches at most once, with its strongest
// method.
func matchItem(item *models.NewsItem, holdings []Holding) []attribution {
	var matches []attribution
	matched := make(map[string]bool)
	lowerTitle := strings.ToLower(item.Title)

	for hi := range holdings {
		h := &holdings[hi]
		method := ""
		switch {
		case tickerRegexp(h.Symbol).MatchString(item.Title):
			method = "direct"
		case entityMatches(item.Entities, h):
			method = "entity"
		case h.Name != "" && strings.Contains(lowerTitle, strings.ToLower(h.Name)):
			method = "title"
		case fuzzyMatches(item.Title, h):
			method = "fuzzy"
		}
		if method != "" && !matched[h.Symbol] {
			matched[h.Symbol] = true
			matches = append(matches, attribution{symbol: h.Symbol, method: method, item: item})
		}
	}

	for _, s := range item.SectorImpacts {
		for hi := range holdings {
			h := &holdings[hi]
			if !strings.EqualFold(h.Sector, s.Sector) || matched[h.Symbol] {
				continue
			}
			matched[h.Symbol] = true
			matches = append(matches, attribution{symbol: h.Symbol, method: "sector", item: item})
		}
	}
	return matches
}

func entityMatches(entities []string, h *Holding) bool {
	for _, e := range entities {
		if strings.EqualFold(e, h.Symbol) || strings.EqualFold(e, h.Name) {
			return true
		}
		for _, a := range h.Aliases {
			if strings.EqualFold(e, a) {
				return true
			}
		}
	}
	return false
}

// fuzzyMatches compares multi-word aliases against the title with the
// token-set ratio.
func fuzzyMatches(title string, h *Holding) bool {
	for _, a := range h.Aliases {
		if !strings.Contains(a, " ") {
			continue
		}
		if news.TokenSetRatio(title, a) >= fuzzyThreshold {
			return true
		}
	}
	return false
}

func dropFuzzy(matches []attribution) []attribution {
	out := matches[:0]
	for _, m := range matches {
		if m.method == "fuzzy" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// itemImpact is relevance · quality · recency · direction · method
// weight, on a 0..1 basis per factor.
func itemImpact(item *models.NewsItem, now time.Time, methodWeight float64, lowSignal bool) float64 {
	recency := 1.0
	if age := item.AgeHours(now); age > 0 {
		recency = math.Exp(-0.1 * age)
	}
	sign := 0.0
	switch item.ExpectedDir {
	case "UP":
		sign = 1
	case "DOWN":
		sign = -1
	default:
		// Directionless items still register, attenuated.
		sign = 0.3
	}
	impact := (item.RelevanceScore / 100) * (item.QualityScore / 100) * recency * sign * methodWeight
	if lowSignal {
		impact *= lowSignalFactor
	}
	return impact
}
