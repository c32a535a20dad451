// Package debate builds a bounded decision context from portfolio and
// news state, asks two LLM providers for a plan in parallel, scores and
// judges the answers, and caches the result behind a single-flight map.
package debate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/portfolio"
)

const maxEvidenceEntries = 60

// Evidence is one citable item in the context's evidence index.
type Evidence struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Symbol string  `json:"symbol,omitempty"`
	Sector string  `json:"sector,omitempty"`
	Score  float64 `json:"score"`
}

// Context is the deterministic object both providers reason over. Its
// hash keys the debate cache.
type Context struct {
	Base    string `json:"base"`
	Window  string `json:"window"`
	Horizon string `json:"horizon"`

	Constraints struct {
		MaxWeight       float64 `json:"max_weight"`
		MaxCryptoWeight float64 `json:"max_crypto_weight"`
		TurnoverCap     float64 `json:"turnover_cap"`
	} `json:"constraints"`

	TopHoldings    []portfolio.Position       `json:"top_holdings"`
	Allocation     portfolio.Allocation       `json:"allocation"`
	Risk           portfolio.RiskMetrics      `json:"risk"`
	GlobalNews     []string                   `json:"global_news"`
	PortfolioNews  []portfolio.SymbolImpact   `json:"portfolio_news"`
	SectorRotation map[string]float64         `json:"sector_rotation,omitempty"`
	PriceChanges   map[string]float64         `json:"price_changes,omitempty"`
	EngineSignals  map[string]string          `json:"engine_signals,omitempty"`
	HoldState      string                     `json:"hold_state"`
	Evidence       []Evidence                 `json:"evidence"`
	EvidenceBySym  map[string][]string        `json:"evidence_by_symbol,omitempty"`
	EvidenceBySec  map[string][]string        `json:"evidence_by_sector,omitempty"`

	Hash string `json:"context_hash"`
}

// ContextInput bundles the raw state the builder condenses.
type ContextInput struct {
	Base, Window, Horizon string
	Valuation             portfolio.Valuation
	Plans                 []portfolio.Plan
	Items                 []models.NewsItem
	Forecasts             []models.Forecast
	SectorRotation        map[string]float64
	MaxWeight             float64
	MaxCryptoWeight       float64
}

// BuildContext assembles and hashes the bounded context. The output is
// a pure function of the input: all slices are sorted and truncated
// deterministically before hashing.
func BuildContext(in ContextInput) Context {
	c := Context{Base: in.Base, Window: in.Window, Horizon: in.Horizon}
	c.Constraints.MaxWeight = in.MaxWeight
	c.Constraints.MaxCryptoWeight = in.MaxCryptoWeight
	for _, p := range in.Plans {
		if p.Period == "daily" {
			c.Constraints.TurnoverCap = p.TurnoverCap
			c.HoldState = p.Mode
			if p.HoldReason != "" {
				c.HoldState += ":" + p.HoldReason
			}
		}
	}

	top := in.Valuation.Positions
	if len(top) > 10 {
		top = top[:10]
	}
	c.TopHoldings = top
	c.Allocation = in.Valuation.Allocation
	c.Risk = in.Valuation.Risk
	c.PortfolioNews = in.Valuation.Impacts
	c.SectorRotation = in.SectorRotation

	c.PriceChanges = make(map[string]float64, len(in.Valuation.Positions))
	for _, p := range in.Valuation.Positions {
		if p.ChangePct != 0 {
			c.PriceChanges[p.Symbol] = p.ChangePct
		}
	}

	c.EngineSignals = make(map[string]string, len(in.Forecasts))
	for _, f := range in.Forecasts {
		key := f.TF + "/" + f.Target
		c.EngineSignals[key] = fmt.Sprintf("%s conf=%.2f", f.Direction, f.Confidence)
	}

	for i := range in.Items {
		item := &in.Items[i]
		if len(c.GlobalNews) < 10 {
			c.GlobalNews = append(c.GlobalNews, item.Title)
		}
		if len(c.Evidence) >= maxEvidenceEntries {
			continue
		}
		ev := Evidence{
			ID:    fmt.Sprintf("E%03d", len(c.Evidence)+1),
			Title: item.Title,
			Score: item.FinalRankScore,
		}
		if len(item.SectorImpacts) > 0 {
			ev.Sector = item.SectorImpacts[0].Sector
		}
		c.Evidence = append(c.Evidence, ev)
	}

	c.EvidenceBySym = make(map[string][]string)
	c.EvidenceBySec = make(map[string][]string)
	for _, ev := range c.Evidence {
		if ev.Sector != "" {
			c.EvidenceBySec[ev.Sector] = append(c.EvidenceBySec[ev.Sector], ev.ID)
		}
	}
	for _, si := range c.PortfolioNews {
		for _, m := range si.TopMatches {
			if id, ok := evidenceIDByTitle(c.Evidence, m.Title); ok {
				c.EvidenceBySym[si.Symbol] = append(c.EvidenceBySym[si.Symbol], id)
			}
		}
	}
	for _, ids := range c.EvidenceBySym {
		sort.Strings(ids)
	}

	c.Hash = models.HashBlock(c)
	return c
}

func evidenceIDByTitle(evidence []Evidence, title string) (string, bool) {
	for _, ev := range evidence {
		if ev.Title == title {
			return ev.ID, true
		}
	}
	return "", false
}

// ValidEvidenceIDs is the set of citable IDs in this context.
func (c *Context) ValidEvidenceIDs() map[string]bool {
	ids := make(map[string]bool, len(c.Evidence))
	for _, ev := range c.Evidence {
		ids[ev.ID] = true
	}
	return ids
}

// CacheKey identifies a debate result.
func (c *Context) CacheKey() string {
	return strings.Join([]string{"debate", c.Base, c.Window, c.Horizon, c.Hash}, ":")
}
