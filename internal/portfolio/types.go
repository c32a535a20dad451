// Package portfolio values holdings through the quote router, computes
// allocation and risk metrics, attributes news impact per symbol and
// runs a turnover-bounded optimizer.
package portfolio

import "time"

// Holding is one configured position.
type Holding struct {
	Symbol   string   `json:"symbol" yaml:"symbol"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Quantity float64  `json:"quantity" yaml:"quantity"`
	Currency string   `json:"currency" yaml:"currency"` // USD or TRY
	Sector   string   `json:"sector,omitempty" yaml:"sector,omitempty"`
	IsCrypto bool     `json:"is_crypto,omitempty" yaml:"is_crypto,omitempty"`
	Aliases  []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Position is a valued holding.
type Position struct {
	Holding
	Price      float64 `json:"price"`
	ValueUSD   float64 `json:"value_usd"`
	Weight     float64 `json:"weight"`
	ChangePct  float64 `json:"change_pct"`
	Source     string  `json:"price_source,omitempty"`
	DataStatus string  `json:"data_status"` // ok | missing | degraded
}

// Allocation buckets weights by currency and sector.
type Allocation struct {
	ByCurrency map[string]float64 `json:"by_currency"`
	BySector   map[string]float64 `json:"by_sector"`
}

// RiskMetrics summarizes portfolio concentration and volatility.
type RiskMetrics struct {
	HHI         float64  `json:"hhi"`
	MaxWeight   float64  `json:"max_weight"`
	Vol30d      float64  `json:"vol_30d"`
	VaR951d     float64  `json:"var_95_1d"`
	USDExposure float64  `json:"usd_exposure"`
	Flags       []string `json:"flags,omitempty"`
}

// SymbolImpact is the aggregated news impact on one symbol.
type SymbolImpact struct {
	Symbol       string        `json:"symbol"`
	Score        float64       `json:"score"`
	DirectCount  int           `json:"direct_count"`
	SectorCount  int           `json:"sector_count"`
	TopMatches   []ImpactMatch `json:"top_matches,omitempty"`
	LowSignal    bool          `json:"low_signal"`
}

// ImpactMatch records one item-to-symbol attribution.
type ImpactMatch struct {
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	Method    string  `json:"method"` // direct | entity | title | fuzzy | sector
	Impact    float64 `json:"impact"`
	Direction string  `json:"direction,omitempty"`
}

// Valuation is the full portfolio view served by the API.
type Valuation struct {
	AsOf        time.Time      `json:"as_of_utc"`
	TotalUSD    float64        `json:"total_usd"`
	TotalTRY    float64        `json:"total_try,omitempty"`
	USDTRY      float64        `json:"usdtry,omitempty"`
	Positions   []Position     `json:"positions"`
	Allocation  Allocation     `json:"allocation"`
	Risk        RiskMetrics    `json:"risk"`
	Impacts     []SymbolImpact `json:"news_impacts,omitempty"`
	Degraded    bool           `json:"degraded_mode"`
	DebugNotes  []string       `json:"debug_notes,omitempty"`
}

// Action is one optimizer recommendation.
type Action struct {
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"` // increase | decrease
	DeltaWeight float64 `json:"delta_weight"`
	Score       float64 `json:"score"`
	Rationale   string  `json:"rationale,omitempty"`
}

// Plan is the optimizer output for one horizon.
type Plan struct {
	Period        string   `json:"period"` // daily | weekly | monthly
	Mode          string   `json:"mode"`   // ACT | HOLD
	HoldReason    string   `json:"hold_reason,omitempty"`
	TurnoverCap   float64  `json:"turnover_cap"`
	CoverageRatio float64  `json:"coverage_ratio"`
	Actions       []Action `json:"actions"`
}

// Brief is the daily portfolio summary.
type Brief struct {
	AsOf       time.Time      `json:"as_of_utc"`
	TotalUSD   float64        `json:"total_usd"`
	DayChange  float64        `json:"day_change_pct"`
	TopMovers  []Position     `json:"top_movers,omitempty"`
	TopImpacts []SymbolImpact `json:"top_impacts,omitempty"`
	RiskFlags  []string       `json:"risk_flags,omitempty"`
	Plans      []Plan         `json:"plans,omitempty"`
	Headline   string         `json:"headline"`
}
