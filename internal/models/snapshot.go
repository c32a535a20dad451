package models

// MarketSnapshot is the fused market state the forecasting and news
// engines read. Zero values mean "missing"; the quote router backfills
// what it can and the rest lands in Missing.
type MarketSnapshot struct {
	BTC          float64 `json:"btc"`
	ETH          float64 `json:"eth"`
	TotalMcap    float64 `json:"total_mcap"`
	BTCDom       float64 `json:"btc_dom"`     // percent 0..100
	StableDom    float64 `json:"stable_dom"`  // percent 0..100
	DXY          float64 `json:"dxy"`
	QQQ          float64 `json:"qqq"`
	Oil          float64 `json:"oil"`
	VIX          float64 `json:"vix"`
	FearGreed    float64 `json:"fear_greed"`
	FundingZ     float64 `json:"funding_z"`
	OIDelta      float64 `json:"oi_delta"`
	FlowScore    float64 `json:"flow_score"`
	MacroRiskOff bool    `json:"macro_risk_off"`

	// Changes holds 24h percentage deltas keyed by the field's snapshot
	// key ("btc", "dxy", ...).
	Changes map[string]float64 `json:"changes,omitempty"`

	// Missing lists snapshot keys no provider could fill.
	Missing []string `json:"missing,omitempty"`
}

// AltcoinTotalExBTC derives the non-BTC market value. Returns ok=false
// unless both inputs are positive.
func (m *MarketSnapshot) AltcoinTotalExBTC() (float64, bool) {
	if m.TotalMcap <= 0 || m.BTCDom <= 0 {
		return 0, false
	}
	return m.TotalMcap * (1 - m.BTCDom/100), true
}

// Change returns the recorded 24h delta for a snapshot key.
func (m *MarketSnapshot) Change(key string) float64 {
	if m.Changes == nil {
		return 0
	}
	return m.Changes[key]
}
