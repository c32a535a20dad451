// Package forecast fuses market and news signals into directional
// short-horizon forecasts per (timeframe, target), applies hysteresis
// and emission gating, scores expired forecasts and calibrates
// confidence with a per-timeframe Platt fit.
package forecast

import (
	"math"

	"github.com/sawpanic/intelrun/internal/models"
)

// feature is one market-snapshot input to the signal: a reader, a base
// weight, and a clip bound for the raw value.
type feature struct {
	name   string
	weight float64
	clip   float64
	read   func(*models.MarketSnapshot) float64
}

var marketFeatures = []feature{
	{"stable_dom_delta", 0.18, 2.0, func(m *models.MarketSnapshot) float64 { return m.Change("stable_dom") }},
	{"dxy_delta", 0.14, 1.5, func(m *models.MarketSnapshot) float64 { return m.Change("dxy") }},
	{"qqq_delta", 0.12, 3.0, func(m *models.MarketSnapshot) float64 { return m.Change("qqq") }},
	{"oil_delta", 0.06, 4.0, func(m *models.MarketSnapshot) float64 { return m.Change("oil") }},
	{"vix_level", 0.12, 12.0, func(m *models.MarketSnapshot) float64 { return m.VIX }},
	{"btc_dom_delta", 0.10, 2.0, func(m *models.MarketSnapshot) float64 { return m.Change("btc_dom") }},
	{"flow_score", 0.10, 1.0, func(m *models.MarketSnapshot) float64 { return m.FlowScore }},
	{"funding_z", 0.08, 3.0, func(m *models.MarketSnapshot) float64 { return m.FundingZ }},
	{"oi_delta", 0.05, 10.0, func(m *models.MarketSnapshot) float64 { return m.OIDelta }},
	{"macro_risk_off", 0.05, 1.0, func(m *models.MarketSnapshot) float64 {
		if m.MacroRiskOff {
			return 1
		}
		return 0
	}},
}

// featureDirections gives the per-target sign of each feature. A
// rising stablecoin dominance is risk-off for BTC/ETH/ALTS but a flow
// INTO the stablecoin complex, so STABLES inverts most risk features.
var featureDirections = map[string]map[string]float64{
	models.TargetBTC: {
		"stable_dom_delta": -1, "dxy_delta": -1, "qqq_delta": +1, "oil_delta": -0.5,
		"vix_level": -1, "btc_dom_delta": +1, "flow_score": +1, "funding_z": -1,
		"oi_delta": +0.5, "macro_risk_off": -1,
	},
	models.TargetETH: {
		"stable_dom_delta": -1, "dxy_delta": -1, "qqq_delta": +1, "oil_delta": -0.5,
		"vix_level": -1, "btc_dom_delta": -0.5, "flow_score": +1, "funding_z": -1,
		"oi_delta": +0.5, "macro_risk_off": -1,
	},
	models.TargetAlts: {
		"stable_dom_delta": -1, "dxy_delta": -1, "qqq_delta": +1, "oil_delta": -0.5,
		"vix_level": -1.2, "btc_dom_delta": -1, "flow_score": +1, "funding_z": -1,
		"oi_delta": +0.5, "macro_risk_off": -1.2,
	},
	models.TargetStables: {
		"stable_dom_delta": +1, "dxy_delta": +0.5, "qqq_delta": -1, "oil_delta": +0.5,
		"vix_level": +1, "btc_dom_delta": -0.5, "flow_score": -1, "funding_z": +0.5,
		"oi_delta": -0.5, "macro_risk_off": +1,
	},
}

// vixBaseline centers the VIX level feature so a calm tape contributes
// nothing.
const vixBaseline = 18.0

// MarketSignal scores the snapshot for one target, returning a value in
// [-1,1] and the per-feature contributions for explainability.
func MarketSignal(snap *models.MarketSnapshot, target string) (float64, []models.ForecastDriver) {
	dirs, ok := featureDirections[target]
	if !ok {
		dirs = featureDirections[models.TargetBTC]
	}

	score := 0.0
	drivers := make([]models.ForecastDriver, 0, len(marketFeatures))
	for _, f := range marketFeatures {
		raw := f.read(snap)
		if f.name == "vix_level" {
			if raw <= 0 {
				continue // missing
			}
			raw -= vixBaseline
		}
		norm := clipTo(raw/f.clip, 1)
		contribution := dirs[f.name] * f.weight * norm
		score += contribution
		drivers = append(drivers, models.ForecastDriver{
			Name:         f.name,
			Value:        raw,
			Weight:       dirs[f.name] * f.weight,
			Contribution: contribution,
		})
	}
	return clipTo(score, 1), drivers
}

func clipTo(v, bound float64) float64 {
	return math.Max(-bound, math.Min(bound, v))
}
