package news

import (
	"sort"
	"strings"

	"github.com/sawpanic/intelrun/internal/models"
)

// StablecoinFactor scales STABLES relevance for stablecoin regulation
// stories. Exposed so the tuning stays configurable.
var StablecoinFactor = 0.85

// scopeFloors are the per-scope default relevance floors guaranteeing
// every primary target is always present.
var scopeFloors = map[models.NewsScope][4]float64{
	// order: BTC, ETH, ALTS, STABLES
	models.ScopeSystemic:    {0.50, 0.50, 0.50, 0.50},
	models.ScopeMacro:       {0.40, 0.40, 0.35, 0.35},
	models.ScopeGeopolitics: {0.35, 0.30, 0.30, 0.30},
	models.ScopeSector:      {0.25, 0.25, 0.25, 0.20},
	models.ScopeCompany:     {0.15, 0.15, 0.15, 0.10},
	models.ScopeUnknown:     {0.15, 0.15, 0.15, 0.10},
}

// relevanceRule adds target weights when its trigger fires. Weights
// combine by max with whatever is already assigned.
type relevanceRule struct {
	match   func(item *models.NewsItem, lower string) bool
	weights map[string]float64
}

var relevanceRules = []relevanceRule{
	{
		// Stablecoin regulation lands hardest on the stablecoin complex,
		// then spills into alts.
		match: func(item *models.NewsItem, lower string) bool {
			return strings.Contains(lower, "stablecoin") ||
				hasTag(item.Tags, "Stablecoin")
		},
		weights: map[string]float64{
			models.TargetStables: 0.90 * StablecoinFactor,
			models.TargetAlts:    0.55,
			models.TargetETH:     0.45,
			models.TargetBTC:     0.35,
		},
	},
	{
		// Spot ETF flow is a BTC story first.
		match: func(item *models.NewsItem, lower string) bool {
			return strings.Contains(lower, "etf") || hasTag(item.Tags, "ETF")
		},
		weights: map[string]float64{
			models.TargetBTC:  0.85,
			models.TargetETH:  0.55,
			models.TargetAlts: 0.45,
		},
	},
	{
		match: func(item *models.NewsItem, lower string) bool {
			return item.EventType == "CRYPTO_MARKET_STRUCTURE" ||
				strings.Contains(lower, "bitcoin") || strings.Contains(lower, "btc")
		},
		weights: map[string]float64{
			models.TargetBTC:  0.75,
			models.TargetETH:  0.55,
			models.TargetAlts: 0.55,
		},
	},
	{
		match: func(item *models.NewsItem, lower string) bool {
			return strings.Contains(lower, "ethereum") || strings.Contains(lower, " eth ")
		},
		weights: map[string]float64{
			models.TargetETH:  0.80,
			models.TargetAlts: 0.55,
		},
	},
	{
		match: func(item *models.NewsItem, lower string) bool {
			return item.EventType == "MACRO_RATES_INFLATION"
		},
		weights: map[string]float64{
			models.TargetBTC:     0.60,
			models.TargetETH:     0.55,
			models.TargetAlts:    0.55,
			models.TargetStables: 0.45,
		},
	},
	{
		match: func(item *models.NewsItem, lower string) bool {
			return item.EventType == "SANCTIONS_GEOPOLITICS" || item.EventType == "ENERGY_SUPPLY_OPEC"
		},
		weights: map[string]float64{
			models.TargetBTC:     0.50,
			models.TargetETH:     0.45,
			models.TargetAlts:    0.45,
			models.TargetStables: 0.40,
		},
	},
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// RelevanceTargets maps an annotated item onto a weighted target set.
// Deterministic and additive-by-max: rules raise weights, never lower
// them, and the scope floor layer guarantees all four primary targets
// appear. SCOPE:* and SECTOR:* pseudo-targets ride along for consumers
// that aggregate by breadth or sector.
func RelevanceTargets(item *models.NewsItem) []models.TargetRelevance {
	lower := strings.ToLower(item.Title)
	weights := make(map[string]float64, 8)

	floors, ok := scopeFloors[item.Scope]
	if !ok {
		floors = scopeFloors[models.ScopeUnknown]
	}
	for i, target := range models.Targets {
		weights[target] = floors[i]
	}

	for _, rule := range relevanceRules {
		if !rule.match(item, lower) {
			continue
		}
		for target, w := range rule.weights {
			if w > weights[target] {
				weights[target] = w
			}
		}
	}

	if item.Scope != "" && item.Scope != models.ScopeUnknown {
		weights["SCOPE:"+string(item.Scope)] = models.Clip1(item.ScopeScore / 100)
	}
	for _, s := range item.SectorImpacts {
		key := "SECTOR:" + s.Sector
		w := models.Clip1(s.ImpactScore / 100)
		if w > weights[key] {
			weights[key] = w
		}
	}

	out := make([]models.TargetRelevance, 0, len(weights))
	for target, w := range weights {
		out = append(out, models.TargetRelevance{Target: target, Relevance: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].Target < out[j].Target
	})
	return out
}
