package news

import (
	"sort"
	"strings"

	"github.com/sawpanic/intelrun/internal/models"
)

// classifyScope derives the breadth of a news item from its event type
// and title. SYSTEMIC wins over MACRO when contagion wording appears.
func classifyScope(title, eventType string, entities []string) (models.NewsScope, float64) {
	lower := strings.ToLower(title)
	switch {
	case containsAny(lower, []string{"contagion", "systemic", "bank run", "default wave", "credit crunch"}):
		return models.ScopeSystemic, 95
	case eventType == "MACRO_RATES_INFLATION":
		return models.ScopeMacro, 80
	case eventType == "SANCTIONS_GEOPOLITICS" || eventType == "ENERGY_SUPPLY_OPEC":
		return models.ScopeGeopolitics, 75
	case eventType == "EARNINGS_GUIDANCE" || eventType == "MNA" || eventType == "PRODUCT_PLATFORM":
		return models.ScopeCompany, 45
	case eventType == "CRYPTO_MARKET_STRUCTURE" || eventType == "REGULATION_LEGAL":
		return models.ScopeSector, 60
	case len(entities) > 1:
		return models.ScopeSector, 55
	case len(entities) == 1:
		return models.ScopeCompany, 40
	default:
		return models.ScopeUnknown, 20
	}
}

// sectorRule drives sector-impact tagging: required keywords gate the
// rule, boost keywords raise the score, exclude keywords veto it.
type sectorRule struct {
	sector    string
	direction string
	required  []string
	boost     []string
	exclude   []string
	baseScore float64
}

var sectorRules = []sectorRule{
	{sector: "ENERGY", direction: "UP", baseScore: 55,
		required: []string{"oil", "gas", "opec", "pipeline", "refinery", "lng"},
		boost:    []string{"supply cut", "production cut", "embargo", "attack"},
		exclude:  []string{"solar", "renewable subsidy"}},
	{sector: "TECH", direction: "NEUTRAL", baseScore: 50,
		required: []string{"chip", "semiconductor", "software", "ai", "cloud", "data center"},
		boost:    []string{"export controls", "shortage", "breakthrough"},
		exclude:  nil},
	{sector: "FINANCIALS", direction: "DOWN", baseScore: 50,
		required: []string{"bank", "lender", "credit", "bond yield"},
		boost:    []string{"default", "downgrade", "bank run"},
		exclude:  []string{"blood bank"}},
	{sector: "CRYPTO", direction: "NEUTRAL", baseScore: 55,
		required: []string{"crypto", "bitcoin", "ethereum", "stablecoin", "etf", "token"},
		boost:    []string{"approval", "enforcement", "hack", "halving"},
		exclude:  nil},
	{sector: "DEFENSE", direction: "UP", baseScore: 50,
		required: []string{"military", "defense", "missile", "nato", "weapons"},
		boost:    []string{"escalation", "mobilization", "procurement"},
		exclude:  nil},
	{sector: "CONSUMER", direction: "NEUTRAL", baseScore: 40,
		required: []string{"retail", "consumer spending", "e-commerce"},
		boost:    []string{"holiday sales", "inflation"},
		exclude:  nil},
}

// sectorGiants maps flagship companies straight onto their sector with
// an elevated base score, bypassing the keyword gates.
var sectorGiants = map[string]string{
	"nvidia":     "TECH",
	"apple":      "TECH",
	"microsoft":  "TECH",
	"exxon":      "ENERGY",
	"aramco":     "ENERGY",
	"jpmorgan":   "FINANCIALS",
	"blackrock":  "FINANCIALS",
	"coinbase":   "CRYPTO",
	"binance":    "CRYPTO",
}

const maxSectorImpacts = 5

// matchSectorImpacts evaluates the sector rule set and the giants
// override, returning up to five impacts ordered by score.
func matchSectorImpacts(title string) []models.SectorImpact {
	lower := strings.ToLower(title)
	bySector := make(map[string]models.SectorImpact)

	for _, rule := range sectorRules {
		if !containsAny(lower, rule.required) || containsAny(lower, rule.exclude) {
			continue
		}
		score := rule.baseScore
		for _, b := range rule.boost {
			if strings.Contains(lower, b) {
				score += 15
			}
		}
		imp := models.SectorImpact{
			Sector:      rule.sector,
			Direction:   rule.direction,
			Confidence:  models.Clip100(score - 5),
			Rationale:   "keyword rule",
			ImpactScore: models.Clip100(score),
		}
		if prev, ok := bySector[rule.sector]; !ok || imp.ImpactScore > prev.ImpactScore {
			bySector[rule.sector] = imp
		}
	}

	for giant, sector := range sectorGiants {
		if !strings.Contains(lower, giant) {
			continue
		}
		imp := models.SectorImpact{
			Sector:      sector,
			Direction:   "NEUTRAL",
			Confidence:  70,
			Rationale:   "flagship company",
			ImpactScore: 70,
		}
		if prev, ok := bySector[sector]; !ok || imp.ImpactScore > prev.ImpactScore {
			bySector[sector] = imp
		}
	}

	out := make([]models.SectorImpact, 0, len(bySector))
	for _, imp := range bySector {
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ImpactScore != out[j].ImpactScore {
			return out[i].ImpactScore > out[j].ImpactScore
		}
		return out[i].Sector < out[j].Sector
	})
	if len(out) > maxSectorImpacts {
		out = out[:maxSectorImpacts]
	}
	return out
}
