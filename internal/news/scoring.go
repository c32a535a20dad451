package news

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sawpanic/intelrun/internal/models"
)

// tierA and tierB hold source domain reputation buckets. Anything else
// is tier C.
var tierA = map[string]bool{
	"reuters.com": true, "bloomberg.com": true, "wsj.com": true,
	"ft.com": true, "apnews.com": true, "economist.com": true,
}

var tierB = map[string]bool{
	"cnbc.com": true, "marketwatch.com": true, "coindesk.com": true,
	"theblock.co": true, "barrons.com": true, "forbes.com": true,
	"businessinsider.com": true, "finance.yahoo.com": true,
}

// domainTier buckets a source domain into A/B/C.
func domainTier(domain string) string {
	d := strings.TrimPrefix(strings.ToLower(domain), "www.")
	if tierA[d] {
		return "A"
	}
	if tierB[d] {
		return "B"
	}
	return "C"
}

// SourceTierOf maps a reputation bucket to the persisted tier label.
func SourceTierOf(domain string) models.SourceTier {
	switch domainTier(domain) {
	case "A":
		return models.TierPrimary
	case "B":
		return models.Tier1
	default:
		return models.Tier2
	}
}

func tierWeight(tier string) float64 {
	switch tier {
	case "A":
		return 1.0
	case "B":
		return 0.75
	default:
		return 0.5
	}
}

// lambdaAttenuation slows quality decay for reputable sources.
func lambdaAttenuation(tier string) float64 {
	switch tier {
	case "A":
		return 0.7
	case "B":
		return 0.85
	default:
		return 1.0
	}
}

const qualityLambda = 0.05 // per hour, before tier attenuation

// topicKeywordGroups counted as topic hits in relevance scoring.
var topicKeywordGroups = [][]string{
	{"inflation", "interest rate", "rate hike", "rate cut", "cpi"},
	{"etf", "stablecoin", "halving"},
	{"sanction", "tariff", "embargo"},
	{"oil supply", "opec", "production cut"},
	{"earnings", "guidance"},
}

// scoreRelevance implements:
// clip(50 + entity_match + topic_hits*10 + recency_bonus + regime_bonus + personal_boost).
// entity_match = best_entity_score + 6*ln(1+extra), capped at 40.
func scoreRelevance(item *models.NewsItem, now time.Time, riskOffRegime bool) float64 {
	const bestEntityScore = 25.0

	entityMatch := 0.0
	if n := len(item.Entities); n > 0 {
		entityMatch = bestEntityScore + 6*math.Log(1+float64(n-1))
		if entityMatch > 40 {
			entityMatch = 40
		}
	}

	lower := strings.ToLower(item.Title)
	topicHits := 0
	for _, group := range topicKeywordGroups {
		if containsAny(lower, group) {
			topicHits++
		}
	}

	recencyBonus := 0.0
	if age := item.AgeHours(now); age >= 0 {
		recencyBonus = math.Round(20 * math.Exp(-0.18*age))
	}

	regimeBonus := 0.0
	if riskOffRegime && containsAny(lower, []string{"sanction", "escalat", "inflation", "sell-off", "default"}) {
		regimeBonus = 5
	}

	personalBoost := 0.0
	if item.PersonEvent != nil {
		personalBoost = item.PersonEvent.Impact - 55
		if personalBoost < 0 {
			personalBoost = 0
		}
		if personalBoost > 20 {
			personalBoost = 20
		}
	}

	return models.Clip100(50 + entityMatch + float64(topicHits)*10 + recencyBonus + regimeBonus + personalBoost)
}

// scoreQuality implements:
// round(100 * tier_weight * recency_decay * (1 - health_penalty)),
// recency_decay = max(0.35, min(1, exp(-λ*age_hours))) with λ scaled by tier.
func scoreQuality(item *models.NewsItem, now time.Time) float64 {
	tier := domainTier(item.SourceDomain)
	decay := 1.0
	if age := item.AgeHours(now); age >= 0 {
		decay = math.Exp(-qualityLambda * lambdaAttenuation(tier) * age)
	}
	if decay < 0.35 {
		decay = 0.35
	}
	if decay > 1 {
		decay = 1
	}
	healthPenalty := 0.0
	if item.Title == "" || item.URL == "" {
		healthPenalty = 0.5
	} else if item.PublishedAt == nil {
		healthPenalty = 0.15
	}
	return math.Round(100 * tierWeight(tier) * decay * (1 - healthPenalty))
}

// RankWeights is a normalized scoring profile.
type RankWeights struct {
	Relevance float64 `json:"relevance"`
	Quality   float64 `json:"quality"`
	Impact    float64 `json:"impact"`
	Scope     float64 `json:"scope"`
}

var rankProfiles = map[string]RankWeights{
	"default":         {Relevance: 0.45, Quality: 0.30, Impact: 0.15, Scope: 0.10},
	"risk_off":        {Relevance: 0.40, Quality: 0.25, Impact: 0.20, Scope: 0.15},
	"high_volatility": {Relevance: 0.35, Quality: 0.25, Impact: 0.25, Scope: 0.15},
}

// VIX thresholds for profile auto-selection.
const (
	vixRiskOff = 22.0
	vixHighVol = 30.0
)

// PickProfile returns the configured profile, or a VIX-driven one when
// auto selection is on.
func PickProfile(configured string, auto bool, vix float64) RankWeights {
	name := configured
	if auto {
		switch {
		case vix >= vixHighVol:
			name = "high_volatility"
		case vix >= vixRiskOff:
			name = "risk_off"
		}
	}
	w, ok := rankProfiles[name]
	if !ok {
		w = rankProfiles["default"]
	}
	total := w.Relevance + w.Quality + w.Impact + w.Scope
	return RankWeights{
		Relevance: w.Relevance / total,
		Quality:   w.Quality / total,
		Impact:    w.Impact / total,
		Scope:     w.Scope / total,
	}
}

// finalRankScore fuses the per-item signals under a profile.
func finalRankScore(item *models.NewsItem, w RankWeights) float64 {
	personImpact := 0.0
	if item.PersonEvent != nil {
		personImpact = item.PersonEvent.Impact
	}
	impact := math.Max(personImpact, item.MaxSectorImpact)
	return w.Relevance*item.RelevanceScore + w.Quality*item.QualityScore +
		w.Impact*impact + w.Scope*item.ScopeScore
}

// annotateItem applies the full tagging and scoring pass to one item.
func annotateItem(item *models.NewsItem, wl Watchlist, now time.Time, riskOff bool, w RankWeights) {
	annotate(item, wl, now, riskOff, w, true)
}

// annotate is annotateItem with the person-tagging sub-stage optional,
// so the engine can shed it when its wall-clock budget runs out.
func annotate(item *models.NewsItem, wl Watchlist, now time.Time, riskOff bool, w RankWeights, withPerson bool) {
	item.CanonicalURL = CanonicalizeURL(item.URL)
	item.Entities = matchEntities(item.Title, wl)
	item.EventType = classifyEventType(item.Title)
	item.PersonEvent = nil
	if withPerson {
		item.PersonEvent = matchPerson(item.Title)
	}
	item.Countries = matchCountries(item.Title, item.Category)
	item.Scope, item.ScopeScore = classifyScope(item.Title, item.EventType, item.Entities)
	item.SectorImpacts = matchSectorImpacts(item.Title)
	item.MaxSectorImpact = 0
	for _, s := range item.SectorImpacts {
		if s.ImpactScore > item.MaxSectorImpact {
			item.MaxSectorImpact = s.ImpactScore
		}
	}
	if item.PersonEvent != nil {
		item.Tags = appendUnique(item.Tags, "PERSONAL", item.PersonEvent.Group)
		item.ImpactChannel = item.PersonEvent.ImpactChannels
		item.AssetClassBias = item.PersonEvent.BiasLabels
		switch item.PersonEvent.Stance {
		case models.StanceHawkish, models.StanceRiskEscalate:
			item.ExpectedDir = "DOWN"
		case models.StanceDovish, models.StanceRiskDeescalate:
			item.ExpectedDir = "UP"
		}
	}
	item.RelevanceScore = scoreRelevance(item, now, riskOff)
	item.QualityScore = scoreQuality(item, now)
	item.ImpactPotential = computeImpactPotential(item)
	item.FinalRankScore = finalRankScore(item, w)
}

// computeImpactPotential blends person and sector impact with scope.
func computeImpactPotential(item *models.NewsItem) float64 {
	personImpact := 0.0
	if item.PersonEvent != nil {
		personImpact = item.PersonEvent.Impact
	}
	base := math.Max(personImpact, item.MaxSectorImpact)
	return models.Clip100(0.8*base + 0.2*item.ScopeScore)
}

func appendUnique(tags []string, add ...string) []string {
	for _, a := range add {
		if a == "" {
			continue
		}
		found := false
		for _, t := range tags {
			if t == a {
				found = true
				break
			}
		}
		if !found {
			tags = append(tags, a)
		}
	}
	return tags
}

// sortRanked orders items deterministically by (rank desc, quality
// desc, title asc) so merges are stable across runs.
func sortRanked(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].FinalRankScore != items[j].FinalRankScore {
			return items[i].FinalRankScore > items[j].FinalRankScore
		}
		if items[i].QualityScore != items[j].QualityScore {
			return items[i].QualityScore > items[j].QualityScore
		}
		return items[i].Title < items[j].Title
	})
}

// applyAgeMix ensures long-window results keep minOld items older than
// minAgeDays in the final top-k, replacing the tail when needed.
func applyAgeMix(items []models.NewsItem, now time.Time, minOld int, minAgeDays float64, topK int) []models.NewsItem {
	if len(items) <= topK {
		return items
	}
	head := items[:topK]
	oldCount := 0
	for i := range head {
		if head[i].AgeHours(now) >= minAgeDays*24 {
			oldCount++
		}
	}
	if oldCount >= minOld {
		return head
	}
	// Pull older items from the tail, replacing the weakest recent ones.
	out := make([]models.NewsItem, len(head))
	copy(out, head)
	for i := len(items) - 1; i >= topK && oldCount < minOld; i-- {
		if items[i].AgeHours(now) < minAgeDays*24 {
			continue
		}
		for j := len(out) - 1; j >= 0; j-- {
			if out[j].AgeHours(now) < minAgeDays*24 {
				out[j] = items[i]
				oldCount++
				break
			}
		}
	}
	return out
}
