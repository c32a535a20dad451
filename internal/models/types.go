// Package models holds the semantic types shared across the intelrun
// pipeline: news items, clusters, quotes, bars, forecasts and the
// enums that constrain them. All score fields live on a uniform 0..100
// scale unless stated otherwise.
package models

import "time"

// Direction is a signed market direction used by clusters and forecasts.
type Direction int

const (
	DirDown    Direction = -1
	DirNeutral Direction = 0
	DirUp      Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "UP"
	case DirDown:
		return "DOWN"
	default:
		return "NEUTRAL"
	}
}

// ParseDirection maps the wire labels back to a Direction.
func ParseDirection(s string) Direction {
	switch s {
	case "UP":
		return DirUp
	case "DOWN":
		return DirDown
	default:
		return DirNeutral
	}
}

// SourceTier buckets source reputation. Tier scales both quality weight
// and recency decay in scoring.
type SourceTier string

const (
	TierPrimary SourceTier = "primary"
	Tier1       SourceTier = "tier1"
	Tier2       SourceTier = "tier2"
	TierSocial  SourceTier = "social"
)

// NewsScope is the geographic/economic breadth of a news item.
type NewsScope string

const (
	ScopeMacro       NewsScope = "MACRO"
	ScopeGeopolitics NewsScope = "GEOPOLITICS"
	ScopeCompany     NewsScope = "COMPANY"
	ScopeSector      NewsScope = "SECTOR"
	ScopeSystemic    NewsScope = "SYSTEMIC"
	ScopeUnknown     NewsScope = "UNKNOWN"
)

// Stance classifies a known actor's statement.
type Stance string

const (
	StanceHawkish        Stance = "HAWKISH"
	StanceDovish         Stance = "DOVISH"
	StanceRiskEscalate   Stance = "RISK_ESCALATE"
	StanceRiskDeescalate Stance = "RISK_DEESCALATE"
	StanceNeutral        Stance = "NEUTRAL"
	StanceUnknown        Stance = "UNKNOWN"
)

// PersonEvent is attached to a NewsItem when a known actor is
// identified in the title.
type PersonEvent struct {
	Person         string   `json:"person"`
	Group          string   `json:"group,omitempty"`
	Stance         Stance   `json:"stance"`
	StatementType  string   `json:"statement_type,omitempty"`
	ImpactChannels []string `json:"impact_channels,omitempty"`
	BiasLabels     []string `json:"bias_labels,omitempty"`
	Impact         float64  `json:"impact"`
	Confidence     float64  `json:"confidence"`
}

// SectorImpact is one sector-level directional read on a news item.
type SectorImpact struct {
	Sector      string  `json:"sector"`
	Direction   string  `json:"direction"` // UP, DOWN, NEUTRAL, MIXED
	Confidence  float64 `json:"confidence"`
	Rationale   string  `json:"rationale,omitempty"`
	ImpactScore float64 `json:"impact_score"`
}

// NewsItem is a normalized, scored news article. Instances are owned by
// the news-engine call that produced them until persisted as clusters.
type NewsItem struct {
	Title            string         `json:"title"`
	URL              string         `json:"url"`
	CanonicalURL     string         `json:"canonical_url"`
	SourceDomain     string         `json:"source_domain"`
	Description      string         `json:"description,omitempty"`
	ContentText      string         `json:"content_text,omitempty"`
	PublishedAt      *time.Time     `json:"published_at_utc,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Category         string         `json:"category,omitempty"`
	Entities         []string       `json:"entities,omitempty"`
	EventType        string         `json:"event_type,omitempty"`
	ImpactChannel    []string       `json:"impact_channel,omitempty"`
	AssetClassBias   []string       `json:"asset_class_bias,omitempty"`
	ExpectedDir      string         `json:"expected_direction_short_term,omitempty"`
	RelevanceScore   float64        `json:"relevance_score"`
	QualityScore     float64        `json:"quality_score"`
	DedupClusterID   string         `json:"dedup_cluster_id,omitempty"`
	OtherSources     []string       `json:"other_sources,omitempty"` // max 3 domains
	ShortSummary     string         `json:"short_summary,omitempty"`
	ImpactPotential  float64        `json:"impact_potential"`
	PersonEvent      *PersonEvent   `json:"person_event,omitempty"`
	Scope            NewsScope      `json:"news_scope,omitempty"`
	ScopeScore       float64        `json:"scope_score"`
	SectorImpacts    []SectorImpact `json:"sector_impacts,omitempty"`
	MaxSectorImpact  float64        `json:"max_sector_impact"`
	Countries        []string       `json:"countries,omitempty"`
	FinalRankScore   float64        `json:"final_rank_score"`
	MissingFields    []string       `json:"missing_fields,omitempty"`
}

// AgeHours returns the item age relative to now, or -1 when the
// publish time is unknown.
func (n *NewsItem) AgeHours(now time.Time) float64 {
	if n.PublishedAt == nil {
		return -1
	}
	return now.Sub(*n.PublishedAt).Hours()
}

// EventCategory buckets event feed items.
type EventCategory string

const (
	CatRegional EventCategory = "REGIONAL"
	CatCompany  EventCategory = "COMPANY"
	CatSector   EventCategory = "SECTOR"
	CatPersonal EventCategory = "PERSONAL"
)

// EventItem is a clustered, enriched news item for the event feed.
type EventItem struct {
	Title          string        `json:"title"`
	URL            string        `json:"url"`
	SourceDomain   string        `json:"source_domain"`
	PublishedAt    *time.Time    `json:"published_at_utc,omitempty"`
	Category       EventCategory `json:"category"`
	Entities       []string      `json:"entities,omitempty"`
	ImpactedAssets []string      `json:"impacted_assets,omitempty"`
	MarketReaction string        `json:"market_reaction,omitempty"`
	Confidence     float64       `json:"confidence"`
	Score          float64       `json:"score"`
}

// EventFeed is the per-category bucketed view of EventItems.
type EventFeed struct {
	Categories map[EventCategory][]EventItem `json:"categories"`
	Total      int                           `json:"total"`
}

// TargetRelevance maps an asset or sector pseudo-target to a 0..1 weight.
type TargetRelevance struct {
	Target    string  `json:"target"`
	Relevance float64 `json:"relevance"`
}

// EventCluster is the persisted form of a deduplicated news item.
type EventCluster struct {
	EventID     string            `json:"event_id"`
	ClusterID   string            `json:"cluster_id"`
	TS          time.Time         `json:"ts_utc"`
	Source      string            `json:"source"`
	SourceTier  SourceTier        `json:"source_tier"`
	Headline    string            `json:"headline"`
	Body        string            `json:"body,omitempty"`
	URL         string            `json:"url,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	DedupHash   string            `json:"dedup_hash"`
	Credibility float64           `json:"credibility"` // 0..1
	Severity    float64           `json:"severity"`    // 0..1
	Impact      float64           `json:"impact"`      // 0..100
	EventType   string            `json:"event_type,omitempty"`
	Category    string            `json:"category,omitempty"`
	Direction   Direction         `json:"direction"`
	Targets     []TargetRelevance `json:"targets,omitempty"`
}

// PriceBar is a single OHLCV bar keyed by (asset, ts).
type PriceBar struct {
	Asset  string    `json:"asset" db:"asset"`
	TS     time.Time `json:"ts_utc" db:"ts_utc"`
	Open   float64   `json:"open" db:"open"`
	High   float64   `json:"high" db:"high"`
	Low    float64   `json:"low" db:"low"`
	Close  float64   `json:"close" db:"close"`
	Volume float64   `json:"volume" db:"volume"`
}

// Forecast targets and timeframes.
const (
	TargetBTC     = "BTC"
	TargetETH     = "ETH"
	TargetAlts    = "ALTS"
	TargetStables = "STABLES"
)

// Targets lists the four primary forecast targets in canonical order.
var Targets = []string{TargetBTC, TargetETH, TargetAlts, TargetStables}

// Timeframes lists the forecast horizons in canonical order.
var Timeframes = []string{"15m", "1h", "3h", "6h"}

// TimeframeMinutes maps a tf label to its horizon in minutes.
var TimeframeMinutes = map[string]int{
	"15m": 15,
	"1h":  60,
	"3h":  180,
	"6h":  360,
}

// ForecastDriver is one explainable contribution to a forecast score.
type ForecastDriver struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Forecast is immutable once written; its score row is appended exactly
// once after expiry.
type Forecast struct {
	ID            string           `json:"id"`
	TS            time.Time        `json:"ts_utc"`
	TF            string           `json:"tf"`
	Target        string           `json:"target"`
	Direction     Direction        `json:"direction"`
	Confidence    float64          `json:"confidence"` // 0..1
	RawScore      float64          `json:"raw_score"`  // -1..1
	ExpiresAt     time.Time        `json:"expires_at_utc"`
	MarketDrivers []ForecastDriver `json:"market_drivers,omitempty"`
	NewsDrivers   []ForecastDriver `json:"news_drivers,omitempty"`
	Rationale     string           `json:"rationale_text,omitempty"`
}

// ForecastScore is the realized outcome of an expired forecast.
type ForecastScore struct {
	ForecastID     string    `json:"forecast_id"`
	RealizedReturn float64   `json:"realized_return"`
	Hit            int       `json:"hit"` // 0 or 1
	Brier          float64   `json:"brier_component"`
	ScoredAt       time.Time `json:"scored_at_utc"`
}

// EventImpact is the realized post-event return for one (cluster, target, tf).
type EventImpact struct {
	ClusterID   string    `json:"cluster_id"`
	Target      string    `json:"target"`
	TF          string    `json:"tf"`
	RealizedRet *float64  `json:"realized_ret,omitempty"`
	RealizedZ   *float64  `json:"realized_z,omitempty"`
	ComputedAt  time.Time `json:"computed_at"`
}

// QuoteMeta carries quote provenance.
type QuoteMeta struct {
	Source       string  `json:"source"`
	IsFallback   bool    `json:"is_fallback"`
	Freshness    float64 `json:"freshness_seconds"`
	DegradedMode bool    `json:"degraded_mode"`
}

// Quote is a resolved price with provenance metadata.
type Quote struct {
	Price     float64   `json:"price"`
	ChangePct *float64  `json:"change_pct,omitempty"`
	TS        time.Time `json:"ts_utc"`
	Currency  string    `json:"currency,omitempty"`
	Meta      QuoteMeta `json:"meta"`
}

// Clip100 clamps v to the 0..100 scale used by all news scores.
func Clip100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Clip1 clamps v to [-1, 1].
func Clip1(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
