// Package pipeline wires providers, the news engine, the store and the
// forecasting engine into the end-to-end /intel/run flow, producing
// content-addressed block hashes for incremental responses.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/config"
	"github.com/sawpanic/intelrun/internal/eventstudy"
	"github.com/sawpanic/intelrun/internal/forecast"
	"github.com/sawpanic/intelrun/internal/metrics"
	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/news"
	"github.com/sawpanic/intelrun/internal/quotes"
	"github.com/sawpanic/intelrun/internal/store"
)

// Request is the /intel/run input.
type Request struct {
	Timeframe    string          `json:"timeframe"`
	NewsTimespan string          `json:"newsTimespan"`
	Watchlist    *news.Watchlist `json:"watchlist,omitempty"`
}

// key identifies a request-parameter combination for changed-block
// tracking.
func (r *Request) key() string {
	return r.Timeframe + "|" + r.NewsTimespan
}

// Response is the assembled intelligence payload.
type Response struct {
	GeneratedAt time.Time `json:"generated_at_utc"`
	Timeframe   string    `json:"timeframe"`

	Market            *models.MarketSnapshot `json:"market,omitempty"`
	Leaders           []Mover                `json:"leaders,omitempty"`
	TopNews           []models.NewsItem      `json:"top_news,omitempty"`
	EventFeed         *models.EventFeed      `json:"eventfeed,omitempty"`
	Flow              *FlowBlock             `json:"flow,omitempty"`
	Risk              *RiskBlock             `json:"risk,omitempty"`
	Deriv             *DerivativesBlock      `json:"derivatives,omitempty"`
	Forecasts         []models.Forecast      `json:"forecast,omitempty"`
	DailyEquityMovers []Mover                `json:"daily_equity_movers,omitempty"`

	UsedTimespan  string            `json:"used_timespan,omitempty"`
	Degraded      bool              `json:"degraded_mode"`
	Debug         DebugBlock        `json:"debug"`
	BlockHashes   map[string]string `json:"block_hashes"`
	ChangedBlocks []string          `json:"changed_blocks"`
	ETag          string            `json:"etag"`
}

// Mover is one ranked price move.
type Mover struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Source    string  `json:"source,omitempty"`
}

// FlowBlock summarizes flow and dominance state.
type FlowBlock struct {
	FlowScore    float64  `json:"flow_score"`
	BTCDom       float64  `json:"btc_dom"`
	StableDom    float64  `json:"stable_dom"`
	AltcoinTotal *float64 `json:"altcoin_total_ex_btc,omitempty"`
}

// RiskBlock carries the regime read.
type RiskBlock struct {
	VIX          float64  `json:"vix"`
	FearGreed    float64  `json:"fear_greed"`
	MacroRiskOff bool     `json:"macro_risk_off"`
	Flags        []string `json:"flags,omitempty"`
}

// DerivativesBlock carries funding and open-interest state.
type DerivativesBlock struct {
	FundingZ float64 `json:"funding_z"`
	OIDelta  float64 `json:"oi_delta"`
}

// DebugBlock is the always-populated failure surface.
type DebugBlock struct {
	Notes       []string `json:"notes,omitempty"`
	DataMissing []string `json:"data_missing,omitempty"`
}

// SnapshotSource produces the base market snapshot before router
// patching.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (models.MarketSnapshot, []string)
}

// Orchestrator runs the end-to-end pipeline.
type Orchestrator struct {
	cfg      config.Config
	snapshot SnapshotSource
	newsEng  *news.Engine
	router   *quotes.Router
	store    *store.Store
	forecast *forecast.Engine
	impacts  *eventstudy.ImpactJob
	now      func() time.Time
	log      zerolog.Logger

	mu         sync.Mutex
	lastHashes map[string]map[string]string // request key → block hashes
	lastIntel  Intel
}

// Intel is the retained output of the most recent pipeline run. The
// portfolio and debate handlers read it between runs instead of
// refetching news.
type Intel struct {
	GeneratedAt time.Time
	Items       []models.NewsItem
	Forecasts   []models.Forecast
	Snapshot    *models.MarketSnapshot
}

// LatestIntel returns the last completed run's output; the zero value
// means no run has completed yet.
func (o *Orchestrator) LatestIntel() Intel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastIntel
}

func NewOrchestrator(cfg config.Config, snap SnapshotSource, eng *news.Engine, router *quotes.Router,
	st *store.Store, fc *forecast.Engine, impacts *eventstudy.ImpactJob, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		snapshot:   snap,
		newsEng:    eng,
		router:     router,
		store:      st,
		forecast:   fc,
		impacts:    impacts,
		now:        time.Now,
		log:        log.With().Str("component", "pipeline").Logger(),
		lastHashes: make(map[string]map[string]string),
	}
}

// movers orders symbols by |24h change| using the quote router.
func (o *Orchestrator) movers(ctx context.Context, symbols []string, top int) []Mover {
	var out []Mover
	for _, s := range symbols {
		q, ok := o.router.GetQuote(ctx, s)
		if !ok || q.Price <= 0 {
			continue
		}
		m := Mover{Symbol: s, Price: q.Price, Source: q.Meta.Source}
		if q.ChangePct != nil {
			m.ChangePct = *q.ChangePct
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ChangePct, out[j].ChangePct
		if a < 0 {
			a = -a
		}
		if b < 0 {
			b = -b
		}
		if a != b {
			return a > b
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) > top {
		out = out[:top]
	}
	return out
}

var cryptoLeaderSymbols = []string{"BTC", "ETH", "SOL", "BNB", "XRP", "ADA"}
var equityMoverSymbols = []string{"NVDA", "AAPL", "MSFT", "TSLA", "AMZN", "META", "GOOGL"}

// Run executes all stages and assembles the response. Provider and
// storage failures degrade into debug notes; Run itself fails only on
// context cancellation.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Response, error) {
	now := o.now()
	resp := &Response{
		GeneratedAt: now,
		Timeframe:   req.Timeframe,
		BlockHashes: make(map[string]string),
	}

	// Stage: market snapshot + router patching.
	stage := o.stageTimer("market")
	snap, snapNotes := o.snapshot.Snapshot(ctx)
	o.router.PatchSnapshot(ctx, &snap)
	if snap.VIX >= 30 {
		snap.MacroRiskOff = true
	}
	resp.Market = &snap
	resp.Debug.Notes = append(resp.Debug.Notes, snapNotes...)
	resp.Debug.DataMissing = append(resp.Debug.DataMissing, snap.Missing...)
	stage()

	// Stage: news fetch + event feed.
	stage = o.stageTimer("news")
	wl := news.DefaultWatchlist()
	if req.Watchlist != nil && !req.Watchlist.IsEmpty() {
		wl = *req.Watchlist
	}
	fetched := o.newsEng.FetchNews(ctx, "", req.NewsTimespan, 50, wl, snap.VIX)
	resp.TopNews = fetched.Items
	resp.UsedTimespan = fetched.UsedTimespan
	resp.Debug.Notes = append(resp.Debug.Notes, fetched.Notes...)

	feed, feedNotes := o.newsEng.BuildEventFeed(ctx, req.NewsTimespan, wl, fetched.Items)
	resp.EventFeed = &feed
	resp.Debug.Notes = append(resp.Debug.Notes, feedNotes...)
	stage()

	// Stage: persist events, compute realized impacts.
	stage = o.stageTimer("events")
	resp.Debug.Notes = append(resp.Debug.Notes, o.ingestNews(ctx, fetched.Items, now)...)
	clusters, err := o.store.ListClustersSince(ctx, now.AddDate(0, 0, -o.cfg.RetentionDays))
	if err != nil {
		o.log.Warn().Err(err).Msg("cluster list failed")
		resp.Debug.Notes = append(resp.Debug.Notes, "store_error:list_clusters")
	}
	if o.impacts != nil && len(clusters) > 0 {
		o.impacts.Run(ctx, clusters)
	}
	stage()

	// Stage: forecasts.
	stage = o.stageTimer("forecast")
	if o.forecast != nil {
		if _, err := o.forecast.ScoreExpired(ctx); err != nil {
			resp.Debug.Notes = append(resp.Debug.Notes, "store_error:score_expired")
		}
		resp.Forecasts = o.forecast.RunAll(ctx, &snap, clusters)
	}
	stage()

	// Stage: movers and derived blocks.
	stage = o.stageTimer("movers")
	resp.Leaders = o.movers(ctx, cryptoLeaderSymbols, 5)
	resp.DailyEquityMovers = o.movers(ctx, equityMoverSymbols, 5)
	stage()

	resp.Flow = &FlowBlock{
		FlowScore: snap.FlowScore,
		BTCDom:    snap.BTCDom,
		StableDom: snap.StableDom,
	}
	if alt, ok := snap.AltcoinTotalExBTC(); ok {
		resp.Flow.AltcoinTotal = &alt
	}
	resp.Risk = &RiskBlock{
		VIX:          snap.VIX,
		FearGreed:    snap.FearGreed,
		MacroRiskOff: snap.MacroRiskOff,
		Flags:        riskFlags(&snap),
	}
	resp.Deriv = &DerivativesBlock{FundingZ: snap.FundingZ, OIDelta: snap.OIDelta}

	resp.Degraded = o.detectDegraded(resp)
	o.finalize(resp, req)

	o.mu.Lock()
	o.lastIntel = Intel{
		GeneratedAt: now,
		Items:       fetched.Items,
		Forecasts:   resp.Forecasts,
		Snapshot:    &snap,
	}
	o.mu.Unlock()
	return resp, nil
}

func riskFlags(snap *models.MarketSnapshot) []string {
	var flags []string
	if snap.VIX >= 30 {
		flags = append(flags, "HIGH_VOLATILITY")
	} else if snap.VIX >= 22 {
		flags = append(flags, "RISK_OFF")
	}
	if snap.MacroRiskOff {
		flags = append(flags, "MACRO_RISK_OFF")
	}
	if snap.FearGreed > 0 && snap.FearGreed <= 20 {
		flags = append(flags, "EXTREME_FEAR")
	}
	return flags
}

func (o *Orchestrator) detectDegraded(resp *Response) bool {
	for _, n := range resp.Debug.Notes {
		if n == "news_data_weak" {
			continue
		}
		return true
	}
	return len(resp.Debug.DataMissing) > 0
}

// finalize hashes every block, computes the etag and diffs against the
// previous response for the same request parameters.
func (o *Orchestrator) finalize(resp *Response, req Request) {
	sort.Strings(resp.Debug.DataMissing)
	resp.BlockHashes["market"] = models.HashBlock(resp.Market)
	resp.BlockHashes["leaders"] = models.HashBlock(resp.Leaders)
	resp.BlockHashes["top_news"] = models.HashBlock(resp.TopNews)
	resp.BlockHashes["eventfeed"] = models.HashBlock(resp.EventFeed)
	resp.BlockHashes["flow"] = models.HashBlock(resp.Flow)
	resp.BlockHashes["risk"] = models.HashBlock(resp.Risk)
	resp.BlockHashes["derivatives"] = models.HashBlock(resp.Deriv)
	resp.BlockHashes["forecast"] = models.HashBlock(resp.Forecasts)
	resp.BlockHashes["daily_equity_movers"] = models.HashBlock(resp.DailyEquityMovers)
	resp.BlockHashes["debug"] = models.HashBlock(resp.Debug)
	resp.ETag = models.HashBlock(resp.BlockHashes)

	key := req.key()
	o.mu.Lock()
	prev := o.lastHashes[key]
	o.lastHashes[key] = resp.BlockHashes
	o.mu.Unlock()

	resp.ChangedBlocks = []string{}
	names := make([]string, 0, len(resp.BlockHashes))
	for name := range resp.BlockHashes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if prev == nil || prev[name] != resp.BlockHashes[name] {
			resp.ChangedBlocks = append(resp.ChangedBlocks, name)
		}
	}
}

func (o *Orchestrator) stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		metrics.PipelineStageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
