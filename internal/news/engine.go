package news

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/providers"
)

// Searcher is the primary news-search provider contract.
type Searcher interface {
	SearchNews(ctx context.Context, query, timespan string, maxRecords int) providers.Result[[]models.NewsItem]
}

// CompanyNewsProvider supplies per-ticker finance news for the extras
// ladder.
type CompanyNewsProvider interface {
	CompanyNews(ctx context.Context, ticker string, from, to time.Time) providers.Result[[]models.NewsItem]
}

// FeedFetcher pulls syndication feeds for the extras ladder.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) providers.Result[[]models.NewsItem]
}

// Options carries the engine's tunables; zero values fall back to the
// documented defaults.
type Options struct {
	MaxQueriesPerSpan int
	MinNews           int
	MinNewsLong       int
	ExtraMaxTickers   int
	ExtraMaxFeeds     int
	DedupSimilarity   float64
	DomainSoftCap     int
	NewsBudget        time.Duration
	EventFeedBudget   time.Duration
	PersonalBudget    time.Duration
	RankProfile       string
	RankProfileAuto   bool
	ExtraFeedURLs     []string
}

func (o *Options) applyDefaults() {
	if o.MaxQueriesPerSpan <= 0 {
		o.MaxQueriesPerSpan = 4
	}
	if o.MinNews <= 0 {
		o.MinNews = 12
	}
	if o.MinNewsLong <= 0 {
		o.MinNewsLong = 6
	}
	if o.ExtraMaxTickers <= 0 {
		o.ExtraMaxTickers = 4
	}
	if o.ExtraMaxFeeds <= 0 {
		o.ExtraMaxFeeds = 3
	}
	if o.DedupSimilarity <= 0 {
		o.DedupSimilarity = 0.85
	}
	if o.DomainSoftCap <= 0 {
		o.DomainSoftCap = 5
	}
	if o.NewsBudget <= 0 {
		o.NewsBudget = 18 * time.Second
	}
	if o.EventFeedBudget <= 0 {
		o.EventFeedBudget = 12 * time.Second
	}
	if o.PersonalBudget <= 0 {
		o.PersonalBudget = 800 * time.Millisecond
	}
	if o.RankProfile == "" {
		o.RankProfile = "default"
	}
}

// Engine orchestrates fetch, dedup, tagging, scoring and ranking.
type Engine struct {
	searcher Searcher
	company  CompanyNewsProvider
	feeds    FeedFetcher
	opts     Options
	breaker  *gobreaker.CircuitBreaker
	now      func() time.Time
	log      zerolog.Logger
}

var errRateLimited = errors.New("primary news provider rate limited")

// NewEngine wires the engine. company and feeds may be nil, in which
// case the extras ladder is skipped.
func NewEngine(searcher Searcher, company CompanyNewsProvider, feeds FeedFetcher, opts Options, log zerolog.Logger) *Engine {
	opts.applyDefaults()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "news-primary",
		Timeout: 60 * time.Second, // rate-limit circuit-open window
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})
	return &Engine{
		searcher: searcher,
		company:  company,
		feeds:    feeds,
		opts:     opts,
		breaker:  cb,
		now:      time.Now,
		log:      log.With().Str("component", "news_engine").Logger(),
	}
}

// FetchResult is the outcome of one FetchNews call.
type FetchResult struct {
	Items        []models.NewsItem
	Notes        []string
	UsedTimespan string
	RateLimited  bool
}

// FetchNews produces the ranked, deduplicated item list. It always
// returns within the budget and never fails: weak results carry a
// "news_data_weak" note instead.
func (e *Engine) FetchNews(ctx context.Context, query, timespan string, maxRecords int, wl Watchlist, vix float64) FetchResult {
	ctx, cancel := context.WithTimeout(ctx, e.opts.NewsBudget)
	defer cancel()

	now := e.now()
	if query == "" {
		query = DefaultBaseQuery
	}
	if wl.IsEmpty() {
		wl = DefaultWatchlist()
	}
	if maxRecords <= 0 {
		maxRecords = 50
	}
	weights := PickProfile(e.opts.RankProfile, e.opts.RankProfileAuto, vix)
	riskOff := vix >= vixRiskOff

	var (
		notes       []string
		rateLimited bool
		result      []models.NewsItem
		used        string
	)

	minNeeded := e.opts.MinNews
	if IsLongSpan(timespan) {
		minNeeded = e.opts.MinNewsLong
	}

	// The person sub-stage carries its own wall-clock budget; once it
	// elapses the remaining items are annotated without person tagging.
	personalDeadline := now.Add(e.opts.PersonalBudget)
	personalShed := false
	annotateAll := func(items []models.NewsItem) {
		for i := range items {
			withPerson := !personalShed
			if withPerson && e.now().After(personalDeadline) {
				personalShed = true
				withPerson = false
				notes = append(notes, "personal_budget_exceeded")
			}
			annotate(&items[i], wl, now, riskOff, weights, withPerson)
		}
	}

	for _, span := range ladderFrom(timespan) {
		if ctx.Err() != nil {
			notes = append(notes, "news_budget_exceeded")
			break
		}
		raw, spanNotes, spanLimited := e.runQueries(ctx, query, span, maxRecords, wl)
		notes = append(notes, spanNotes...)
		rateLimited = rateLimited || spanLimited

		annotateAll(raw)
		deduped := Dedup(raw, e.opts.DedupSimilarity)
		sortRanked(deduped)
		deduped = applyDomainSoftCap(deduped, e.opts.DomainSoftCap)

		result, used = deduped, span
		if len(deduped) >= minNeeded {
			break
		}
	}

	// Extras ladder: company news then syndication feeds.
	if len(result) < minNeeded && !rateLimited && ctx.Err() == nil {
		extras, extraNotes := e.fetchExtras(ctx, wl)
		notes = append(notes, extraNotes...)
		if len(extras) > 0 {
			annotateAll(extras)
			merged := append(result, extras...)
			merged = Dedup(merged, e.opts.DedupSimilarity)
			sortRanked(merged)
			result = applyDomainSoftCap(merged, e.opts.DomainSoftCap)
		}
	}

	if IsLongSpan(timespan) && (timespan == "7d" || timespan == "30d") {
		result = applyAgeMix(result, now, 2, 2, maxRecords)
	}
	if len(result) > maxRecords {
		result = result[:maxRecords]
	}
	if len(result) < minNeeded {
		notes = append(notes, "news_data_weak")
	}
	return FetchResult{Items: result, Notes: notes, UsedTimespan: used, RateLimited: rateLimited}
}

// runQueries fans the base+category queries out to the primary
// provider, merging whatever arrives before the budget.
func (e *Engine) runQueries(ctx context.Context, base, span string, maxRecords int, wl Watchlist) ([]models.NewsItem, []string, bool) {
	if e.searcher == nil {
		return nil, []string{"gdelt_disabled"}, false
	}
	queries := BuildQueries(base, wl)
	if len(queries) > e.opts.MaxQueriesPerSpan {
		queries = queries[:e.opts.MaxQueriesPerSpan]
	}

	type qResult struct {
		res  providers.Result[[]models.NewsItem]
		open bool
	}
	results := make([]qResult, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(idx int, query string) {
			defer wg.Done()
			out, err := e.breaker.Execute(func() (interface{}, error) {
				res := e.searcher.SearchNews(ctx, query, span, maxRecords)
				if res.Kind == providers.ErrRateLimited {
					return res, errRateLimited
				}
				return res, nil
			})
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				results[idx] = qResult{open: true}
				return
			}
			results[idx] = qResult{res: out.(providers.Result[[]models.NewsItem])}
		}(i, q)
	}
	wg.Wait()

	var (
		merged      []models.NewsItem
		notes       []string
		rateLimited bool
	)
	for _, r := range results {
		if r.open {
			rateLimited = true
			notes = append(notes, "gdelt_error:rate_limited:circuit_open")
			continue
		}
		if !r.res.OK {
			if r.res.Kind == providers.ErrRateLimited {
				rateLimited = true
			}
			if note := r.res.Note("gdelt"); note != "" {
				notes = append(notes, note)
			}
			continue
		}
		merged = append(merged, r.res.Data...)
	}
	return merged, notes, rateLimited
}

// fetchExtras pulls company news for the leading tickers, then the
// configured syndication feeds.
func (e *Engine) fetchExtras(ctx context.Context, wl Watchlist) ([]models.NewsItem, []string) {
	var (
		extras []models.NewsItem
		notes  []string
	)
	now := e.now()

	if e.company != nil {
		tickers := wl.Tickers()
		if len(tickers) > e.opts.ExtraMaxTickers {
			tickers = tickers[:e.opts.ExtraMaxTickers]
		}
		for _, t := range tickers {
			if ctx.Err() != nil {
				notes = append(notes, "news_extras_budget_exceeded")
				return extras, notes
			}
			res := e.company.CompanyNews(ctx, t, now.Add(-48*time.Hour), now)
			if !res.OK {
				if note := res.Note("finnhub"); note != "" {
					notes = append(notes, note)
				}
				continue
			}
			extras = append(extras, res.Data...)
		}
	}

	if e.feeds != nil {
		urls := e.opts.ExtraFeedURLs
		if len(urls) > e.opts.ExtraMaxFeeds {
			urls = urls[:e.opts.ExtraMaxFeeds]
		}
		for _, u := range urls {
			if ctx.Err() != nil {
				notes = append(notes, "news_extras_budget_exceeded")
				break
			}
			res := e.feeds.Fetch(ctx, u)
			if !res.OK {
				if note := res.Note("feeds"); note != "" {
					notes = append(notes, note)
				}
				continue
			}
			extras = append(extras, res.Data...)
		}
	}
	return extras, notes
}
