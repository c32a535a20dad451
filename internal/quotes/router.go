// Package quotes implements the resilient quote router: an ordered
// provider chain with per-provider token buckets, exponential backoff,
// a negative cache, symbol resolution and a last-known-good degraded
// mode. The router never returns an HTTP error to callers; the worst
// outcome is ok=false with kind all_failed.
package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sawpanic/intelrun/internal/metrics"
	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/providers"
)

// Provider is the abstract quote source the router iterates over.
type Provider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) providers.Result[models.Quote]
	// Search resolves a free-form symbol to a provider-native one;
	// ok=false when the provider cannot resolve it.
	Search(ctx context.Context, symbol string) (string, bool)
}

const (
	negativeCacheTTL  = 45 * time.Minute
	lastGoodTTL       = 2 * time.Minute
	searchCacheTTL    = 7 * 24 * time.Hour
	staleAfterSeconds = 6 * 3600
	backoffBase       = 10 * time.Second
	backoffMaxExp     = 5
	backoffCap        = 300 * time.Second
)

// providerState carries the mutable resilience state for one provider.
type providerState struct {
	provider     Provider
	enabled      bool
	bucket       *rate.Limiter
	backoffUntil time.Time
	backoffExp   int
	hits         int64
	failures     int64
	rateLimited  int64
}

type lastGoodEntry struct {
	quote    models.Quote
	storedAt time.Time
	// counted marks that this entry already contributed one fallback
	// hit, keeping fallback_hits bounded by provider_hits.
	counted bool
}

// Stats is the router's introspection surface, served by /quotes/debug
// and /health.
type Stats struct {
	ProviderHits  map[string]int64     `json:"provider_hits"`
	Failures      map[string]int64     `json:"failures"`
	RateLimited   map[string]int64     `json:"rate_limited"`
	BackoffUntil  map[string]time.Time `json:"backoff_until"`
	FallbackHits  int64                `json:"fallback_hits"`
	NegativeCache int                  `json:"negative_cache_entries"`
	TotalHits     int64                `json:"provider_hits_total"`
}

// Router resolves symbols through the provider chain.
type Router struct {
	mu        sync.Mutex
	order     []string
	states    map[string]*providerState
	negCache  map[string]time.Time     // provider|symbol -> expiry
	lastGood  map[string]lastGoodEntry // symbol -> quote
	searches  map[string]searchEntry   // provider|symbol -> resolved
	staticMap map[string]string
	fallbacks int64
	now       func() time.Time
	log       zerolog.Logger
}

type searchEntry struct {
	resolved string
	expires  time.Time
}

// BucketConfig sets a provider's token bucket as requests per minute.
type BucketConfig struct {
	Provider string
	PerMin   float64
	Burst    int
}

// DefaultBuckets matches the documented provider budgets.
func DefaultBuckets() []BucketConfig {
	return []BucketConfig{
		{Provider: "yahoo", PerMin: 60, Burst: 10},
		{Provider: "finnhub", PerMin: 60, Burst: 10},
		{Provider: "twelvedata", PerMin: 8, Burst: 2},
	}
}

// NewRouter builds a router over ordered providers with the given
// bucket configuration.
func NewRouter(ordered []Provider, buckets []BucketConfig, log zerolog.Logger) *Router {
	r := &Router{
		states:    make(map[string]*providerState, len(ordered)),
		negCache:  make(map[string]time.Time),
		lastGood:  make(map[string]lastGoodEntry),
		searches:  make(map[string]searchEntry),
		staticMap: defaultSymbolMap(),
		now:       time.Now,
		log:       log.With().Str("component", "quote_router").Logger(),
	}
	perMin := make(map[string]BucketConfig, len(buckets))
	for _, b := range buckets {
		perMin[b.Provider] = b
	}
	for _, p := range ordered {
		cfg, ok := perMin[p.Name()]
		if !ok {
			cfg = BucketConfig{PerMin: 60, Burst: 10}
		}
		r.order = append(r.order, p.Name())
		r.states[p.Name()] = &providerState{
			provider: p,
			enabled:  true,
			bucket:   rate.NewLimiter(rate.Limit(cfg.PerMin/60.0), cfg.Burst),
		}
	}
	return r
}

// SetEnabled toggles a provider without removing its state.
func (r *Router) SetEnabled(provider string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[provider]; ok {
		st.enabled = enabled
	}
}

// EnabledMap reports which providers are currently enabled.
func (r *Router) EnabledMap() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.states))
	for name, st := range r.states {
		out[name] = st.enabled
	}
	return out
}

// GetQuote resolves symbol through the provider chain. The second
// return is false only when every provider failed and no last-good
// entry exists.
func (r *Router) GetQuote(ctx context.Context, symbol string) (models.Quote, bool) {
	now := r.now()
	for _, name := range r.order {
		r.mu.Lock()
		st := r.states[name]
		if !st.enabled || now.Before(st.backoffUntil) {
			r.mu.Unlock()
			continue
		}
		if !st.bucket.Allow() {
			st.rateLimited++
			r.mu.Unlock()
			metrics.RouterRateLimited.WithLabelValues(name).Inc()
			continue
		}
		if exp, bad := r.negCache[name+"|"+symbol]; bad && now.Before(exp) {
			r.mu.Unlock()
			continue
		}
		r.mu.Unlock()

		resolved := r.resolve(ctx, st.provider, symbol)
		res := st.provider.GetQuote(ctx, resolved)

		r.mu.Lock()
		if res.OK {
			freshness := now.Sub(res.Data.TS).Seconds()
			if freshness < 0 {
				freshness = 0
			}
			if freshness <= staleAfterSeconds {
				st.hits++
				st.backoffExp = 0
				q := res.Data
				q.Meta.Source = name
				q.Meta.IsFallback = name != r.order[0]
				q.Meta.Freshness = freshness
				q.Meta.DegradedMode = false
				r.lastGood[symbol] = lastGoodEntry{quote: q, storedAt: now}
				r.mu.Unlock()
				return q, true
			}
			// Stale success counts as a failure for this provider.
			res.Kind = providers.ErrEmpty
			res.Detail = "stale"
		}
		st.failures++
		if res.Kind == providers.ErrRateLimited || res.Kind == providers.ErrHTTP5xx {
			r.bumpBackoffLocked(st, now)
		}
		r.negCache[name+"|"+symbol] = now.Add(negativeCacheTTL)
		r.mu.Unlock()

		r.log.Debug().Str("provider", name).Str("symbol", symbol).
			Str("kind", string(res.Kind)).Msg("quote provider failed")
	}

	// Degraded mode: serve the last known good quote if fresh enough.
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.lastGood[symbol]; ok && now.Sub(entry.storedAt) <= lastGoodTTL {
		q := entry.quote
		q.Meta.IsFallback = true
		q.Meta.DegradedMode = true
		q.Meta.Freshness = now.Sub(q.TS).Seconds()
		if !entry.counted {
			entry.counted = true
			r.lastGood[symbol] = entry
			r.fallbacks++
			metrics.RouterFallbacks.Inc()
		}
		return q, true
	}
	return models.Quote{}, false
}

// bumpBackoffLocked doubles the provider's backoff window, capped at
// backoffCap. Caller holds the router lock.
func (r *Router) bumpBackoffLocked(st *providerState, now time.Time) {
	d := backoffBase << uint(st.backoffExp)
	if d > backoffCap {
		d = backoffCap
	}
	st.backoffUntil = now.Add(d)
	if st.backoffExp < backoffMaxExp {
		st.backoffExp++
	}
}

// Stats snapshots the router state.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		ProviderHits: make(map[string]int64, len(r.states)),
		Failures:     make(map[string]int64, len(r.states)),
		RateLimited:  make(map[string]int64, len(r.states)),
		BackoffUntil: make(map[string]time.Time, len(r.states)),
		FallbackHits: r.fallbacks,
	}
	for name, st := range r.states {
		s.ProviderHits[name] = st.hits
		s.Failures[name] = st.failures
		s.RateLimited[name] = st.rateLimited
		if !st.backoffUntil.IsZero() {
			s.BackoffUntil[name] = st.backoffUntil
		}
		s.TotalHits += st.hits
	}
	s.NegativeCache = len(r.negCache)
	return s
}
