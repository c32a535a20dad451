package quotes

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/providers"
)

type fakeProvider struct {
	name   string
	result providers.Result[models.Quote]
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetQuote(ctx context.Context, symbol string) providers.Result[models.Quote] {
	f.calls++
	return f.result
}

func (f *fakeProvider) Search(ctx context.Context, symbol string) (string, bool) {
	return symbol, true
}

func okQuote(ts time.Time, price float64) providers.Result[models.Quote] {
	return providers.Ok(models.Quote{Price: price, TS: ts}, 0)
}

func failQuote(kind providers.ErrorKind) providers.Result[models.Quote] {
	return providers.Fail[models.Quote](kind, "test", 0)
}

func newTestRouter(ps ...Provider) *Router {
	return NewRouter(ps, DefaultBuckets(), zerolog.Nop())
}

func TestRouterFallsBackToSecondProvider(t *testing.T) {
	now := time.Now().UTC()
	primary := &fakeProvider{name: "yahoo", result: failQuote(providers.ErrHTTP5xx)}
	backup := &fakeProvider{name: "finnhub", result: okQuote(now, 101.5)}
	r := newTestRouter(primary, backup)
	r.now = func() time.Time { return now }

	q, ok := r.GetQuote(context.Background(), "BTC-USD")
	require.True(t, ok)
	assert.Equal(t, 101.5, q.Price)
	assert.Equal(t, "finnhub", q.Meta.Source)
	assert.True(t, q.Meta.IsFallback)
	assert.False(t, q.Meta.DegradedMode)
}

func TestRouterDegradedModeServesLastGood(t *testing.T) {
	now := time.Now().UTC()
	p := &fakeProvider{name: "yahoo", result: okQuote(now, 50)}
	r := newTestRouter(p)
	r.now = func() time.Time { return now }

	_, ok := r.GetQuote(context.Background(), "ETH-USD")
	require.True(t, ok)

	// Provider starts failing; within the last-good TTL the cached
	// quote is served flagged as degraded.
	p.result = failQuote(providers.ErrNetwork)
	later := now.Add(time.Minute)
	r.now = func() time.Time { return later }

	q, ok := r.GetQuote(context.Background(), "ETH-USD")
	require.True(t, ok)
	assert.Equal(t, 50.0, q.Price)
	assert.True(t, q.Meta.DegradedMode)
	assert.True(t, q.Meta.IsFallback)
}

func TestRouterAllFailedWithoutLastGood(t *testing.T) {
	p := &fakeProvider{name: "yahoo", result: failQuote(providers.ErrHTTP4xx)}
	r := newTestRouter(p)

	_, ok := r.GetQuote(context.Background(), "UNKNOWN")
	assert.False(t, ok)
}

func TestRouterNegativeCacheSkipsProvider(t *testing.T) {
	now := time.Now().UTC()
	p := &fakeProvider{name: "yahoo", result: failQuote(providers.ErrHTTP4xx)}
	r := newTestRouter(p)
	r.now = func() time.Time { return now }

	r.GetQuote(context.Background(), "BAD")
	require.Equal(t, 1, p.calls)

	r.GetQuote(context.Background(), "BAD")
	assert.Equal(t, 1, p.calls, "negative-cached symbol must not hit the provider again")

	// After the TTL the provider is queried again.
	r.now = func() time.Time { return now.Add(negativeCacheTTL + time.Second) }
	r.GetQuote(context.Background(), "BAD")
	assert.Equal(t, 2, p.calls)
}

func TestRouterBackoffOnRateLimit(t *testing.T) {
	now := time.Now().UTC()
	p := &fakeProvider{name: "yahoo", result: failQuote(providers.ErrRateLimited)}
	r := newTestRouter(p)
	r.now = func() time.Time { return now }

	r.GetQuote(context.Background(), "A")
	require.Equal(t, 1, p.calls)

	// Backed off: a different symbol also skips the provider.
	r.GetQuote(context.Background(), "B")
	assert.Equal(t, 1, p.calls)

	stats := r.Stats()
	assert.True(t, stats.BackoffUntil["yahoo"].After(now))
}

func TestRouterStaleQuoteRejected(t *testing.T) {
	now := time.Now().UTC()
	p := &fakeProvider{name: "yahoo", result: okQuote(now.Add(-7*time.Hour), 10)}
	r := newTestRouter(p)
	r.now = func() time.Time { return now }

	_, ok := r.GetQuote(context.Background(), "STALE")
	assert.False(t, ok)
	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Failures["yahoo"])
	assert.Equal(t, int64(0), stats.ProviderHits["yahoo"])
}

func TestRouterFallbackCountedOncePerResolution(t *testing.T) {
	now := time.Now().UTC()
	p := &fakeProvider{name: "yahoo", result: okQuote(now, 50)}
	r := newTestRouter(p)
	r.now = func() time.Time { return now }

	_, ok := r.GetQuote(context.Background(), "ETH-USD")
	require.True(t, ok)

	p.result = failQuote(providers.ErrNetwork)
	later := now.Add(30 * time.Second)
	r.now = func() time.Time { return later }

	// A burst of degraded serves from one cached resolution counts a
	// single fallback hit.
	for i := 0; i < 5; i++ {
		_, ok := r.GetQuote(context.Background(), "ETH-USD")
		require.True(t, ok)
	}
	stats := r.Stats()
	assert.Equal(t, int64(1), stats.FallbackHits)
	assert.LessOrEqual(t, stats.FallbackHits, stats.TotalHits)
}

func TestPatchSnapshotMissingDeterministic(t *testing.T) {
	r := newTestRouter()
	ctx := context.Background()

	var first []string
	for i := 0; i < 20; i++ {
		snap := models.MarketSnapshot{}
		r.PatchSnapshot(ctx, &snap)
		require.NotEmpty(t, snap.Missing)
		if i == 0 {
			first = snap.Missing
			assert.True(t, sort.StringsAreSorted(first))
			continue
		}
		assert.Equal(t, first, snap.Missing)
	}
}

func TestRouterDisabledProviderSkipped(t *testing.T) {
	primary := &fakeProvider{name: "yahoo", result: okQuote(time.Now().UTC(), 1)}
	backup := &fakeProvider{name: "finnhub", result: okQuote(time.Now().UTC(), 2)}
	r := newTestRouter(primary, backup)
	r.SetEnabled("yahoo", false)

	q, ok := r.GetQuote(context.Background(), "X")
	require.True(t, ok)
	assert.Equal(t, 2.0, q.Price)
	assert.Equal(t, 0, primary.calls)
}
