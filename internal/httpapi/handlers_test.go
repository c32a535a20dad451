package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/cache"
	"github.com/sawpanic/intelrun/internal/config"
	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/news"
	"github.com/sawpanic/intelrun/internal/pipeline"
	"github.com/sawpanic/intelrun/internal/portfolio"
	"github.com/sawpanic/intelrun/internal/providers"
	"github.com/sawpanic/intelrun/internal/quotes"
	"github.com/sawpanic/intelrun/internal/store"
)

type fixedQuoteProvider struct{ price float64 }

func (p fixedQuoteProvider) Name() string { return "yahoo" }

func (p fixedQuoteProvider) GetQuote(ctx context.Context, symbol string) providers.Result[models.Quote] {
	return providers.Ok(models.Quote{Price: p.price, TS: time.Now().UTC()}, 0)
}

func (p fixedQuoteProvider) Search(ctx context.Context, symbol string) (string, bool) {
	return symbol, true
}

type fixedSearcher struct{ items []models.NewsItem }

func (s fixedSearcher) SearchNews(ctx context.Context, query, timespan string, maxRecords int) providers.Result[[]models.NewsItem] {
	out := make([]models.NewsItem, len(s.items))
	copy(out, s.items)
	return providers.Ok(out, time.Millisecond)
}

func TestRegimeScore(t *testing.T) {
	assert.Zero(t, regimeScore(nil))
	assert.InDelta(t, 0.5, regimeScore(&models.MarketSnapshot{VIX: 12}), 1e-9)
	assert.InDelta(t, -1, regimeScore(&models.MarketSnapshot{VIX: 35}), 1e-9)
	assert.InDelta(t, -0.5, regimeScore(&models.MarketSnapshot{VIX: 15, MacroRiskOff: true}), 1e-9)
}

func TestHandlePortfolioWithoutEngine(t *testing.T) {
	s := &Server{now: time.Now, log: zerolog.Nop()}
	rr := httptest.NewRecorder()
	s.handlePortfolio(rr, httptest.NewRequest("GET", "/portfolio", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Nil(t, body["portfolio"])
}

func TestHandlePortfolioServesPlansFromLatestIntel(t *testing.T) {
	nop := zerolog.Nop()
	st, err := store.Open("sqlite:"+filepath.Join(t.TempDir(), "api.db"), nop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	pub := time.Now().UTC().Add(-time.Hour)
	eng := news.NewEngine(fixedSearcher{items: []models.NewsItem{{
		Title:        "Nvidia raises earnings guidance after record quarter",
		URL:          "https://reuters.com/nvda",
		SourceDomain: "reuters.com",
		PublishedAt:  &pub,
	}}}, nil, nil, news.Options{MaxQueriesPerSpan: 1, MinNews: 1, MinNewsLong: 1}, nop)

	buckets := []quotes.BucketConfig{{Provider: "yahoo", PerMin: 6000, Burst: 1000}}
	router := quotes.NewRouter([]quotes.Provider{fixedQuoteProvider{price: 100}}, buckets, nop)
	snap := staticMarket{snap: models.MarketSnapshot{BTC: 65000, VIX: 14}}
	orc := pipeline.NewOrchestrator(config.Defaults(), snap, eng, router, st, nil, nil, nop)

	_, err = orc.Run(context.Background(), pipeline.Request{Timeframe: "1h", NewsTimespan: "6h"})
	require.NoError(t, err)

	pf := portfolio.NewEngine(router, st, []portfolio.Holding{
		{Symbol: "NVDA", Name: "Nvidia", Sector: "TECH", Currency: "USD", Quantity: 10},
	}, nop)
	kv, err := cache.NewKV("", 64, nop)
	require.NoError(t, err)
	srv := NewServer(orc, st, router, pf, nil, kv, nop)

	rr := httptest.NewRecorder()
	srv.handlePortfolio(rr, httptest.NewRequest("GET", "/portfolio", nil))

	var body struct {
		Plans     []portfolio.Plan    `json:"plans"`
		Portfolio portfolio.Valuation `json:"portfolio"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Plans)
	require.NotEmpty(t, body.Portfolio.Impacts, "latest run's news must reach the valuation")
	for _, plan := range body.Plans {
		assert.Equal(t, "ACT", plan.Mode, plan.Period)
		assert.NotEqual(t, "no_news_coverage", plan.HoldReason)
	}
	require.NotEmpty(t, body.Portfolio.Positions)
	assert.Equal(t, 100.0, body.Portfolio.Positions[0].Price)
}

type staticMarket struct{ snap models.MarketSnapshot }

func (s staticMarket) Snapshot(ctx context.Context) (models.MarketSnapshot, []string) {
	return s.snap, nil
}
