package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/config"
	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/news"
	"github.com/sawpanic/intelrun/internal/providers"
	"github.com/sawpanic/intelrun/internal/quotes"
	"github.com/sawpanic/intelrun/internal/store"
)

type staticSnapshot struct{ snap models.MarketSnapshot }

func (s staticSnapshot) Snapshot(ctx context.Context) (models.MarketSnapshot, []string) {
	return s.snap, nil
}

type staticSearcher struct{ items []models.NewsItem }

func (s staticSearcher) SearchNews(ctx context.Context, query, timespan string, maxRecords int) providers.Result[[]models.NewsItem] {
	out := make([]models.NewsItem, len(s.items))
	copy(out, s.items)
	return providers.Ok(out, time.Millisecond)
}

func newTestOrchestrator(t *testing.T, items []models.NewsItem) *Orchestrator {
	t.Helper()
	st, err := store.Open("sqlite:"+filepath.Join(t.TempDir(), "intel.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng := news.NewEngine(staticSearcher{items: items}, nil, nil,
		news.Options{MaxQueriesPerSpan: 1, MinNews: 1, MinNewsLong: 1}, zerolog.Nop())
	router := quotes.NewRouter(nil, quotes.DefaultBuckets(), zerolog.Nop())
	return NewOrchestrator(config.Defaults(), staticSnapshot{snap: models.MarketSnapshot{BTC: 65000, VIX: 17}},
		eng, router, st, nil, nil, zerolog.Nop())
}

func TestRunRetainsLatestIntel(t *testing.T) {
	pub := time.Now().UTC().Add(-time.Hour)
	orc := newTestOrchestrator(t, []models.NewsItem{{
		Title:        "Nvidia raises earnings guidance after record quarter",
		URL:          "https://reuters.com/nvda",
		SourceDomain: "reuters.com",
		PublishedAt:  &pub,
	}})

	assert.Empty(t, orc.LatestIntel().Items, "no run yet means empty intel")

	resp, err := orc.Run(context.Background(), Request{Timeframe: "1h", NewsTimespan: "6h"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.TopNews)

	intel := orc.LatestIntel()
	require.NotEmpty(t, intel.Items)
	assert.Equal(t, resp.TopNews[0].Title, intel.Items[0].Title)
	require.NotNil(t, intel.Snapshot)
	assert.Equal(t, 17.0, intel.Snapshot.VIX)
	assert.False(t, intel.GeneratedAt.IsZero())
}
