package eventstudy

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/models"
)

// barGrid builds n 15-minute bars ending at end, with closes and
// volumes from the supplied functions.
func barGrid(asset string, end time.Time, n int, closeAt func(i int) float64, volAt func(i int) float64) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	for i := 0; i < n; i++ {
		ts := end.Add(-time.Duration(n-1-i) * 15 * time.Minute)
		bars[i] = models.PriceBar{
			Asset: asset, TS: ts,
			Close:  closeAt(i),
			Volume: volAt(i),
		}
	}
	return bars
}

func TestComputeMeasuresWindows(t *testing.T) {
	end := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	// 40 bars, price steps up 1 per bar, flat volume 100.
	bars := barGrid("BTC", end, 40,
		func(i int) float64 { return 100 + float64(i) },
		func(i int) float64 { return 100 })

	eventTS := bars[20].TS
	s := Compute("BTC", bars, eventTS)

	assert.Equal(t, 20, s.AlignedIndex)
	require.Contains(t, s.Post, "1h")
	// Close 120 -> 124 over 4 bars.
	assert.InDelta(t, 4.0/120*100, s.Post["1h"].Ret, 1e-9)
	assert.InDelta(t, (120.0-116.0)/116*100, s.Pre.Ret, 1e-9)
	assert.NotContains(t, s.MissingFields, "pre")
	// 3h needs 12 bars after index 20; 19 remain, so it is measured.
	assert.Contains(t, s.Post, "3h")
}

func TestComputeEventBeforeHistory(t *testing.T) {
	end := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	bars := barGrid("BTC", end, 10,
		func(i int) float64 { return 100 },
		func(i int) float64 { return 100 })

	s := Compute("BTC", bars, bars[0].TS.Add(-time.Hour))
	assert.Equal(t, 0, s.AlignedIndex)
	assert.Contains(t, s.MissingFields, "pre")
}

func TestComputeMissingPostWindows(t *testing.T) {
	end := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	bars := barGrid("BTC", end, 10,
		func(i int) float64 { return 100 },
		func(i int) float64 { return 100 })

	// Event on the last bar: no post bars exist at all.
	s := Compute("BTC", bars, end)
	assert.Contains(t, s.MissingFields, "around.15m")
	assert.Contains(t, s.MissingFields, "around.3h")
	assert.Empty(t, s.Post)
}

func TestComputeEmptyBars(t *testing.T) {
	s := Compute("BTC", nil, time.Now())
	assert.Contains(t, s.MissingFields, "bars")
	assert.InDelta(t, 1.0, s.PrePostRatio, 1e-9)
}

func TestPrePostRatioFlatWindow(t *testing.T) {
	end := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	// Zero volume everywhere: ratio degrades to ~1.0, anomaly stays 0.
	bars := barGrid("BTC", end, 20,
		func(i int) float64 { return 100 },
		func(i int) float64 { return 0 })

	s := Compute("BTC", bars, bars[10].TS)
	assert.InDelta(t, 1.0, s.PrePostRatio, 1e-6)
	assert.Zero(t, s.VolumeAnomaly)
}

func TestVolumeAnomalySpike(t *testing.T) {
	end := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	bars := barGrid("BTC", end, 20,
		func(i int) float64 { return 100 },
		func(i int) float64 {
			if i > 10 {
				return 300
			}
			return 100
		})

	s := Compute("BTC", bars, bars[10].TS)
	assert.InDelta(t, 3.0, s.VolumeAnomaly, 1e-9)
	assert.InDelta(t, 3.0, s.PrePostRatio, 1e-6)
}

type memBars struct {
	closes map[string]float64
	series []models.PriceBar
}

func (m *memBars) CloseAt(ctx context.Context, asset string, ts time.Time) (float64, bool, error) {
	c, ok := m.closes[asset+"|"+ts.UTC().Format(time.RFC3339)]
	return c, ok, nil
}

func (m *memBars) ListBarsBetween(ctx context.Context, asset string, from, to time.Time) ([]models.PriceBar, error) {
	var out []models.PriceBar
	for _, b := range m.series {
		if !b.TS.Before(from) && !b.TS.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type memSink struct {
	impacts []models.EventImpact
}

func (m *memSink) UpsertEventImpact(ctx context.Context, imp models.EventImpact) error {
	m.impacts = append(m.impacts, imp)
	return nil
}

func TestImpactJobRun(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	eventTS := now.Add(-7 * time.Hour)

	bars := &memBars{closes: map[string]float64{}}
	key := func(ts time.Time) string { return "BTC|" + ts.UTC().Format(time.RFC3339) }
	bars.closes[key(eventTS)] = 100
	for _, tf := range models.Timeframes {
		end := eventTS.Add(time.Duration(models.TimeframeMinutes[tf]) * time.Minute)
		bars.closes[key(end)] = 101
	}

	sink := &memSink{}
	j := NewImpactJob(bars, sink, zerolog.Nop())
	j.now = func() time.Time { return now }

	cl := models.EventCluster{
		ClusterID: "c1", TS: eventTS,
		Targets: []models.TargetRelevance{{Target: models.TargetBTC, Relevance: 0.8}},
	}
	written := j.Run(context.Background(), []models.EventCluster{cl})

	assert.Equal(t, len(models.Timeframes), written)
	require.Len(t, sink.impacts, len(models.Timeframes))
	for _, imp := range sink.impacts {
		assert.Equal(t, "c1", imp.ClusterID)
		assert.Equal(t, models.TargetBTC, imp.Target)
		require.NotNil(t, imp.RealizedRet)
		assert.InDelta(t, 0.01, *imp.RealizedRet, 1e-9)
		// No bar history means no sigma and no z-score.
		assert.Nil(t, imp.RealizedZ)
	}
}

func TestImpactJobSkipsMissingBars(t *testing.T) {
	now := time.Now().UTC()
	sink := &memSink{}
	j := NewImpactJob(&memBars{closes: map[string]float64{}}, sink, zerolog.Nop())
	j.now = func() time.Time { return now }

	cl := models.EventCluster{ClusterID: "c2", TS: now.Add(-7 * time.Hour)}
	assert.Zero(t, j.Run(context.Background(), []models.EventCluster{cl}))
	assert.Empty(t, sink.impacts)
}

func TestRelevantTargetsFallback(t *testing.T) {
	cl := models.EventCluster{Targets: []models.TargetRelevance{{Target: "SECTOR:ENERGY", Relevance: 0.7}}}
	assert.Equal(t, []string{models.TargetBTC}, relevantTargets(cl))

	cl = models.EventCluster{Targets: []models.TargetRelevance{
		{Target: models.TargetETH, Relevance: 0.8},
		{Target: "SCOPE:MACRO", Relevance: 0.8},
	}}
	assert.Equal(t, []string{models.TargetETH}, relevantTargets(cl))
}
