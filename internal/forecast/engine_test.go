package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/store"
)

// memStore is an in-memory ForecastStore for engine tests.
type memStore struct {
	latest    map[string]models.Forecast
	inserted  []models.Forecast
	scored    []store.ScoredForecast
	unscored  []models.Forecast
	scoresOut []models.ForecastScore
	closes    map[string]float64 // asset|unix -> close
}

func newMemStore() *memStore {
	return &memStore{
		latest: map[string]models.Forecast{},
		closes: map[string]float64{},
	}
}

func (m *memStore) LatestForecast(ctx context.Context, tf, target string) (models.Forecast, bool, error) {
	f, ok := m.latest[tf+"|"+target]
	return f, ok, nil
}

func (m *memStore) InsertForecast(ctx context.Context, f models.Forecast) error {
	m.inserted = append(m.inserted, f)
	m.latest[f.TF+"|"+f.Target] = f
	return nil
}

func (m *memStore) ListScoredSince(ctx context.Context, tf string, since time.Time) ([]store.ScoredForecast, error) {
	return m.scored, nil
}

func (m *memStore) UnscoredExpired(ctx context.Context, now time.Time) ([]models.Forecast, error) {
	return m.unscored, nil
}

func (m *memStore) InsertScore(ctx context.Context, sc models.ForecastScore) error {
	m.scoresOut = append(m.scoresOut, sc)
	return nil
}

func (m *memStore) CloseAt(ctx context.Context, asset string, ts time.Time) (float64, bool, error) {
	c, ok := m.closes[closeKey(asset, ts)]
	return c, ok, nil
}

func closeKey(asset string, ts time.Time) string {
	return asset + "|" + ts.UTC().Format(time.RFC3339)
}

// riskOffSnapshot produces a strongly negative BTC market signal.
func riskOffSnapshot() *models.MarketSnapshot {
	return &models.MarketSnapshot{
		VIX:          30,
		MacroRiskOff: true,
		Changes: map[string]float64{
			"stable_dom": 2.0,
			"dxy":        1.5,
			"qqq":        -3.0,
		},
	}
}

func TestMarketSignalDirectionality(t *testing.T) {
	snap := riskOffSnapshot()
	btc, drivers := MarketSignal(snap, models.TargetBTC)
	assert.Negative(t, btc)
	assert.NotEmpty(t, drivers)

	// The same risk-off tape is a tailwind for the stablecoin complex.
	stables, _ := MarketSignal(snap, models.TargetStables)
	assert.Positive(t, stables)
}

func TestMarketSignalSkipsMissingVIX(t *testing.T) {
	snap := &models.MarketSnapshot{}
	_, drivers := MarketSignal(snap, models.TargetBTC)
	for _, d := range drivers {
		assert.NotEqual(t, "vix_level", d.Name)
	}
}

func TestNewsSignalDecayAndNeutral(t *testing.T) {
	now := time.Now().UTC()
	clusters := []models.EventCluster{
		{
			Headline: "fresh bearish", TS: now.Add(-time.Hour), Impact: 80,
			Credibility: 1.0, Direction: models.DirDown,
			Targets: []models.TargetRelevance{{Target: models.TargetBTC, Relevance: 0.8}},
		},
		{
			Headline: "stale bearish", TS: now.Add(-20 * time.Hour), Impact: 80,
			Credibility: 1.0, Direction: models.DirDown,
			Targets: []models.TargetRelevance{{Target: models.TargetBTC, Relevance: 0.8}},
		},
		{
			Headline: "neutral", TS: now.Add(-time.Hour), Impact: 60,
			Credibility: 0.5, Direction: models.DirNeutral,
			Targets: []models.TargetRelevance{{Target: models.TargetBTC, Relevance: 0.5}},
		},
	}
	score, drivers := NewsSignal(clusters, models.TargetBTC, true, 0, now)
	assert.Negative(t, score)
	require.NotEmpty(t, drivers)
	assert.Equal(t, "fresh bearish", drivers[0].Name)

	// Ancient clusters contribute nothing.
	old := []models.EventCluster{{
		Headline: "ancient", TS: now.Add(-30 * time.Hour), Impact: 90, Credibility: 1,
		Direction: models.DirDown,
		Targets:   []models.TargetRelevance{{Target: models.TargetBTC, Relevance: 1}},
	}}
	score, drivers = NewsSignal(old, models.TargetBTC, true, 0, now)
	assert.Zero(t, score)
	assert.Empty(t, drivers)
}

func TestNewsSignalHalfLifeOverride(t *testing.T) {
	now := time.Now().UTC()
	clusters := []models.EventCluster{{
		Headline: "aging story", TS: now.Add(-4 * time.Hour), Impact: 80, Credibility: 1,
		Direction: models.DirDown,
		Targets:   []models.TargetRelevance{{Target: models.TargetBTC, Relevance: 0.8}},
	}}
	score, _ := NewsSignal(clusters, models.TargetBTC, true, 0, now)
	assert.Negative(t, score)

	// A 1h half-life caps the active window at 3h, dropping the story.
	score, drivers := NewsSignal(clusters, models.TargetBTC, true, 1, now)
	assert.Zero(t, score)
	assert.Empty(t, drivers)
}

func TestHasMajorEvent(t *testing.T) {
	now := time.Now().UTC()
	assert.True(t, HasMajorEvent([]models.EventCluster{{TS: now.Add(-time.Hour), Impact: 75}}, 70, 0, now))
	assert.False(t, HasMajorEvent([]models.EventCluster{{TS: now.Add(-time.Hour), Impact: 60}}, 70, 0, now))
	assert.False(t, HasMajorEvent([]models.EventCluster{{TS: now.Add(-30 * time.Hour), Impact: 90}}, 70, 0, now))
}

func TestHysteresisHoldsDirectionInsideBand(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, 0, 0, zerolog.Nop())
	now := time.Now().UTC()
	e.now = func() time.Time { return now }

	// Previous UP forecast 31 minutes old with a raw score close to the
	// new one: past the hold window but inside the hysteresis band.
	st.latest["1h|BTC"] = models.Forecast{
		TS: now.Add(-31 * time.Minute), TF: "1h", Target: models.TargetBTC,
		Direction: models.DirUp, RawScore: -0.52, Confidence: 0.60,
	}

	f, emitted, err := e.runOne(context.Background(), riskOffSnapshot(), nil,
		"1h", models.TargetBTC, 1.0, 0.0, PlattModel{}, now)
	require.NoError(t, err)
	require.True(t, emitted)
	assert.Equal(t, models.DirUp, f.Direction, "flip inside hysteresis band must be suppressed")
	assert.Equal(t, -0.52, f.RawScore)
}

func TestHysteresisFlipsPastBand(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, 0, 0, zerolog.Nop())
	now := time.Now().UTC()
	e.now = func() time.Time { return now }

	st.latest["1h|BTC"] = models.Forecast{
		TS: now.Add(-31 * time.Minute), TF: "1h", Target: models.TargetBTC,
		Direction: models.DirUp, RawScore: 0.30, Confidence: 0.60,
	}

	f, emitted, err := e.runOne(context.Background(), riskOffSnapshot(), nil,
		"1h", models.TargetBTC, 1.0, 0.0, PlattModel{}, now)
	require.NoError(t, err)
	require.True(t, emitted)
	assert.Equal(t, models.DirDown, f.Direction)
}

func TestMajorEventBypassesHold(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, 0, 0, zerolog.Nop())
	now := time.Now().UTC()
	e.now = func() time.Time { return now }

	st.latest["1h|BTC"] = models.Forecast{
		TS: now.Add(-5 * time.Minute), TF: "1h", Target: models.TargetBTC,
		Direction: models.DirUp, RawScore: 0.30, Confidence: 0.60,
	}
	major := []models.EventCluster{{
		Headline: "exchange hacked", TS: now.Add(-10 * time.Minute), Impact: 85,
		Credibility: 1, Direction: models.DirDown,
		Targets: []models.TargetRelevance{{Target: models.TargetBTC, Relevance: 0.9}},
	}}

	f, emitted, err := e.runOne(context.Background(), riskOffSnapshot(), major,
		"1h", models.TargetBTC, 0.55, 0.45, PlattModel{}, now)
	require.NoError(t, err)
	require.True(t, emitted, "direction change emits even inside the half-horizon window")
	assert.Equal(t, models.DirDown, f.Direction)
}

func TestEmissionGateSuppressesUnchangedForecast(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, 0, 0, zerolog.Nop())
	now := time.Now().UTC()
	e.now = func() time.Time { return now }

	prev := models.Forecast{
		TS: now.Add(-5 * time.Minute), TF: "1h", Target: models.TargetBTC,
		Direction: models.DirDown, RawScore: -0.55, Confidence: 0.78,
	}
	st.latest["1h|BTC"] = prev

	_, emitted, err := e.runOne(context.Background(), riskOffSnapshot(), nil,
		"1h", models.TargetBTC, 1.0, 0.0, PlattModel{}, now)
	require.NoError(t, err)
	assert.False(t, emitted)
	assert.Empty(t, st.inserted)
}

func TestConfidenceClamped(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, 0, 0, zerolog.Nop())
	now := time.Now().UTC()
	e.now = func() time.Time { return now }

	f, emitted, err := e.runOne(context.Background(), riskOffSnapshot(), nil,
		"1h", models.TargetBTC, 1.0, 0.0, PlattModel{A: 50, B: 10, Fitted: true}, now)
	require.NoError(t, err)
	require.True(t, emitted)
	assert.GreaterOrEqual(t, f.Confidence, 0.52)
	assert.LessOrEqual(t, f.Confidence, 0.95)
}

func TestAdaptiveWeightsShrinkOnBadRecord(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, 0, 0, zerolog.Nop())
	for i := 0; i < 10; i++ {
		st.scored = append(st.scored, store.ScoredForecast{
			Score: models.ForecastScore{Hit: 0, Brier: 0.4},
		})
	}
	wm, wn := e.adaptiveWeights(context.Background(), "1h", time.Now())
	assert.InDelta(t, 1.0, wm+wn, 1e-9)
	assert.Greater(t, wm, baseMarketWeight, "market weight grows when news is wrong")

	// Default split when no record exists.
	st.scored = nil
	wm, wn = e.adaptiveWeights(context.Background(), "1h", time.Now())
	assert.Equal(t, baseMarketWeight, wm)
	assert.Equal(t, baseNewsWeight, wn)
}

func TestScoreExpired(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, 0, 0, zerolog.Nop())
	now := time.Now().UTC()
	e.now = func() time.Time { return now }

	f := models.Forecast{
		ID: "f1", TS: now.Add(-2 * time.Hour), TF: "1h", Target: models.TargetBTC,
		Direction: models.DirUp, Confidence: 0.7,
		ExpiresAt: now.Add(-time.Hour),
	}
	st.unscored = []models.Forecast{f}
	st.closes[closeKey("BTC", f.TS)] = 100
	st.closes[closeKey("BTC", f.ExpiresAt)] = 102

	n, err := e.ScoreExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, st.scoresOut, 1)
	sc := st.scoresOut[0]
	assert.Equal(t, "f1", sc.ForecastID)
	assert.InDelta(t, 0.02, sc.RealizedReturn, 1e-9)
	assert.Equal(t, 1, sc.Hit)
	assert.InDelta(t, 0.09, sc.Brier, 1e-9) // (0.7-1)^2
}

func TestScoreExpiredSkipsMissingBars(t *testing.T) {
	st := newMemStore()
	e := NewEngine(st, 0, 0, zerolog.Nop())
	st.unscored = []models.Forecast{{ID: "f2", Target: models.TargetBTC, Direction: models.DirUp}}

	n, err := e.ScoreExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, st.scoresOut)
}

func TestIsHitBands(t *testing.T) {
	e := NewEngine(newMemStore(), 0, 0, zerolog.Nop())
	assert.True(t, e.isHit(models.DirUp, 0.01))
	assert.False(t, e.isHit(models.DirUp, 0.0005))
	assert.True(t, e.isHit(models.DirDown, -0.01))
	assert.False(t, e.isHit(models.DirDown, 0.01))
	assert.True(t, e.isHit(models.DirNeutral, 0.0005))
	assert.False(t, e.isHit(models.DirNeutral, 0.01))
}

func TestFitPlattMinSamples(t *testing.T) {
	m := FitPlatt([]float64{0.1, 0.9}, []int{0, 1})
	assert.False(t, m.Fitted)
	assert.Equal(t, 0.66, m.Calibrate(0.5, 0.66))
}

func TestFitPlattSeparatesConfidence(t *testing.T) {
	var xs []float64
	var hits []int
	for i := 0; i < 15; i++ {
		xs = append(xs, 0.9)
		hits = append(hits, 1)
		xs = append(xs, 0.1)
		hits = append(hits, 0)
	}
	m := FitPlatt(xs, hits)
	require.True(t, m.Fitted)
	assert.Greater(t, m.Calibrate(0.9, 0), m.Calibrate(0.1, 0))
}
