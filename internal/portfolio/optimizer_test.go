package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/models"
)

func valuationWith(impacts []SymbolImpact, positions ...Position) Valuation {
	return Valuation{Positions: positions, Impacts: impacts}
}

func pos(symbol string, weight float64) Position {
	return Position{Holding: Holding{Symbol: symbol, Currency: "USD"}, Weight: weight}
}

func TestOptimizeHoldsWithoutCoverage(t *testing.T) {
	v := valuationWith(nil, pos("AAPL", 0.5), pos("MSFT", 0.5))
	plans := Optimize(OptimizerInput{Valuation: v})
	require.Len(t, plans, 3)
	for _, p := range plans {
		assert.Equal(t, "HOLD", p.Mode, p.Period)
		assert.Equal(t, "no_news_coverage", p.HoldReason)
		assert.Empty(t, p.Actions)
	}
}

func TestOptimizeHoldsOnLowSignal(t *testing.T) {
	impacts := []SymbolImpact{
		{Symbol: "AAPL", Score: 0.1, LowSignal: true},
		{Symbol: "MSFT", Score: 0.1, LowSignal: true},
		{Symbol: "NVDA", Score: 0.4},
	}
	v := valuationWith(impacts, pos("AAPL", 0.3), pos("MSFT", 0.3), pos("NVDA", 0.4))
	plans := Optimize(OptimizerInput{Valuation: v})
	require.NotEmpty(t, plans)
	assert.Equal(t, "HOLD", plans[0].Mode)
	assert.Contains(t, plans[0].HoldReason, "low_signal_ratio")
}

func TestOptimizeActsWithTurnoverLadder(t *testing.T) {
	impacts := []SymbolImpact{
		{Symbol: "NVDA", Score: 0.8, DirectCount: 2},
		{Symbol: "AAPL", Score: 0.5, DirectCount: 1},
		{Symbol: "XOM", Score: -0.6, DirectCount: 1},
	}
	v := valuationWith(impacts, pos("NVDA", 0.10), pos("AAPL", 0.10), pos("XOM", 0.10))
	in := OptimizerInput{
		Valuation:   v,
		RegimeScore: 0.5,
		MomentumZ7d: map[string]float64{"NVDA": 2, "AAPL": 1, "XOM": -2},
	}
	plans := Optimize(in)
	require.Len(t, plans, 3)

	assert.Equal(t, "daily", plans[0].Period)
	assert.Equal(t, "weekly", plans[1].Period)
	assert.Equal(t, "monthly", plans[2].Period)
	// Full coverage: turnover caps are unscaled.
	assert.InDelta(t, 0.05, plans[0].TurnoverCap, 1e-9)
	assert.InDelta(t, 0.30, plans[2].TurnoverCap, 1e-9)

	for _, p := range plans {
		require.Equal(t, "ACT", p.Mode)
		ups, downs := 0, 0
		for _, a := range p.Actions {
			switch a.Side {
			case "increase":
				ups++
				assert.LessOrEqual(t, a.DeltaWeight, maxDeltaWeight+1e-12)
			case "decrease":
				downs++
			}
		}
		assert.LessOrEqual(t, ups, maxActionsPerSide)
		assert.LessOrEqual(t, downs, maxActionsPerSide)
	}
}

func TestBuildActionsRespectsWeightCap(t *testing.T) {
	impacts := []SymbolImpact{{Symbol: "NVDA", Score: 0.9, DirectCount: 3}}
	v := valuationWith(impacts, pos("NVDA", 0.26))
	plans := Optimize(OptimizerInput{Valuation: v, RegimeScore: 1, MomentumZ7d: map[string]float64{"NVDA": 2}})
	require.NotEmpty(t, plans)
	for _, a := range plans[0].Actions {
		assert.NotEqual(t, "increase", a.Side, "position above max weight must not be increased")
	}
}

func TestBuildActionsRespectsCryptoCap(t *testing.T) {
	impacts := []SymbolImpact{{Symbol: "BTC", Score: 0.9, DirectCount: 3}}
	btc := Position{Holding: Holding{Symbol: "BTC", Currency: "USD", IsCrypto: true}, Weight: 0.29}
	v := valuationWith(impacts, btc)
	plans := Optimize(OptimizerInput{
		Valuation: v, RegimeScore: 1,
		MomentumZ7d: map[string]float64{"BTC": 2},
		MaxWeight:   0.40,
	})
	require.NotEmpty(t, plans)
	for _, a := range plans[0].Actions {
		assert.NotEqual(t, "increase", a.Side, "crypto sleeve at its cap must not grow")
	}
}

func TestAttributeImpactsMethods(t *testing.T) {
	now := time.Now().UTC()
	holdings := []Holding{
		{Symbol: "NVDA", Name: "Nvidia", Sector: "TECH"},
		{Symbol: "MSFT", Name: "Microsoft", Sector: "TECH"},
		{Symbol: "XOM", Name: "Exxon Mobil", Sector: "ENERGY"},
	}
	p := now.Add(-time.Hour)
	items := []models.NewsItem{
		{
			Title: "$NVDA jumps after earnings beat", PublishedAt: &p,
			RelevanceScore: 80, QualityScore: 90, ExpectedDir: "UP",
			EventType: "EARNINGS_GUIDANCE",
		},
		{
			Title: "Chip sector rally broadens", PublishedAt: &p,
			RelevanceScore: 70, QualityScore: 70, ExpectedDir: "UP",
			EventType:     "PRODUCT_PLATFORM",
			SectorImpacts: []models.SectorImpact{{Sector: "TECH", ImpactScore: 60}},
		},
	}
	impacts := AttributeImpacts(items, holdings, now)
	require.NotEmpty(t, impacts)

	byName := map[string]SymbolImpact{}
	for _, si := range impacts {
		byName[si.Symbol] = si
	}

	nvda := byName["NVDA"]
	require.GreaterOrEqual(t, nvda.DirectCount, 1)
	assert.Positive(t, nvda.Score)
	require.NotEmpty(t, nvda.TopMatches)
	assert.Equal(t, "direct", nvda.TopMatches[0].Method)

	msft, ok := byName["MSFT"]
	require.True(t, ok, "sector spillover reaches the rest of the sector")
	assert.Equal(t, 1, msft.SectorCount)
	assert.Zero(t, msft.DirectCount)

	_, hasXOM := byName["XOM"]
	assert.False(t, hasXOM)
}

func TestAttributeImpactsLowSignalAttenuation(t *testing.T) {
	now := time.Now().UTC()
	holdings := []Holding{{Symbol: "NVDA", Name: "Nvidia", Sector: "TECH"}}
	p := now.Add(-time.Hour)

	strong := models.NewsItem{
		Title: "Nvidia unveils new platform", PublishedAt: &p,
		RelevanceScore: 80, QualityScore: 80, ExpectedDir: "UP",
		EventType: "PRODUCT_PLATFORM",
	}
	weak := strong
	weak.EventType = "OTHER"

	strongScore := AttributeImpacts([]models.NewsItem{strong}, holdings, now)[0].Score
	weakOut := AttributeImpacts([]models.NewsItem{weak}, holdings, now)[0]
	assert.True(t, weakOut.LowSignal)
	assert.InDelta(t, strongScore*lowSignalFactor, weakOut.Score, 1e-9)
}

func TestItemImpactSign(t *testing.T) {
	now := time.Now().UTC()
	p := now.Add(-time.Hour)
	up := models.NewsItem{RelevanceScore: 100, QualityScore: 100, ExpectedDir: "UP", PublishedAt: &p}
	down := up
	down.ExpectedDir = "DOWN"
	neutral := up
	neutral.ExpectedDir = ""

	assert.Positive(t, itemImpact(&up, now, 1, false))
	assert.Negative(t, itemImpact(&down, now, 1, false))
	n := itemImpact(&neutral, now, 1, false)
	assert.Positive(t, n)
	assert.Less(t, n, itemImpact(&up, now, 1, false))
}
