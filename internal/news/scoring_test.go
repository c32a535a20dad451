package news

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/models"
)

func TestScoreBoundsAfterAnnotate(t *testing.T) {
	now := time.Now().UTC()
	wl := DefaultWatchlist()
	w := PickProfile("default", false, 0)

	titles := []string{
		"Bitcoin ETF approval drives record inflows as crypto rallies",
		"Powell says rates to stay higher for longer amid persistent inflation",
		"OPEC announces surprise production cut, oil jumps",
		"Quiet day on markets",
		"",
	}
	for _, title := range titles {
		item := newsAt(title, "https://reuters.com/a", "reuters.com", now.Add(-2*time.Hour), 0)
		annotateItem(&item, wl, now, false, w)
		assert.GreaterOrEqual(t, item.RelevanceScore, 0.0, title)
		assert.LessOrEqual(t, item.RelevanceScore, 100.0, title)
		assert.GreaterOrEqual(t, item.QualityScore, 0.0, title)
		assert.LessOrEqual(t, item.QualityScore, 100.0, title)
		assert.GreaterOrEqual(t, item.ImpactPotential, 0.0, title)
		assert.LessOrEqual(t, item.ImpactPotential, 100.0, title)
		assert.GreaterOrEqual(t, item.FinalRankScore, 0.0, title)
		assert.LessOrEqual(t, item.FinalRankScore, 100.0, title)
	}
}

func TestScoreQualityTierAndPenalties(t *testing.T) {
	now := time.Now().UTC()

	fresh := newsAt("headline", "https://reuters.com/a", "reuters.com", now, 0)
	assert.Equal(t, 100.0, scoreQuality(&fresh, now))

	unknownDomain := newsAt("headline", "https://randomblog.net/a", "randomblog.net", now, 0)
	assert.Equal(t, 50.0, scoreQuality(&unknownDomain, now))

	noDate := models.NewsItem{Title: "headline", URL: "https://reuters.com/a", SourceDomain: "reuters.com"}
	assert.Equal(t, 85.0, scoreQuality(&noDate, now))

	broken := models.NewsItem{SourceDomain: "reuters.com"}
	assert.Equal(t, 50.0, scoreQuality(&broken, now))
}

func TestScoreQualityDecayFloor(t *testing.T) {
	now := time.Now().UTC()
	ancient := newsAt("headline", "https://randomblog.net/a", "randomblog.net", now.Add(-30*24*time.Hour), 0)
	// Tier C at 720h would decay to ~0 without the 0.35 floor.
	assert.InDelta(t, 0.35*0.5*100, scoreQuality(&ancient, now), 1.0)
}

func TestPickProfileNormalized(t *testing.T) {
	for _, name := range []string{"default", "risk_off", "high_volatility", "bogus"} {
		w := PickProfile(name, false, 0)
		sum := w.Relevance + w.Quality + w.Impact + w.Scope
		assert.InDelta(t, 1.0, sum, 1e-9, name)
	}
}

func TestPickProfileAutoByVIX(t *testing.T) {
	calm := PickProfile("default", true, 15)
	assert.Equal(t, PickProfile("default", false, 0), calm)

	stressed := PickProfile("default", true, 25)
	assert.Equal(t, PickProfile("risk_off", false, 0), stressed)

	extreme := PickProfile("default", true, 35)
	assert.Equal(t, PickProfile("high_volatility", false, 0), extreme)
}

func TestSortRankedDeterministic(t *testing.T) {
	items := []models.NewsItem{
		{Title: "b", FinalRankScore: 50, QualityScore: 70},
		{Title: "a", FinalRankScore: 50, QualityScore: 70},
		{Title: "c", FinalRankScore: 80},
	}
	sortRanked(items)
	require.Equal(t, "c", items[0].Title)
	assert.Equal(t, "a", items[1].Title)
	assert.Equal(t, "b", items[2].Title)
}

func TestApplyAgeMixKeepsOldItems(t *testing.T) {
	now := time.Now().UTC()
	var items []models.NewsItem
	for i := 0; i < 10; i++ {
		items = append(items, newsAt("recent", "https://a.com/r", "a.com", now.Add(-time.Hour), float64(100-i)))
	}
	old1 := newsAt("old one", "https://a.com/o1", "a.com", now.Add(-10*24*time.Hour), 5)
	old2 := newsAt("old two", "https://a.com/o2", "a.com", now.Add(-12*24*time.Hour), 4)
	items = append(items, old1, old2)

	out := applyAgeMix(items, now, 2, 7, 10)
	require.Len(t, out, 10)
	oldCount := 0
	for i := range out {
		if out[i].AgeHours(now) >= 7*24 {
			oldCount++
		}
	}
	assert.GreaterOrEqual(t, oldCount, 2)
}
