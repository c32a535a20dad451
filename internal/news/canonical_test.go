package news

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/models"
)

func TestCanonicalizeURLStripsTracking(t *testing.T) {
	got := CanonicalizeURL("https://Example.com/news/story?utm_source=tw&utm_medium=social&ref=home&id=42#section")
	assert.Equal(t, "https://example.com/news/story?id=42", got)
}

func TestCanonicalizeURLIdempotent(t *testing.T) {
	raw := "https://www.reuters.com/markets/article?fbclid=abc&gclid=xyz&page=2"
	once := CanonicalizeURL(raw)
	twice := CanonicalizeURL(once)
	assert.Equal(t, once, twice)
	assert.NotContains(t, once, "fbclid")
	assert.NotContains(t, once, "gclid")
	assert.Contains(t, once, "page=2")
}

func TestCanonicalizeURLUnparseable(t *testing.T) {
	assert.Equal(t, "not a url", CanonicalizeURL("  not a url "))
	assert.Equal(t, "", CanonicalizeURL(""))
}

func TestTokenSetRatio(t *testing.T) {
	assert.Equal(t, 1.0, TokenSetRatio("Bitcoin ETF approved", "approved bitcoin ETF"))
	assert.Equal(t, 0.0, TokenSetRatio("oil opec barrels", "nvidia chip launch"))
	assert.Equal(t, 0.0, TokenSetRatio("", "anything"))

	near := TokenSetRatio(
		"Fed raises interest rates by 25 basis points",
		"Fed raises interest rates by 25 basis points today")
	assert.Greater(t, near, 0.85)
}

func newsAt(title, url, domain string, published time.Time, quality float64) models.NewsItem {
	p := published
	return models.NewsItem{
		Title:        title,
		URL:          url,
		CanonicalURL: CanonicalizeURL(url),
		SourceDomain: domain,
		PublishedAt:  &p,
		QualityScore: quality,
	}
}

func TestDedupCollapsesEqualCanonicalURL(t *testing.T) {
	now := time.Now().UTC()
	items := []models.NewsItem{
		newsAt("Fed holds rates steady", "https://a.com/x?utm_source=rss", "a.com", now, 80),
		newsAt("Fed holds rates steady", "https://a.com/x", "b.com", now.Add(-time.Hour), 60),
	}
	out := Dedup(items, 0.85)
	require.Len(t, out, 1)
	assert.Equal(t, "a.com", out[0].SourceDomain)
	assert.Contains(t, out[0].OtherSources, "b.com")
	assert.NotEmpty(t, out[0].DedupClusterID)
}

func TestDedupSuppressesNearIdenticalTitles(t *testing.T) {
	now := time.Now().UTC()
	items := []models.NewsItem{
		newsAt("Fed raises interest rates by 25 basis points", "https://a.com/1", "a.com", now, 90),
		newsAt("Fed raises interest rates by 25 basis points today", "https://b.com/2", "b.com", now, 70),
		newsAt("OPEC agrees to extend production cuts", "https://c.com/3", "c.com", now, 75),
	}
	out := Dedup(items, 0.85)
	require.Len(t, out, 2)

	// No pair of survivors may exceed the similarity threshold and no
	// two survivors may share a canonical URL.
	urls := map[string]bool{}
	for i := range out {
		if out[i].CanonicalURL != "" {
			assert.False(t, urls[out[i].CanonicalURL])
			urls[out[i].CanonicalURL] = true
		}
		for j := i + 1; j < len(out); j++ {
			assert.Less(t, TokenSetRatio(out[i].Title, out[j].Title), 0.85)
		}
	}
}

func TestDedupOtherSourcesCapped(t *testing.T) {
	now := time.Now().UTC()
	items := make([]models.NewsItem, 0, 6)
	for _, d := range []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com"} {
		items = append(items, newsAt("Bitcoin ETF sees record inflows", "https://"+d+"/p", d, now, 50))
	}
	out := Dedup(items, 0.85)
	require.Len(t, out, 1)
	assert.LessOrEqual(t, len(out[0].OtherSources), 3)
}

func TestApplyDomainSoftCap(t *testing.T) {
	now := time.Now().UTC()
	var items []models.NewsItem
	for i := 0; i < 7; i++ {
		items = append(items, newsAt("story", "https://x.com/a", "x.com", now, float64(100-i)))
	}
	items = append(items, newsAt("other", "https://y.com/b", "y.com", now, 10))

	out := applyDomainSoftCap(items, 5)
	counts := map[string]int{}
	for _, it := range out {
		counts[it.SourceDomain]++
	}
	assert.Equal(t, 5, counts["x.com"])
	assert.Equal(t, 1, counts["y.com"])
	// Rank order preserved: x.com survivors are the first five.
	assert.Equal(t, float64(100), out[0].QualityScore)
	assert.Equal(t, float64(96), out[4].QualityScore)
}
