package news

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/models"
)

func TestMatchEntitiesWordBoundary(t *testing.T) {
	wl := DefaultWatchlist()
	assert.Contains(t, matchEntities("Bitcoin hits new all-time high", wl), "BTC")
	assert.Empty(t, matchEntities("Weather improves across Europe", wl))
}

// Annotation fans out across goroutines and request watchlists keep
// introducing fresh aliases, so the regex cache must be safe under
// concurrent first-time compiles (run with -race).
func TestWholeWordReConcurrentAliases(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				alias := fmt.Sprintf("SYM%d_%d", g, i)
				re := wholeWordRe(alias)
				assert.True(t, re.MatchString("prefix "+alias+" suffix"))
			}
		}(g)
	}
	wg.Wait()
}

func TestMatchEntitiesShortAliasNeedsContext(t *testing.T) {
	wl := DefaultWatchlist()
	assert.Empty(t, matchEntities("ETH climbs", wl))
	assert.Contains(t, matchEntities("ETH climbs as crypto market rallies", wl), "ETH")
}

func TestMatchPersonPowellHawkish(t *testing.T) {
	pe := matchPerson("Powell says rates to stay higher for longer amid persistent inflation")
	require.NotNil(t, pe)
	assert.Equal(t, "Jerome Powell", pe.Person)
	assert.Equal(t, "CENTRAL_BANK_HEADS", pe.Group)
	assert.Equal(t, models.StanceHawkish, pe.Stance)
	assert.GreaterOrEqual(t, pe.Impact, 70.0)
	assert.Equal(t, 75.0, pe.Confidence)
}

func TestMatchPersonUnknownActor(t *testing.T) {
	assert.Nil(t, matchPerson("Local mayor opens new bridge"))
}

func TestAnnotateHawkishSetsDownDirection(t *testing.T) {
	now := time.Now().UTC()
	item := newsAt("Powell signals rate hike as inflation persistent", "https://reuters.com/p", "reuters.com", now, 0)
	annotateItem(&item, DefaultWatchlist(), now, false, PickProfile("default", false, 0))
	require.NotNil(t, item.PersonEvent)
	assert.Equal(t, "DOWN", item.ExpectedDir)
	assert.Contains(t, item.Tags, "PERSONAL")
	assert.Contains(t, item.AssetClassBias, "risk_off")
}

func TestMatchCountriesAmbiguity(t *testing.T) {
	// Turkey without political context and outside REGIONAL stays untagged.
	assert.Empty(t, matchCountries("Turkey prices rise before holidays", ""))
	assert.Contains(t, matchCountries("Turkey central bank raises policy rate", ""), "Turkey")
	assert.Contains(t, matchCountries("Turkey inflation report due", string(models.CatRegional)), "Turkey")
	assert.Contains(t, matchCountries("Kremlin responds to new sanctions", ""), "Russia")
}

func TestClassifyEventTypeFirstMatch(t *testing.T) {
	assert.Equal(t, "MACRO_RATES_INFLATION", classifyEventType("Fed weighs rate cut as CPI cools"))
	assert.Equal(t, "CRYPTO_MARKET_STRUCTURE", classifyEventType("Spot bitcoin ETF sees record inflows"))
	assert.Equal(t, "SECURITY_INCIDENT", classifyEventType("Exchange hacked, stolen funds traced"))
	assert.Equal(t, "OTHER", classifyEventType("A quiet afternoon"))
}

func TestClassifyScope(t *testing.T) {
	scope, score := classifyScope("Analysts warn of contagion across lenders", "OTHER", nil)
	assert.Equal(t, models.ScopeSystemic, scope)
	assert.Equal(t, 95.0, score)

	scope, _ = classifyScope("Fed decision due", "MACRO_RATES_INFLATION", nil)
	assert.Equal(t, models.ScopeMacro, scope)

	scope, _ = classifyScope("Quarterly results beat", "EARNINGS_GUIDANCE", nil)
	assert.Equal(t, models.ScopeCompany, scope)
}

func TestMatchSectorImpacts(t *testing.T) {
	impacts := matchSectorImpacts("OPEC agrees surprise production cut, oil rallies")
	require.NotEmpty(t, impacts)
	assert.Equal(t, "ENERGY", impacts[0].Sector)
	assert.Equal(t, "UP", impacts[0].Direction)
	assert.Equal(t, 70.0, impacts[0].ImpactScore) // 55 base + 15 boost

	assert.Empty(t, matchSectorImpacts("solar panels get renewable subsidy from oil fund"))
}

func TestRelevanceTargetsStablecoinStory(t *testing.T) {
	item := models.NewsItem{
		Title: "Senate passes landmark digital dollar bill",
		Tags:  []string{"Stablecoin"},
		Scope: models.ScopeSector,
	}
	targets := RelevanceTargets(&item)
	require.NotEmpty(t, targets)
	assert.Equal(t, models.TargetStables, targets[0].Target)
	assert.InDelta(t, 0.90*StablecoinFactor, targets[0].Relevance, 1e-9)

	byName := map[string]float64{}
	for _, tr := range targets {
		byName[tr.Target] = tr.Relevance
	}
	assert.Equal(t, 0.55, byName[models.TargetAlts])
	assert.Equal(t, 0.45, byName[models.TargetETH])
	assert.Equal(t, 0.35, byName[models.TargetBTC])
}

func TestRelevanceTargetsETFStory(t *testing.T) {
	item := models.NewsItem{
		Title:     "Spot bitcoin ETF sees record inflows",
		EventType: "CRYPTO_MARKET_STRUCTURE",
		Scope:     models.ScopeSector,
	}
	targets := RelevanceTargets(&item)
	require.NotEmpty(t, targets)
	assert.Equal(t, models.TargetBTC, targets[0].Target)
	assert.Equal(t, 0.85, targets[0].Relevance)
}

func TestRelevanceTargetsAlwaysCoverPrimaries(t *testing.T) {
	item := models.NewsItem{Title: "Nothing in particular"}
	targets := RelevanceTargets(&item)
	byName := map[string]float64{}
	for _, tr := range targets {
		byName[tr.Target] = tr.Relevance
	}
	for _, primary := range models.Targets {
		assert.Greater(t, byName[primary], 0.0, primary)
	}
}

func TestRelevanceTargetsPseudoTargets(t *testing.T) {
	item := models.NewsItem{
		Title:      "Oil pipeline attack disrupts supply",
		EventType:  "ENERGY_SUPPLY_OPEC",
		Scope:      models.ScopeGeopolitics,
		ScopeScore: 75,
		SectorImpacts: []models.SectorImpact{
			{Sector: "ENERGY", ImpactScore: 70},
		},
	}
	byName := map[string]float64{}
	for _, tr := range RelevanceTargets(&item) {
		byName[tr.Target] = tr.Relevance
	}
	assert.InDelta(t, 0.75, byName["SCOPE:GEOPOLITICS"], 1e-9)
	assert.InDelta(t, 0.70, byName["SECTOR:ENERGY"], 1e-9)
}

func TestRelevanceTargetsDeterministic(t *testing.T) {
	item := models.NewsItem{
		Title:     "Spot bitcoin ETF sees record inflows",
		EventType: "CRYPTO_MARKET_STRUCTURE",
		Scope:     models.ScopeSector,
	}
	first := RelevanceTargets(&item)
	second := RelevanceTargets(&item)
	assert.Equal(t, first, second)
}
