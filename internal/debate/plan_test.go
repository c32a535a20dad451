package debate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/portfolio"
)

var validIDs = map[string]bool{"E001": true, "E002": true, "E003": true}

const goodPlan = `{
  "executiveSummary": ["Risk-off tape", "Trim the chip sleeve"],
  "trimSignals": [
    {"symbol": "NVDA", "action": "trim", "rationale": "stretched", "evidence_ids": ["E001", "E002"]}
  ],
  "sectorFocus": ["TECH"],
  "scenarios": {"base": ["sideways"], "risk": ["drawdown on CPI surprise"]}
}`

func TestParsePlanValid(t *testing.T) {
	p, err := ParsePlan([]byte(goodPlan), validIDs)
	require.NoError(t, err)
	assert.Len(t, p.ExecutiveSummary, 2)
	require.Len(t, p.TrimSignals, 1)
	assert.Equal(t, "NVDA", p.TrimSignals[0].Symbol)
}

func TestParsePlanStripsMarkdownFence(t *testing.T) {
	fenced := "```json\n" + goodPlan + "\n```"
	_, err := ParsePlan([]byte(fenced), validIDs)
	assert.NoError(t, err)
}

func TestParsePlanRejectsUnknownFields(t *testing.T) {
	raw := `{"executiveSummary": ["x"], "confidence": 0.9}`
	_, err := ParsePlan([]byte(raw), validIDs)
	assert.Error(t, err)
}

func TestParsePlanRejectsBadEvidence(t *testing.T) {
	raw := `{
	  "executiveSummary": ["x"],
	  "trimSignals": [{"symbol": "NVDA", "action": "trim", "rationale": "r", "evidence_ids": ["E999"]}]
	}`
	_, err := ParsePlan([]byte(raw), validIDs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown evidence_id")

	raw = `{
	  "executiveSummary": ["x"],
	  "trimSignals": [{"symbol": "NVDA", "action": "trim", "rationale": "r", "evidence_ids": []}]
	}`
	_, err = ParsePlan([]byte(raw), validIDs)
	assert.Error(t, err)
}

func TestParsePlanRejectsBadAction(t *testing.T) {
	raw := `{
	  "executiveSummary": ["x"],
	  "trimSignals": [{"symbol": "NVDA", "action": "yolo", "rationale": "r", "evidence_ids": ["E001"]}]
	}`
	_, err := ParsePlan([]byte(raw), validIDs)
	assert.Error(t, err)
}

func TestParsePlanRejectsEmptySummary(t *testing.T) {
	_, err := ParsePlan([]byte(`{"executiveSummary": []}`), validIDs)
	assert.Error(t, err)
}

func scoringContext(holdState string) *Context {
	c := &Context{HoldState: holdState}
	c.Constraints.TurnoverCap = 0.05
	c.EvidenceBySym = map[string][]string{"NVDA": {"E001", "E002"}}
	c.EvidenceBySec = map[string][]string{"TECH": {"E003"}}
	return c
}

func TestScorePlanRewardsEvidenceOverlap(t *testing.T) {
	p, err := ParsePlan([]byte(goodPlan), validIDs)
	require.NoError(t, err)
	c := scoringContext("ACT")

	withOverlap := ScorePlan(&p, c)

	blind := p
	blind.TrimSignals = []TrimSignal{{Symbol: "XOM", Action: "trim", Rationale: "r", EvidenceIDs: []string{"E003"}}}
	withoutOverlap := ScorePlan(&blind, c)
	assert.Greater(t, withOverlap, withoutOverlap)
	assert.LessOrEqual(t, withOverlap, 100.0)
}

func TestScorePlanPenalizesTradingInHold(t *testing.T) {
	p, err := ParsePlan([]byte(goodPlan), validIDs)
	require.NoError(t, err)

	hold := scoringContext("HOLD:no_news_coverage")
	act := scoringContext("ACT")
	assert.Less(t, ScorePlan(&p, hold), ScorePlan(&p, act))

	// An all-hold plan is rewarded under HOLD.
	passive := p
	passive.TrimSignals = []TrimSignal{{Symbol: "NVDA", Action: "hold", Rationale: "r", EvidenceIDs: []string{"E001"}}}
	assert.Greater(t, ScorePlan(&passive, hold), ScorePlan(&p, hold))
}

func TestCompareOutcomes(t *testing.T) {
	aWins, outcome := Compare(80, 60, true, true)
	assert.True(t, aWins)
	assert.Equal(t, OutcomeWin, outcome)

	_, outcome = Compare(70, 68, true, true)
	assert.Equal(t, OutcomeTie, outcome)

	aWins, outcome = Compare(0, 50, false, true)
	assert.False(t, aWins)
	assert.Equal(t, OutcomeSolo, outcome)

	_, outcome = Compare(0, 0, false, false)
	assert.Equal(t, OutcomeFail, outcome)
}

func sampleContextInput() ContextInput {
	return ContextInput{
		Base: "USD", Window: "24h", Horizon: "24h",
		Valuation: portfolio.Valuation{
			Positions: []portfolio.Position{
				{Holding: portfolio.Holding{Symbol: "NVDA", Sector: "TECH"}, Weight: 0.3, ChangePct: 2.1},
			},
			Impacts: []portfolio.SymbolImpact{
				{Symbol: "NVDA", Score: 0.5, TopMatches: []portfolio.ImpactMatch{{Title: "Nvidia beats"}}},
			},
		},
		Plans: []portfolio.Plan{{Period: "daily", Mode: "ACT", TurnoverCap: 0.05}},
		Items: []models.NewsItem{
			{Title: "Nvidia beats", FinalRankScore: 80,
				SectorImpacts: []models.SectorImpact{{Sector: "TECH", ImpactScore: 60}}},
			{Title: "Oil spikes", FinalRankScore: 70},
		},
		Forecasts: []models.Forecast{{TF: "1h", Target: "BTC", Direction: models.DirUp, Confidence: 0.7}},
	}
}

func TestBuildContextDeterministic(t *testing.T) {
	a := BuildContext(sampleContextInput())
	b := BuildContext(sampleContextInput())
	require.NotEmpty(t, a.Hash)
	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, a.CacheKey(), b.CacheKey())

	// Different input, different hash.
	in := sampleContextInput()
	in.Items = in.Items[:1]
	c := BuildContext(in)
	assert.NotEqual(t, a.Hash, c.Hash)
}

func TestBuildContextEvidenceIndex(t *testing.T) {
	c := BuildContext(sampleContextInput())
	require.Len(t, c.Evidence, 2)
	assert.Equal(t, "E001", c.Evidence[0].ID)
	assert.True(t, c.ValidEvidenceIDs()["E002"])
	assert.False(t, c.ValidEvidenceIDs()["E003"])

	assert.Equal(t, []string{"E001"}, c.EvidenceBySym["NVDA"])
	assert.Equal(t, []string{"E001"}, c.EvidenceBySec["TECH"])
	assert.Equal(t, "UP conf=0.70", c.EngineSignals["1h/BTC"])
}

func TestBuildContextCapsEvidence(t *testing.T) {
	in := sampleContextInput()
	in.Items = nil
	for i := 0; i < 80; i++ {
		in.Items = append(in.Items, models.NewsItem{Title: "item", FinalRankScore: float64(i)})
	}
	c := BuildContext(in)
	assert.Len(t, c.Evidence, maxEvidenceEntries)
	assert.Len(t, c.GlobalNews, 10)
}
