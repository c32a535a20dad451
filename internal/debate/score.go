package debate

import (
	"math"
	"strings"
)

const tieMargin = 5.0

// ScorePlan rates a validated plan 0..100 against the context:
// constraint compliance, evidence consistency, pointer overlap and a
// preference for low turnover.
func ScorePlan(p *DebatePlan, c *Context) float64 {
	score := 40.0 // base for passing schema validation

	// Constraint compliance: respect a HOLD state; stay inside the
	// turnover budget implied by the trim count.
	holding := strings.HasPrefix(c.HoldState, "HOLD")
	activeTrims := 0
	for _, ts := range p.TrimSignals {
		if ts.Action != "hold" {
			activeTrims++
		}
	}
	if holding {
		if activeTrims == 0 {
			score += 20
		} else {
			score -= 15 * float64(activeTrims)
		}
	} else {
		score += 10
		if float64(activeTrims)*0.03 <= c.Constraints.TurnoverCap+1e-9 {
			score += 10
		}
	}

	// Evidence consistency: every citation is valid by construction;
	// reward trims whose evidence actually points at the symbol.
	overlap := 0
	for _, ts := range p.TrimSignals {
		ids := c.EvidenceBySym[ts.Symbol]
		for _, cited := range ts.EvidenceIDs {
			for _, id := range ids {
				if cited == id {
					overlap++
				}
			}
		}
	}
	score += math.Min(15, float64(overlap)*5)

	// Sector focus overlap with the sector evidence index.
	for _, sector := range p.SectorFocus {
		if len(c.EvidenceBySec[sector]) > 0 {
			score += 3
		}
	}

	// Turnover preference: fewer moves score higher.
	score += float64(maxTrimSignals-activeTrims) * 2

	// Completeness of the scenario split.
	if len(p.Scenarios.Base) > 0 && len(p.Scenarios.Risk) > 0 {
		score += 5
	}

	return math.Max(0, math.Min(100, score))
}

// Outcome names the comparative result of two scored plans.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeTie  Outcome = "tie"
	OutcomeSolo Outcome = "solo"
	OutcomeFail Outcome = "fail"
)

// Compare picks the winner between two provider scores; a gap under
// tieMargin is a tie.
func Compare(scoreA, scoreB float64, okA, okB bool) (winnerIsA bool, outcome Outcome) {
	switch {
	case okA && okB:
		if math.Abs(scoreA-scoreB) < tieMargin {
			return scoreA >= scoreB, OutcomeTie
		}
		return scoreA > scoreB, OutcomeWin
	case okA:
		return true, OutcomeSolo
	case okB:
		return false, OutcomeSolo
	default:
		return false, OutcomeFail
	}
}
