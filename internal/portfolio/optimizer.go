package portfolio

import (
	"fmt"
	"math"
	"sort"
)

// Horizon caps and optimizer gates.
const (
	maxActionsPerSide = 3
	maxDeltaWeight    = 0.03

	minCoverageRatio  = 0.20
	maxLowSignalRatio = 0.50

	// DefaultMaxWeight and DefaultMaxCryptoWeight are the per-position
	// and crypto-bucket weight caps when a caller supplies none.
	DefaultMaxWeight       = 0.25
	DefaultMaxCryptoWeight = 0.30
)

type horizon struct {
	period      string
	turnoverCap float64
}

var horizons = []horizon{
	{"daily", 0.05},
	{"weekly", 0.15},
	{"monthly", 0.30},
}

// score component weights and penalty weights.
var (
	scoreWeights = struct {
		momentum, newsDirect, newsIndirect, regime, sectorRotation float64
	}{0.30, 0.25, 0.10, 0.20, 0.15}

	penaltyWeights = struct {
		vol, concentration, fx, txnCost float64
	}{0.20, 0.15, 0.10, 0.05}
)

// OptimizerInput bundles everything the optimizer scores against.
type OptimizerInput struct {
	Valuation       Valuation
	MomentumZ7d     map[string]float64 // per symbol
	SectorRotation  map[string]float64 // per sector, -1..1
	RegimeScore     float64            // -1..1, risk-on positive
	MaxWeight       float64
	MaxCryptoWeight float64
}

// Optimize produces one plan per horizon. All horizons share the same
// scoring pass; only the turnover budget differs. Any HOLD-gate
// condition holds every period.
func Optimize(in OptimizerInput) []Plan {
	if in.MaxWeight <= 0 {
		in.MaxWeight = DefaultMaxWeight
	}
	if in.MaxCryptoWeight <= 0 {
		in.MaxCryptoWeight = DefaultMaxCryptoWeight
	}

	coverageTotal, lowSignalRatio := coverageStats(in.Valuation)
	coverageRatio := 0.0
	if n := len(in.Valuation.Positions); n > 0 {
		coverageRatio = coverageTotal / float64(n)
	}
	holdReason := holdGate(coverageTotal, coverageRatio, lowSignalRatio)

	scores := scorePositions(in)
	scale := math.Max(0.3, math.Min(1.0, coverageRatio))

	plans := make([]Plan, 0, len(horizons))
	for _, h := range horizons {
		plan := Plan{
			Period:        h.period,
			TurnoverCap:   h.turnoverCap * scale,
			CoverageRatio: coverageRatio,
		}
		if holdReason != "" {
			plan.Mode = "HOLD"
			plan.HoldReason = holdReason
			plan.Actions = []Action{}
		} else {
			plan.Mode = "ACT"
			plan.Actions = buildActions(in, scores, plan.TurnoverCap)
		}
		plans = append(plans, plan)
	}
	return plans
}

// coverageStats counts symbols with any news attribution and the share
// of those that are low-signal only.
func coverageStats(v Valuation) (covered float64, lowSignalRatio float64) {
	if len(v.Impacts) == 0 {
		return 0, 0
	}
	lowSignal := 0
	for _, si := range v.Impacts {
		covered++
		if si.LowSignal {
			lowSignal++
		}
	}
	return covered, float64(lowSignal) / covered
}

func holdGate(coverageTotal, coverageRatio, lowSignalRatio float64) string {
	switch {
	case coverageTotal == 0:
		return "no_news_coverage"
	case coverageRatio < minCoverageRatio:
		return fmt.Sprintf("coverage_ratio_%.2f_below_%.2f", coverageRatio, minCoverageRatio)
	case lowSignalRatio > maxLowSignalRatio:
		return fmt.Sprintf("low_signal_ratio_%.2f_above_%.2f", lowSignalRatio, maxLowSignalRatio)
	default:
		return ""
	}
}

type symbolScore struct {
	symbol string
	score  float64
}

func scorePositions(in OptimizerInput) []symbolScore {
	impacts := make(map[string]*SymbolImpact, len(in.Valuation.Impacts))
	for i := range in.Valuation.Impacts {
		impacts[in.Valuation.Impacts[i].Symbol] = &in.Valuation.Impacts[i]
	}

	scores := make([]symbolScore, 0, len(in.Valuation.Positions))
	for _, p := range in.Valuation.Positions {
		s := 0.0
		s += scoreWeights.momentum * clamp1(in.MomentumZ7d[p.Symbol]/2)
		if si, ok := impacts[p.Symbol]; ok {
			direct, indirect := splitImpact(si)
			s += scoreWeights.newsDirect * clamp1(direct)
			s += scoreWeights.newsIndirect * clamp1(indirect)
		}
		regime := in.RegimeScore
		if p.IsCrypto {
			regime *= 1.5 // crypto amplifies the risk regime
		}
		s += scoreWeights.regime * clamp1(regime)
		s += scoreWeights.sectorRotation * clamp1(in.SectorRotation[p.Sector])

		s -= penaltyWeights.vol * clamp1(in.Valuation.Risk.Vol30d*10)
		s -= penaltyWeights.concentration * clamp1((p.Weight-in.MaxWeight)*4)
		if p.Currency == "USD" && in.Valuation.Risk.USDExposure >= fxRiskUpFloor {
			s -= penaltyWeights.fx
		}
		s -= penaltyWeights.txnCost

		scores = append(scores, symbolScore{symbol: p.Symbol, score: s})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].symbol < scores[j].symbol
	})
	return scores
}

func splitImpact(si *SymbolImpact) (direct, indirect float64) {
	total := si.Score
	if si.DirectCount+si.SectorCount == 0 {
		return 0, 0
	}
	directShare := float64(si.DirectCount) / float64(si.DirectCount+si.SectorCount)
	return total * directShare, total * (1 - directShare)
}

// buildActions takes up to three increases from the top and three
// decreases from the bottom, skipping increases that would breach the
// weight caps.
func buildActions(in OptimizerInput, scores []symbolScore, turnoverCap float64) []Action {
	delta := math.Min(turnoverCap/2, maxDeltaWeight)
	positions := make(map[string]Position, len(in.Valuation.Positions))
	cryptoWeight := 0.0
	for _, p := range in.Valuation.Positions {
		positions[p.Symbol] = p
		if p.IsCrypto {
			cryptoWeight += p.Weight
		}
	}

	var actions []Action
	ups := 0
	for _, s := range scores {
		if ups >= maxActionsPerSide || s.score <= 0 {
			break
		}
		p := positions[s.symbol]
		if p.Weight+delta > in.MaxWeight {
			continue
		}
		if p.IsCrypto && cryptoWeight+delta > in.MaxCryptoWeight {
			continue
		}
		actions = append(actions, Action{
			Symbol:      s.symbol,
			Side:        "increase",
			DeltaWeight: delta,
			Score:       s.score,
			Rationale:   "top composite score",
		})
		ups++
	}

	downs := 0
	for i := len(scores) - 1; i >= 0 && downs < maxActionsPerSide; i-- {
		s := scores[i]
		if s.score >= 0 {
			break
		}
		p := positions[s.symbol]
		if p.Weight <= 0 {
			continue
		}
		actions = append(actions, Action{
			Symbol:      s.symbol,
			Side:        "decrease",
			DeltaWeight: math.Min(delta, p.Weight),
			Score:       s.score,
			Rationale:   "bottom composite score",
		})
		downs++
	}
	return actions
}

func clamp1(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
