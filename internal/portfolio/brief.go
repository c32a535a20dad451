package portfolio

import (
	"fmt"
	"math"
	"sort"
)

const (
	briefTopMovers  = 3
	briefTopImpacts = 3
)

// BuildBrief condenses a valuation and its plans into the daily brief.
func BuildBrief(v Valuation, plans []Plan) Brief {
	b := Brief{
		AsOf:      v.AsOf,
		TotalUSD:  v.TotalUSD,
		RiskFlags: v.Risk.Flags,
		Plans:     plans,
	}

	weightedChange := 0.0
	for _, p := range v.Positions {
		weightedChange += p.Weight * p.ChangePct
	}
	b.DayChange = weightedChange

	movers := make([]Position, len(v.Positions))
	copy(movers, v.Positions)
	sort.SliceStable(movers, func(i, j int) bool {
		return math.Abs(movers[i].ChangePct) > math.Abs(movers[j].ChangePct)
	})
	if len(movers) > briefTopMovers {
		movers = movers[:briefTopMovers]
	}
	b.TopMovers = movers

	impacts := v.Impacts
	if len(impacts) > briefTopImpacts {
		impacts = impacts[:briefTopImpacts]
	}
	b.TopImpacts = impacts

	b.Headline = headline(b)
	return b
}

func headline(b Brief) string {
	tone := "flat"
	switch {
	case b.DayChange >= 1.0:
		tone = "up strongly"
	case b.DayChange >= 0.2:
		tone = "up"
	case b.DayChange <= -1.0:
		tone = "down sharply"
	case b.DayChange <= -0.2:
		tone = "down"
	}
	mode := "no plan"
	for _, p := range b.Plans {
		if p.Period == "daily" {
			mode = p.Mode
			break
		}
	}
	return fmt.Sprintf("Portfolio %s (%.2f%%), daily plan: %s", tone, b.DayChange, mode)
}
