package portfolio

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/intelrun/internal/models"
)

const (
	momentumWindow  = 7
	minMomentumBars = 15
)

// MomentumZ7d computes the 7-day return z-score per held symbol from
// daily bars: the latest rolling 7-bar return standardized against its
// own trailing distribution. Symbols with thin history are omitted.
func (e *Engine) MomentumZ7d(ctx context.Context) map[string]float64 {
	out := make(map[string]float64, len(e.holdings))
	for _, h := range e.holdings {
		if z, ok := e.momentumZ(ctx, h.Symbol); ok {
			out[h.Symbol] = z
		}
	}
	return out
}

func (e *Engine) momentumZ(ctx context.Context, symbol string) (float64, bool) {
	if e.bars == nil {
		return 0, false
	}
	bars, err := e.bars.ListBars(ctx, symbol, volLookback+momentumWindow)
	if err != nil || len(bars) < minMomentumBars {
		return 0, false
	}
	var rets []float64
	for i := momentumWindow; i < len(bars); i++ {
		prev := bars[i-momentumWindow].Close
		if prev <= 0 {
			continue
		}
		rets = append(rets, (bars[i].Close-prev)/prev)
	}
	if len(rets) < 5 {
		return 0, false
	}
	mean, std := stat.MeanStdDev(rets, nil)
	if std <= 0 || math.IsNaN(std) {
		return 0, false
	}
	return (rets[len(rets)-1] - mean) / std, true
}

// SectorRotationFromNews condenses the tagged sector impacts of a news
// batch into a -1..1 rotation signal per sector. MIXED and NEUTRAL
// impacts carry no sign and are skipped.
func SectorRotationFromNews(items []models.NewsItem) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]float64{}
	for i := range items {
		for _, si := range items[i].SectorImpacts {
			sign := 0.0
			switch si.Direction {
			case "UP":
				sign = 1
			case "DOWN":
				sign = -1
			default:
				continue
			}
			sums[si.Sector] += sign * si.ImpactScore / 100
			counts[si.Sector]++
		}
	}
	out := make(map[string]float64, len(sums))
	for sector, total := range sums {
		out[sector] = math.Max(-1, math.Min(1, total/counts[sector]))
	}
	return out
}
