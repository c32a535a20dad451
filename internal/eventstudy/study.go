// Package eventstudy computes pre/post return windows, z-scores and
// volume anomalies around event timestamps from stored price bars.
package eventstudy

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/intelrun/internal/models"
)

const (
	// eps keeps the pre/post volume ratio defined when a window is
	// flat. With pre_avg == 0 the ratio degrades to ~1.0, which is the
	// historical behavior consumers depend on.
	eps = 1e-9

	preWindowBars = 4
	minHistoryZ   = 8
)

// postHorizons are the post-event windows, expressed in bar counts for
// a 15-minute bar grid.
var postHorizons = []struct {
	Label string
	Bars  int
}{
	{"15m", 1},
	{"30m", 2},
	{"1h", 4},
	{"3h", 12},
}

// Window is one measured return window.
type Window struct {
	Ret float64 `json:"ret"` // percent
	Z   float64 `json:"z"`
}

// Study is the full event-study result for one (event, asset) pair.
type Study struct {
	Asset         string            `json:"asset"`
	EventTS       time.Time         `json:"event_ts_utc"`
	AlignedIndex  int               `json:"aligned_index"`
	Pre           Window            `json:"pre"`
	Post          map[string]Window `json:"post"`
	VolumeAnomaly float64           `json:"volume_anomaly"`
	PrePostRatio  float64           `json:"pre_post_ratio"`
	MissingFields []string          `json:"missing_fields,omitempty"`
}

// Compute runs the study over bars sorted oldest-first. Windows that
// cannot be measured are zero-valued and listed in MissingFields; the
// function never fails on short history.
func Compute(asset string, bars []models.PriceBar, eventTS time.Time) Study {
	s := Study{
		Asset:   asset,
		EventTS: eventTS,
		Post:    make(map[string]Window, len(postHorizons)),
	}
	if len(bars) == 0 {
		s.MissingFields = append(s.MissingFields, "bars")
		s.PrePostRatio = 1.0
		return s
	}

	idx := alignedIndex(bars, eventTS)
	s.AlignedIndex = idx

	rets := barReturns(bars)
	sigma := returnSigma(rets)

	// Pre window: return over the preWindowBars bars leading into the
	// event. Insufficient history leaves z at 0.
	if idx >= preWindowBars {
		start := bars[idx-preWindowBars].Close
		end := bars[idx].Close
		if start > 0 {
			ret := (end - start) / start * 100
			s.Pre = Window{Ret: ret, Z: zScore(ret, sigma)}
		}
	} else {
		s.MissingFields = append(s.MissingFields, "pre")
	}

	for _, h := range postHorizons {
		end := idx + h.Bars
		if end >= len(bars) {
			s.MissingFields = append(s.MissingFields, fmt.Sprintf("around.%s", h.Label))
			continue
		}
		start := bars[idx].Close
		if start <= 0 {
			s.MissingFields = append(s.MissingFields, fmt.Sprintf("around.%s", h.Label))
			continue
		}
		ret := (bars[end].Close - start) / start * 100
		s.Post[h.Label] = Window{Ret: ret, Z: zScore(ret, sigma)}
	}

	s.VolumeAnomaly, s.PrePostRatio = volumeAnomaly(bars, idx)
	return s
}

// alignedIndex returns the index of the last bar whose open time is at
// or before the event; an event before the first bar aligns to 0.
func alignedIndex(bars []models.PriceBar, ts time.Time) int {
	idx := 0
	for i := range bars {
		if bars[i].TS.After(ts) {
			break
		}
		idx = i
	}
	return idx
}

// barReturns computes percent close-to-close returns.
func barReturns(bars []models.PriceBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev <= 0 {
			continue
		}
		rets = append(rets, (bars[i].Close-prev)/prev*100)
	}
	return rets
}

// returnSigma is the std-dev of the bar returns, zero when history is
// too short to be meaningful.
func returnSigma(rets []float64) float64 {
	if len(rets) < minHistoryZ {
		return 0
	}
	return stat.StdDev(rets, nil)
}

func zScore(ret, sigma float64) float64 {
	if sigma <= 0 || math.IsNaN(sigma) {
		return 0
	}
	return ret / sigma
}

// volumeAnomaly compares average volume after the event against the
// average before it. The second return is the raw (post+eps)/(pre+eps)
// ratio, kept as-is including its flat-window degradation to ~1.0.
func volumeAnomaly(bars []models.PriceBar, idx int) (anomaly, ratio float64) {
	preStart := idx - preWindowBars
	if preStart < 0 {
		preStart = 0
	}
	postEnd := idx + preWindowBars
	if postEnd > len(bars)-1 {
		postEnd = len(bars) - 1
	}

	preAvg := avgVolume(bars[preStart:idx])
	postAvg := avgVolume(bars[idx+1 : postEnd+1])

	ratio = (postAvg + eps) / (preAvg + eps)
	if preAvg > 0 {
		anomaly = postAvg / preAvg
	}
	return anomaly, ratio
}

func avgVolume(bars []models.PriceBar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}
