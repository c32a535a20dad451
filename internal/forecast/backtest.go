package forecast

import (
	"context"
	"time"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/store"
)

// ReliabilityBucket is one cell of the 5-bucket reliability diagram.
type ReliabilityBucket struct {
	Low          float64 `json:"low"`
	High         float64 `json:"high"`
	Count        int     `json:"count"`
	MeanForecast float64 `json:"mean_forecast"`
	HitRate      float64 `json:"hit_rate"`
}

// TFMetrics is the backtest summary for one timeframe.
type TFMetrics struct {
	TF               string              `json:"tf"`
	HitRate24h       *float64            `json:"hit_rate_24h,omitempty"`
	HitRate7d        *float64            `json:"hit_rate_7d,omitempty"`
	Brier24h         *float64            `json:"brier_24h,omitempty"`
	Brier7d          *float64            `json:"brier_7d,omitempty"`
	FlipRate7d       *float64            `json:"flip_rate_7d,omitempty"`
	Coverage24h      float64             `json:"coverage_24h"`
	Reliability      []ReliabilityBucket `json:"reliability"`
	CalibrationError *float64            `json:"mean_calibration_error,omitempty"`
	Samples7d        int                 `json:"samples_7d"`
}

// MetricsLister is the store slice the backtest reader needs.
type MetricsLister interface {
	ListScoredSince(ctx context.Context, tf string, since time.Time) ([]store.ScoredForecast, error)
	ListForecastsSince(ctx context.Context, tf string, since time.Time) ([]models.Forecast, error)
}

// ComputeMetrics assembles per-timeframe backtest metrics from stored
// forecasts and their scores.
func ComputeMetrics(ctx context.Context, lister MetricsLister, now time.Time) (map[string]TFMetrics, error) {
	out := make(map[string]TFMetrics, len(models.Timeframes))
	for _, tf := range models.Timeframes {
		scored7d, err := lister.ListScoredSince(ctx, tf, now.AddDate(0, 0, -7))
		if err != nil {
			return nil, err
		}
		all7d, err := lister.ListForecastsSince(ctx, tf, now.AddDate(0, 0, -7))
		if err != nil {
			return nil, err
		}

		m := TFMetrics{TF: tf, Samples7d: len(scored7d)}
		cutoff24h := now.Add(-24 * time.Hour)

		var scored24h []store.ScoredForecast
		for _, s := range scored7d {
			if !s.Forecast.TS.Before(cutoff24h) {
				scored24h = append(scored24h, s)
			}
		}
		m.HitRate24h, m.Brier24h = hitAndBrier(scored24h)
		m.HitRate7d, m.Brier7d = hitAndBrier(scored7d)
		m.FlipRate7d = flipRate(all7d)
		m.Coverage24h = coverage(all7d, tf, cutoff24h)
		m.Reliability, m.CalibrationError = reliability(scored7d)
		out[tf] = m
	}
	return out, nil
}

func hitAndBrier(scored []store.ScoredForecast) (hitRate, brier *float64) {
	if len(scored) == 0 {
		return nil, nil
	}
	hits, briers := 0.0, 0.0
	for _, s := range scored {
		hits += float64(s.Score.Hit)
		briers += s.Score.Brier
	}
	n := float64(len(scored))
	h, b := hits/n, briers/n
	return &h, &b
}

// flipRate is the proportion of adjacent (tf, target) forecast pairs
// whose direction changed.
func flipRate(forecasts []models.Forecast) *float64 {
	prev := make(map[string]models.Direction)
	pairs, flips := 0, 0
	for _, f := range forecasts {
		if d, ok := prev[f.Target]; ok {
			pairs++
			if d != f.Direction {
				flips++
			}
		}
		prev[f.Target] = f.Direction
	}
	if pairs == 0 {
		return nil
	}
	r := float64(flips) / float64(pairs)
	return &r
}

// coverage compares actual 24h emissions against the per-target
// expectation of one forecast per timeframe interval.
func coverage(forecasts []models.Forecast, tf string, cutoff time.Time) float64 {
	emitted := 0
	for _, f := range forecasts {
		if !f.TS.Before(cutoff) {
			emitted++
		}
	}
	expected := 24 * 60 / models.TimeframeMinutes[tf] * len(models.Targets)
	if expected == 0 {
		return 0
	}
	c := float64(emitted) / float64(expected)
	if c > 1 {
		c = 1
	}
	return c
}

const reliabilityBuckets = 5

// reliability bins scored forecasts by confidence into 5 equal-width
// buckets and reports the mean |confidence − hit rate| over non-empty
// buckets.
func reliability(scored []store.ScoredForecast) ([]ReliabilityBucket, *float64) {
	buckets := make([]ReliabilityBucket, reliabilityBuckets)
	confSums := make([]float64, reliabilityBuckets)
	hitSums := make([]float64, reliabilityBuckets)
	for i := range buckets {
		buckets[i].Low = float64(i) / reliabilityBuckets
		buckets[i].High = float64(i+1) / reliabilityBuckets
	}
	for _, s := range scored {
		idx := int(s.Forecast.Confidence * reliabilityBuckets)
		if idx >= reliabilityBuckets {
			idx = reliabilityBuckets - 1
		}
		buckets[idx].Count++
		confSums[idx] += s.Forecast.Confidence
		hitSums[idx] += float64(s.Score.Hit)
	}

	errSum, nonEmpty := 0.0, 0
	for i := range buckets {
		if buckets[i].Count == 0 {
			continue
		}
		n := float64(buckets[i].Count)
		buckets[i].MeanForecast = confSums[i] / n
		buckets[i].HitRate = hitSums[i] / n
		diff := buckets[i].MeanForecast - buckets[i].HitRate
		if diff < 0 {
			diff = -diff
		}
		errSum += diff
		nonEmpty++
	}
	if nonEmpty == 0 {
		return buckets, nil
	}
	mce := errSum / float64(nonEmpty)
	return buckets, &mce
}
