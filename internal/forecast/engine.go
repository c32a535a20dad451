package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/metrics"
	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/store"
)

const (
	defaultNeutralBand  = 0.08
	flipHysteresis      = 0.12
	majorImpact         = 70.0
	minConfidence       = 0.52
	maxConfidence       = 0.95
	confidenceDeltaGate = 0.10

	baseMarketWeight = 0.55
	baseNewsWeight   = 0.45

	adaptWindowDays = 7
	adaptShrink     = 0.75
	adaptGrow       = 1.2
	adaptBadBrier   = 0.30
	adaptBadHit     = 0.45
	adaptGoodBrier  = 0.18
	adaptGoodHit    = 0.55
)

// minHoldMinutes is the per-timeframe hold window before a direction
// flip is honored without a major event.
var minHoldMinutes = map[string]int{
	"15m": 10,
	"1h":  30,
	"3h":  60,
	"6h":  120,
}

// ForecastStore is the slice of the store the engine uses.
type ForecastStore interface {
	LatestForecast(ctx context.Context, tf, target string) (models.Forecast, bool, error)
	InsertForecast(ctx context.Context, f models.Forecast) error
	ListScoredSince(ctx context.Context, tf string, since time.Time) ([]store.ScoredForecast, error)
	UnscoredExpired(ctx context.Context, now time.Time) ([]models.Forecast, error)
	InsertScore(ctx context.Context, sc models.ForecastScore) error
	CloseAt(ctx context.Context, asset string, ts time.Time) (float64, bool, error)
}

// Engine fuses signals and persists forecasts under hysteresis.
type Engine struct {
	store       ForecastStore
	neutralBand float64
	halfLife    float64 // news-decay half-life, hours
	now         func() time.Time
	log         zerolog.Logger
}

// NewEngine builds the engine. Zero neutralBand and halfLifeHours fall
// back to the documented defaults.
func NewEngine(st ForecastStore, neutralBand, halfLifeHours float64, log zerolog.Logger) *Engine {
	if neutralBand <= 0 {
		neutralBand = defaultNeutralBand
	}
	if halfLifeHours <= 0 {
		halfLifeHours = defaultHalfLifeHours
	}
	return &Engine{
		store:       st,
		neutralBand: neutralBand,
		halfLife:    halfLifeHours,
		now:         time.Now,
		log:         log.With().Str("component", "forecast").Logger(),
	}
}

// RunAll computes and (where gated in) emits a forecast per
// (tf, target). Per-pair failures are logged and skipped so one bad
// pair never blocks the sweep. Returns the emitted forecasts.
func (e *Engine) RunAll(ctx context.Context, snap *models.MarketSnapshot, clusters []models.EventCluster) []models.Forecast {
	now := e.now()
	var emitted []models.Forecast
	for _, tf := range models.Timeframes {
		platt := e.fitPlatt(ctx, tf, now)
		wMarket, wNews := e.adaptiveWeights(ctx, tf, now)
		for _, target := range models.Targets {
			f, ok, err := e.runOne(ctx, snap, clusters, tf, target, wMarket, wNews, platt, now)
			if err != nil {
				e.log.Warn().Err(err).Str("tf", tf).Str("target", target).Msg("forecast pair failed")
				continue
			}
			if ok {
				emitted = append(emitted, f)
				metrics.ForecastEmissions.WithLabelValues(tf, target).Inc()
			}
		}
	}
	return emitted
}

func (e *Engine) runOne(ctx context.Context, snap *models.MarketSnapshot, clusters []models.EventCluster,
	tf, target string, wMarket, wNews float64, platt PlattModel, now time.Time) (models.Forecast, bool, error) {

	marketScore, marketDrivers := MarketSignal(snap, target)
	newsScore, newsDrivers := NewsSignal(clusters, target, snap.MacroRiskOff, e.halfLife, now)
	raw := clipTo(wMarket*marketScore+wNews*newsScore, 1)
	dir := e.direction(raw)

	prev, hasPrev, err := e.store.LatestForecast(ctx, tf, target)
	if err != nil {
		return models.Forecast{}, false, err
	}
	major := HasMajorEvent(clusters, majorImpact, e.halfLife, now)

	if hasPrev && dir != prev.Direction && !major {
		elapsed := now.Sub(prev.TS)
		hold := time.Duration(minHoldMinutes[tf]) * time.Minute
		if elapsed < hold || math.Abs(raw-prev.RawScore) < flipHysteresis {
			dir = prev.Direction
			raw = prev.RawScore
		}
	}

	base := minConfidence + (1-minConfidence)*math.Min(1, math.Abs(raw))
	conf := platt.Calibrate(math.Abs(raw), base)
	conf = math.Max(minConfidence, math.Min(maxConfidence, conf))

	// Emission gate.
	if hasPrev {
		elapsed := now.Sub(prev.TS)
		half := time.Duration(models.TimeframeMinutes[tf]) * time.Minute / 2
		if elapsed < half && dir == prev.Direction && math.Abs(conf-prev.Confidence) < confidenceDeltaGate {
			return models.Forecast{}, false, nil
		}
	}

	f := models.Forecast{
		ID:            uuid.NewString(),
		TS:            now,
		TF:            tf,
		Target:        target,
		Direction:     dir,
		Confidence:    conf,
		RawScore:      raw,
		ExpiresAt:     now.Add(time.Duration(models.TimeframeMinutes[tf]) * time.Minute),
		MarketDrivers: marketDrivers,
		NewsDrivers:   newsDrivers,
		Rationale:     rationale(dir, marketScore, newsScore),
	}
	if err := e.store.InsertForecast(ctx, f); err != nil {
		return models.Forecast{}, false, err
	}
	return f, true, nil
}

func (e *Engine) direction(raw float64) models.Direction {
	switch {
	case raw >= e.neutralBand:
		return models.DirUp
	case raw <= -e.neutralBand:
		return models.DirDown
	default:
		return models.DirNeutral
	}
}

func rationale(dir models.Direction, market, news float64) string {
	return fmt.Sprintf("%s: market=%.2f news=%.2f", dir, market, news)
}

// adaptiveWeights reweighs news against market based on the trailing
// 7-day realized record for the timeframe.
func (e *Engine) adaptiveWeights(ctx context.Context, tf string, now time.Time) (wMarket, wNews float64) {
	wMarket, wNews = baseMarketWeight, baseNewsWeight
	scored, err := e.store.ListScoredSince(ctx, tf, now.AddDate(0, 0, -adaptWindowDays))
	if err != nil || len(scored) == 0 {
		return wMarket, wNews
	}
	brierSum, hitSum := 0.0, 0.0
	for _, s := range scored {
		brierSum += s.Score.Brier
		hitSum += float64(s.Score.Hit)
	}
	n := float64(len(scored))
	avgBrier := brierSum / n
	hitRate := hitSum / n

	switch {
	case avgBrier >= adaptBadBrier || hitRate <= adaptBadHit:
		wNews *= adaptShrink
	case avgBrier <= adaptGoodBrier && hitRate >= adaptGoodHit:
		wNews *= adaptGrow
	}
	total := wMarket + wNews
	return wMarket / total, wNews / total
}

func (e *Engine) fitPlatt(ctx context.Context, tf string, now time.Time) PlattModel {
	scored, err := e.store.ListScoredSince(ctx, tf, now.AddDate(0, 0, -adaptWindowDays))
	if err != nil {
		return PlattModel{}
	}
	xs := make([]float64, 0, len(scored))
	hits := make([]int, 0, len(scored))
	for _, s := range scored {
		xs = append(xs, math.Abs(s.Forecast.RawScore))
		hits = append(hits, s.Score.Hit)
	}
	return FitPlatt(xs, hits)
}

// ScoreExpired writes realized outcomes for every expired, unscored
// forecast. Missing bars leave the forecast unscored for a later sweep.
func (e *Engine) ScoreExpired(ctx context.Context) (int, error) {
	now := e.now()
	pending, err := e.store.UnscoredExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	scored := 0
	for _, f := range pending {
		asset := referenceAsset(f.Target)
		start, ok, err := e.store.CloseAt(ctx, asset, f.TS)
		if err != nil || !ok || start <= 0 {
			continue
		}
		end, ok, err := e.store.CloseAt(ctx, asset, f.ExpiresAt)
		if err != nil || !ok || end <= 0 {
			continue
		}
		r := (end - start) / start
		hit := 0
		if e.isHit(f.Direction, r) {
			hit = 1
		}
		sc := models.ForecastScore{
			ForecastID:     f.ID,
			RealizedReturn: r,
			Hit:            hit,
			Brier:          (f.Confidence - float64(hit)) * (f.Confidence - float64(hit)),
			ScoredAt:       now,
		}
		if err := e.store.InsertScore(ctx, sc); err != nil {
			e.log.Warn().Err(err).Str("forecast", f.ID).Msg("score insert failed")
			continue
		}
		scored++
	}
	return scored, nil
}

// hitBand is the realized-return band inside which NEUTRAL counts as a
// hit and outside which UP/DOWN must land.
const hitBand = 0.001

func (e *Engine) isHit(dir models.Direction, r float64) bool {
	switch dir {
	case models.DirUp:
		return r > hitBand
	case models.DirDown:
		return r < -hitBand
	default:
		return math.Abs(r) <= hitBand
	}
}

// referenceAsset anchors ALTS on ETH and STABLES on BTC bars since no
// composite series is stored for them.
func referenceAsset(target string) string {
	switch target {
	case models.TargetETH, models.TargetAlts:
		return models.TargetETH
	default:
		return models.TargetBTC
	}
}
