package eventstudy

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/intelrun/internal/models"
)

// BarSource is the slice of the store the impact job needs.
type BarSource interface {
	CloseAt(ctx context.Context, asset string, ts time.Time) (float64, bool, error)
	ListBarsBetween(ctx context.Context, asset string, from, to time.Time) ([]models.PriceBar, error)
}

// ImpactSink persists computed impacts.
type ImpactSink interface {
	UpsertEventImpact(ctx context.Context, imp models.EventImpact) error
}

const (
	impactLookbackDays    = 30
	impactFallbackDays    = 7
	impactMinSigmaSamples = 20
)

// referenceAsset maps a forecast target to the asset whose bars anchor
// the realized return. ALTS and STABLES ride on ETH and BTC since no
// composite bar series is stored for them.
func referenceAsset(target string) string {
	switch target {
	case models.TargetETH, models.TargetAlts:
		return models.TargetETH
	default:
		return models.TargetBTC
	}
}

// ImpactJob computes realized event impacts for stored clusters.
type ImpactJob struct {
	bars BarSource
	sink ImpactSink
	now  func() time.Time
	log  zerolog.Logger
}

func NewImpactJob(bars BarSource, sink ImpactSink, log zerolog.Logger) *ImpactJob {
	return &ImpactJob{
		bars: bars,
		sink: sink,
		now:  time.Now,
		log:  log.With().Str("component", "event_impact").Logger(),
	}
}

// Run computes and upserts the realized return and z for every
// (cluster, target, tf) combination whose post window has elapsed.
// Bar gaps skip the combination; DB write errors are logged and
// swallowed so one bad row never aborts the sweep.
func (j *ImpactJob) Run(ctx context.Context, clusters []models.EventCluster) int {
	now := j.now()
	written := 0
	sigmas := make(map[string]map[string]float64) // asset → tf → σ

	for _, cl := range clusters {
		for _, target := range relevantTargets(cl) {
			asset := referenceAsset(target)
			for _, tf := range models.Timeframes {
				horizon := time.Duration(models.TimeframeMinutes[tf]) * time.Minute
				end := cl.TS.Add(horizon)
				if end.After(now) {
					continue
				}
				startClose, ok, err := j.bars.CloseAt(ctx, asset, cl.TS)
				if err != nil || !ok || startClose <= 0 {
					continue
				}
				endClose, ok, err := j.bars.CloseAt(ctx, asset, end)
				if err != nil || !ok || endClose <= 0 {
					continue
				}
				ret := (endClose - startClose) / startClose

				if sigmas[asset] == nil {
					sigmas[asset] = make(map[string]float64)
				}
				sigma, cached := sigmas[asset][tf]
				if !cached {
					sigma = j.tfSigma(ctx, asset, tf, now)
					sigmas[asset][tf] = sigma
				}

				imp := models.EventImpact{
					ClusterID:   cl.ClusterID,
					Target:      target,
					TF:          tf,
					RealizedRet: &ret,
					ComputedAt:  now,
				}
				if sigma > 0 {
					z := ret / sigma
					imp.RealizedZ = &z
				}
				if err := j.sink.UpsertEventImpact(ctx, imp); err != nil {
					j.log.Warn().Err(err).Str("cluster", cl.ClusterID).Str("tf", tf).Msg("impact upsert failed")
					continue
				}
				written++
			}
		}
	}
	return written
}

// relevantTargets picks the primary targets the cluster maps to.
func relevantTargets(cl models.EventCluster) []string {
	var out []string
	for _, tr := range cl.Targets {
		switch tr.Target {
		case models.TargetBTC, models.TargetETH, models.TargetAlts, models.TargetStables:
			out = append(out, tr.Target)
		}
	}
	if len(out) == 0 {
		out = []string{models.TargetBTC}
	}
	return out
}

// tfSigma is the std-dev of non-overlapping tf-step returns over the
// lookback window, falling back to 7 days when the sample is thin.
func (j *ImpactJob) tfSigma(ctx context.Context, asset, tf string, now time.Time) float64 {
	step := time.Duration(models.TimeframeMinutes[tf]) * time.Minute

	sigma, n := j.sigmaOver(ctx, asset, step, now.AddDate(0, 0, -impactLookbackDays), now)
	if n >= impactMinSigmaSamples {
		return sigma
	}
	sigma, _ = j.sigmaOver(ctx, asset, step, now.AddDate(0, 0, -impactFallbackDays), now)
	return sigma
}

func (j *ImpactJob) sigmaOver(ctx context.Context, asset string, step time.Duration, from, to time.Time) (float64, int) {
	bars, err := j.bars.ListBarsBetween(ctx, asset, from, to)
	if err != nil || len(bars) < 2 {
		return 0, 0
	}
	// Sample closes on a non-overlapping step grid.
	var rets []float64
	lastTS := bars[0].TS
	lastClose := bars[0].Close
	for _, b := range bars[1:] {
		if b.TS.Sub(lastTS) < step {
			continue
		}
		if lastClose > 0 {
			rets = append(rets, (b.Close-lastClose)/lastClose)
		}
		lastTS, lastClose = b.TS, b.Close
	}
	if len(rets) < 2 {
		return 0, len(rets)
	}
	return stat.StdDev(rets, nil), len(rets)
}
