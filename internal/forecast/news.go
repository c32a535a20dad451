package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/sawpanic/intelrun/internal/models"
)

const (
	// defaultHalfLifeHours controls news-signal decay when no override
	// is configured; clusters older than three half-lives are ignored.
	defaultHalfLifeHours = 6.0
	activeAgeFactor      = 3.0

	// neutralWeight is the unsigned contribution of neutral-direction
	// clusters.
	neutralWeight = 0.35

	contextAligned = 1.15
	contextOpposed = 0.9

	topNewsDrivers = 3
)

// credWeight maps source tier credibility (0..1) onto a contribution
// weight with a floor so low-tier sources still register.
func credWeight(credibility float64) float64 {
	if credibility <= 0 {
		return 0.4
	}
	return 0.4 + 0.6*math.Min(1, credibility)
}

// targetRelevance reads the cluster's mapped weight for the target.
func targetRelevance(cl *models.EventCluster, target string) float64 {
	for _, tr := range cl.Targets {
		if tr.Target == target {
			return tr.Relevance
		}
	}
	return 0
}

// contextMultiplier rewards clusters whose direction agrees with the
// macro risk regime and dampens those that fight it.
func contextMultiplier(dir models.Direction, riskOff bool) float64 {
	if dir == models.DirNeutral {
		return 1.0
	}
	aligned := (riskOff && dir == models.DirDown) || (!riskOff && dir == models.DirUp)
	if aligned {
		return contextAligned
	}
	return contextOpposed
}

// NewsSignal aggregates active clusters into a signed score in [-1,1]
// for one target, returning the top contributors by |contribution|.
// halfLife is the decay half-life in hours; <= 0 selects the default.
func NewsSignal(clusters []models.EventCluster, target string, riskOff bool, halfLife float64, now time.Time) (float64, []models.ForecastDriver) {
	if halfLife <= 0 {
		halfLife = defaultHalfLifeHours
	}
	maxAge := halfLife * activeAgeFactor

	score := 0.0
	var drivers []models.ForecastDriver
	for i := range clusters {
		cl := &clusters[i]
		age := now.Sub(cl.TS).Hours()
		if age < 0 || age >= maxAge {
			continue
		}
		rel := targetRelevance(cl, target)
		if rel <= 0 {
			continue
		}
		impactNorm := models.Clip100(cl.Impact) / 100
		decay := impactNorm * math.Exp(-age*math.Ln2/halfLife) * credWeight(cl.Credibility)
		ctx := contextMultiplier(cl.Direction, riskOff)

		var contribution float64
		if cl.Direction == models.DirNeutral {
			contribution = decay * rel * ctx * neutralWeight
		} else {
			contribution = float64(cl.Direction) * decay * rel * ctx
		}
		score += contribution
		drivers = append(drivers, models.ForecastDriver{
			Name:         cl.Headline,
			Value:        cl.Impact,
			Weight:       rel,
			Contribution: contribution,
		})
	}

	sort.Slice(drivers, func(i, j int) bool {
		return math.Abs(drivers[i].Contribution) > math.Abs(drivers[j].Contribution)
	})
	if len(drivers) > topNewsDrivers {
		drivers = drivers[:topNewsDrivers]
	}
	return clipTo(score, 1), drivers
}

// HasMajorEvent reports whether any active cluster carries an impact at
// or above the hysteresis-bypass threshold.
func HasMajorEvent(clusters []models.EventCluster, threshold, halfLife float64, now time.Time) bool {
	if halfLife <= 0 {
		halfLife = defaultHalfLifeHours
	}
	maxAge := halfLife * activeAgeFactor
	for i := range clusters {
		age := now.Sub(clusters[i].TS).Hours()
		if age >= 0 && age < maxAge && clusters[i].Impact >= threshold {
			return true
		}
	}
	return false
}
