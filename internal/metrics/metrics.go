// Package metrics registers the Prometheus instruments shared by the
// provider layer, the quote router and the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderCalls counts outbound provider calls by source and outcome
	// ("ok" or an error kind).
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intelrun",
		Subsystem: "providers",
		Name:      "calls_total",
		Help:      "Outbound provider calls by source and outcome",
	}, []string{"source", "outcome"})

	// CacheOps counts cache operations by tier and outcome.
	CacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intelrun",
		Subsystem: "cache",
		Name:      "ops_total",
		Help:      "Cache operations by tier (process, redis) and outcome (hit, miss, set)",
	}, []string{"tier", "outcome"})

	// RouterFallbacks counts degraded last-good quote responses.
	RouterFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "intelrun",
		Subsystem: "quotes",
		Name:      "fallback_total",
		Help:      "Quotes served from the last-good fallback store",
	})

	// RouterRateLimited counts calls skipped because a provider bucket
	// had no tokens.
	RouterRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intelrun",
		Subsystem: "quotes",
		Name:      "rate_limited_total",
		Help:      "Quote calls skipped by the local token bucket",
	}, []string{"provider"})

	// PipelineStageSeconds observes per-stage pipeline wall time.
	PipelineStageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intelrun",
		Subsystem: "pipeline",
		Name:      "stage_seconds",
		Help:      "Pipeline stage duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"stage"})

	// ForecastEmissions counts emitted forecasts by timeframe and target.
	ForecastEmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intelrun",
		Subsystem: "forecast",
		Name:      "emissions_total",
		Help:      "Forecasts emitted by timeframe and target",
	}, []string{"tf", "target"})
)
