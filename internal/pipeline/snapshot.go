package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/providers"
)

// SnapshotBuilder assembles the base market snapshot from the keyless
// aggregate providers. Quote-level fields (BTC, ETH, DXY, QQQ, oil,
// VIX) are left for the router's PatchSnapshot pass.
type SnapshotBuilder struct {
	coingecko *providers.CoingeckoClient
	fearGreed *providers.FearGreedClient
	log       zerolog.Logger
}

func NewSnapshotBuilder(cg *providers.CoingeckoClient, fg *providers.FearGreedClient, log zerolog.Logger) *SnapshotBuilder {
	return &SnapshotBuilder{
		coingecko: cg,
		fearGreed: fg,
		log:       log.With().Str("component", "snapshot").Logger(),
	}
}

// Snapshot fans out to the aggregate providers concurrently and merges
// whatever arrived. Failures become notes and Missing entries.
func (b *SnapshotBuilder) Snapshot(ctx context.Context) (models.MarketSnapshot, []string) {
	snap := models.MarketSnapshot{Changes: make(map[string]float64)}
	var notes []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	if b.coingecko != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := b.coingecko.GetGlobal(ctx)
			mu.Lock()
			defer mu.Unlock()
			if !res.OK {
				notes = append(notes, res.Note("coingecko"))
				snap.Missing = append(snap.Missing, "total_mcap", "btc_dom", "stable_dom")
				return
			}
			snap.TotalMcap = res.Data.TotalMcapUSD
			snap.BTCDom = res.Data.BTCDominance
			snap.StableDom = res.Data.StableDom
			snap.Changes["total_mcap"] = res.Data.McapChange24h
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			res := b.coingecko.GetFunding(ctx)
			mu.Lock()
			defer mu.Unlock()
			if !res.OK {
				notes = append(notes, res.Note("coingecko"))
				snap.Missing = append(snap.Missing, "funding_z")
				return
			}
			snap.FundingZ = res.Data.FundingZ
			snap.OIDelta = res.Data.OIDelta
		}()
	}

	if b.fearGreed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := b.fearGreed.Get(ctx)
			mu.Lock()
			defer mu.Unlock()
			if !res.OK {
				notes = append(notes, res.Note("feargreed"))
				snap.Missing = append(snap.Missing, "fear_greed")
				return
			}
			snap.FearGreed = res.Data
		}()
	}

	wg.Wait()

	// The fan-out appends in goroutine-completion order; sort so the
	// debug block hashes identically across identical runs.
	sort.Strings(notes)
	sort.Strings(snap.Missing)

	// Flow: positive when money rotates out of stables into the market.
	snap.FlowScore = flowScore(&snap)
	snap.MacroRiskOff = snap.FearGreed > 0 && snap.FearGreed <= 25
	return snap, notes
}

// flowScore condenses dominance shifts into a -1..1 rotation signal.
func flowScore(snap *models.MarketSnapshot) float64 {
	score := 0.0
	if d := snap.Change("total_mcap"); d != 0 {
		score += clamp(d/5, 0.6)
	}
	if snap.StableDom > 0 {
		// High stablecoin dominance means capital parked on the sideline.
		score -= clamp((snap.StableDom-8)/8, 0.4)
	}
	return clamp(score, 1)
}

func clamp(v, bound float64) float64 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}
