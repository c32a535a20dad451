package quotes

import (
	"context"
	"sort"

	"github.com/sawpanic/intelrun/internal/models"
)

// defaultSymbolMap is the static (provider-agnostic) symbol alias table
// consulted before any provider search.
func defaultSymbolMap() map[string]string {
	return map[string]string{
		"BTC":    "BTC-USD",
		"ETH":    "ETH-USD",
		"SOL":    "SOL-USD",
		"XRP":    "XRP-USD",
		"USDTRY": "USDTRY=X",
		"DXY":    "DX-Y.NYB",
		"QQQ":    "QQQ",
		"VIX":    "^VIX",
		"OIL":    "CL=F",
		"GOLD":   "GC=F",
	}
}

// resolve maps a caller symbol to a provider-native one: static map
// first, then a 7-day cached provider search, else the symbol as-is.
func (r *Router) resolve(ctx context.Context, p Provider, symbol string) string {
	if mapped, ok := r.staticMap[symbol]; ok {
		return mapped
	}
	key := p.Name() + "|" + symbol

	r.mu.Lock()
	if entry, ok := r.searches[key]; ok && r.now().Before(entry.expires) {
		r.mu.Unlock()
		return entry.resolved
	}
	r.mu.Unlock()

	if resolved, ok := p.Search(ctx, symbol); ok && resolved != "" {
		r.mu.Lock()
		r.searches[key] = searchEntry{resolved: resolved, expires: r.now().Add(searchCacheTTL)}
		r.mu.Unlock()
		return resolved
	}
	return symbol
}

// snapshotPatch describes how to backfill one snapshot key from a quote.
type snapshotPatch struct {
	symbol    string
	changeKey string
}

// snapshotPatchMap is the fixed snapshot-key -> symbol table used when
// the primary market fetch leaves gaps.
var snapshotPatchMap = map[string]snapshotPatch{
	"btc": {symbol: "BTC", changeKey: "btc"},
	"eth": {symbol: "ETH", changeKey: "eth"},
	"dxy": {symbol: "DXY", changeKey: "dxy"},
	"qqq": {symbol: "QQQ", changeKey: "qqq"},
	"oil": {symbol: "OIL", changeKey: "oil"},
	"vix": {symbol: "VIX"},
}

// PatchSnapshot backfills zero-valued snapshot fields through the
// router. Keys that stay unfilled are appended to snap.Missing. Keys
// are walked in sorted order so identical runs produce identical
// Missing lists and downstream block hashes.
func (r *Router) PatchSnapshot(ctx context.Context, snap *models.MarketSnapshot) {
	if snap.Changes == nil {
		snap.Changes = make(map[string]float64)
	}
	keys := make([]string, 0, len(snapshotPatchMap))
	for key := range snapshotPatchMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		patch := snapshotPatchMap[key]
		if snapshotValue(snap, key) != 0 {
			continue
		}
		q, ok := r.GetQuote(ctx, patch.symbol)
		if !ok {
			snap.Missing = append(snap.Missing, key)
			continue
		}
		setSnapshotValue(snap, key, q.Price)
		if patch.changeKey != "" && q.ChangePct != nil {
			snap.Changes[patch.changeKey] = *q.ChangePct
		}
	}
}

func snapshotValue(s *models.MarketSnapshot, key string) float64 {
	switch key {
	case "btc":
		return s.BTC
	case "eth":
		return s.ETH
	case "dxy":
		return s.DXY
	case "qqq":
		return s.QQQ
	case "oil":
		return s.Oil
	case "vix":
		return s.VIX
	}
	return 0
}

func setSnapshotValue(s *models.MarketSnapshot, key string, v float64) {
	switch key {
	case "btc":
		s.BTC = v
	case "eth":
		s.ETH = v
	case "dxy":
		s.DXY = v
	case "qqq":
		s.QQQ = v
	case "oil":
		s.Oil = v
	case "vix":
		s.VIX = v
	}
}
