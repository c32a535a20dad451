package news

import "strings"

// WatchAsset is one tradable asset plus the title aliases that imply it.
type WatchAsset struct {
	Symbol  string   `json:"symbol"`
	Aliases []string `json:"aliases"`
}

// Watchlist groups watched assets into the three query categories.
type Watchlist struct {
	Crypto []WatchAsset `json:"crypto"`
	Energy []WatchAsset `json:"energy"`
	Tech   []WatchAsset `json:"tech"`
}

// DefaultWatchlist is used when a request carries no watchlist.
func DefaultWatchlist() Watchlist {
	return Watchlist{
		Crypto: []WatchAsset{
			{Symbol: "BTC", Aliases: []string{"bitcoin", "BTC"}},
			{Symbol: "ETH", Aliases: []string{"ethereum", "ETH", "ether"}},
			{Symbol: "SOL", Aliases: []string{"solana", "SOL"}},
			{Symbol: "USDT", Aliases: []string{"tether", "USDT", "stablecoin"}},
		},
		Energy: []WatchAsset{
			{Symbol: "XOM", Aliases: []string{"exxon", "exxon mobil", "XOM"}},
			{Symbol: "SHEL", Aliases: []string{"shell", "SHEL"}},
			{Symbol: "CL", Aliases: []string{"crude oil", "brent", "wti", "opec"}},
		},
		Tech: []WatchAsset{
			{Symbol: "NVDA", Aliases: []string{"nvidia", "NVDA"}},
			{Symbol: "AAPL", Aliases: []string{"apple", "AAPL"}},
			{Symbol: "MSFT", Aliases: []string{"microsoft", "MSFT"}},
			{Symbol: "GOOGL", Aliases: []string{"google", "alphabet", "GOOGL"}},
		},
	}
}

// IsEmpty reports whether the watchlist has no assets at all.
func (w Watchlist) IsEmpty() bool {
	return len(w.Crypto) == 0 && len(w.Energy) == 0 && len(w.Tech) == 0
}

// Categories returns the category name -> assets mapping in a stable order.
func (w Watchlist) Categories() []struct {
	Name   string
	Assets []WatchAsset
} {
	return []struct {
		Name   string
		Assets []WatchAsset
	}{
		{Name: "crypto", Assets: w.Crypto},
		{Name: "energy", Assets: w.Energy},
		{Name: "tech", Assets: w.Tech},
	}
}

// Tickers returns all symbols across categories, deduplicated, in
// category order.
func (w Watchlist) Tickers() []string {
	var out []string
	seen := make(map[string]bool)
	for _, cat := range w.Categories() {
		for _, a := range cat.Assets {
			sym := strings.ToUpper(a.Symbol)
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}
