package portfolio

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/intelrun/internal/models"
)

const (
	fxSymbol       = "USDTRY=X"
	fxRiskUpFloor  = 0.50
	varMultiplier  = 1.65
	volLookback    = 30
)

// Quoter is the slice of the quote router the engine needs.
type Quoter interface {
	GetQuote(ctx context.Context, symbol string) (models.Quote, bool)
}

// BarReader supplies daily bars for the volatility window.
type BarReader interface {
	ListBars(ctx context.Context, asset string, limit int) ([]models.PriceBar, error)
}

// Engine values holdings and derives allocation and risk.
type Engine struct {
	quoter   Quoter
	bars     BarReader
	holdings []Holding
	now      func() time.Time
	log      zerolog.Logger
}

func NewEngine(quoter Quoter, bars BarReader, holdings []Holding, log zerolog.Logger) *Engine {
	return &Engine{
		quoter:   quoter,
		bars:     bars,
		holdings: holdings,
		now:      time.Now,
		log:      log.With().Str("component", "portfolio").Logger(),
	}
}

// Holdings returns the configured positions.
func (e *Engine) Holdings() []Holding { return e.holdings }

// Value prices every holding, converts to USD and assembles the
// valuation. Missing prices keep the row with data_status=missing.
func (e *Engine) Value(ctx context.Context, items []models.NewsItem) Valuation {
	now := e.now()
	v := Valuation{AsOf: now}

	usdtry := 0.0
	if q, ok := e.quoter.GetQuote(ctx, fxSymbol); ok && q.Price > 0 {
		usdtry = q.Price
		v.USDTRY = usdtry
		if q.Meta.DegradedMode {
			v.Degraded = true
		}
	} else {
		v.DebugNotes = append(v.DebugNotes, "fx_error:missing_price:"+fxSymbol)
	}

	for _, h := range e.holdings {
		pos := Position{Holding: h, DataStatus: "missing"}
		if q, ok := e.quoter.GetQuote(ctx, h.Symbol); ok && q.Price > 0 {
			pos.Price = q.Price
			pos.Source = q.Meta.Source
			pos.DataStatus = "ok"
			if q.Meta.DegradedMode {
				pos.DataStatus = "degraded"
				v.Degraded = true
			}
			if q.ChangePct != nil {
				pos.ChangePct = *q.ChangePct
			}
			value := h.Quantity * q.Price
			if h.Currency == "TRY" && usdtry > 0 {
				value /= usdtry
			}
			pos.ValueUSD = value
			v.TotalUSD += value
		} else {
			v.DebugNotes = append(v.DebugNotes, "quote_error:missing_price:"+h.Symbol)
		}
		v.Positions = append(v.Positions, pos)
	}

	if v.TotalUSD > 0 {
		for i := range v.Positions {
			v.Positions[i].Weight = v.Positions[i].ValueUSD / v.TotalUSD
		}
		if usdtry > 0 {
			v.TotalTRY = v.TotalUSD * usdtry
		}
	}

	v.Allocation = e.allocation(v.Positions)
	v.Risk = e.riskMetrics(ctx, v.Positions, v.Allocation)
	v.Impacts = AttributeImpacts(items, e.holdings, now)
	sort.SliceStable(v.Positions, func(i, j int) bool {
		return v.Positions[i].ValueUSD > v.Positions[j].ValueUSD
	})
	return v
}

func (e *Engine) allocation(positions []Position) Allocation {
	a := Allocation{
		ByCurrency: make(map[string]float64),
		BySector:   make(map[string]float64),
	}
	for _, p := range positions {
		a.ByCurrency[p.Currency] += p.Weight
		sector := p.Sector
		if sector == "" {
			sector = "OTHER"
		}
		a.BySector[sector] += p.Weight
	}
	return a
}

// riskMetrics computes HHI, max weight, the 30-day weighted vol and the
// derived 1-day 95% VaR, plus the FX exposure flag.
func (e *Engine) riskMetrics(ctx context.Context, positions []Position, alloc Allocation) RiskMetrics {
	var m RiskMetrics
	weightSum := 0.0
	volWeighted := 0.0
	var volSamples []float64

	for _, p := range positions {
		m.HHI += p.Weight * p.Weight
		if p.Weight > m.MaxWeight {
			m.MaxWeight = p.Weight
		}
		vol := e.symbolVol(ctx, p.Symbol)
		if vol <= 0 {
			continue
		}
		volSamples = append(volSamples, vol)
		volWeighted += p.Weight * vol
		weightSum += p.Weight
	}

	switch {
	case weightSum > 0:
		m.Vol30d = volWeighted / weightSum
	case len(volSamples) > 0:
		m.Vol30d = stat.Mean(volSamples, nil)
	}
	m.VaR951d = varMultiplier * m.Vol30d
	m.USDExposure = alloc.ByCurrency["USD"]
	if m.USDExposure >= fxRiskUpFloor {
		m.Flags = append(m.Flags, "FX_RISK_UP")
	}
	return m
}

// symbolVol is the std-dev of the last 30 daily returns, zero when the
// bar history is too thin.
func (e *Engine) symbolVol(ctx context.Context, symbol string) float64 {
	if e.bars == nil {
		return 0
	}
	bars, err := e.bars.ListBars(ctx, symbol, volLookback+1)
	if err != nil || len(bars) < 5 {
		return 0
	}
	var rets []float64
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev <= 0 {
			continue
		}
		rets = append(rets, (bars[i].Close-prev)/prev)
	}
	if len(rets) < 4 {
		return 0
	}
	v := stat.StdDev(rets, nil)
	if math.IsNaN(v) {
		return 0
	}
	return v
}
