package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/intelrun/internal/debate"
	"github.com/sawpanic/intelrun/internal/forecast"
	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/pipeline"
	"github.com/sawpanic/intelrun/internal/portfolio"
)

const maxBarsPerAsset = 192

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"status":     "ok",
		"uptime_s":   int(s.now().Sub(s.startedAt).Seconds()),
		"providers":  s.router.EnabledMap(),
		"router":     s.router.Stats(),
		"kv_healthy": s.kv.Healthy(ctx),
	}
	if err := s.store.Ping(ctx); err != nil {
		resp["status"] = "degraded"
		resp["db_error"] = err.Error()
	}
	if clusters, err := s.store.ListClustersSince(ctx, s.now().Add(-24*time.Hour)); err == nil {
		resp["events_24h"] = len(clusters)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIntelRun(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = "1h"
	}
	if req.NewsTimespan == "" {
		req.NewsTimespan = "6h"
	}
	resp, err := s.orchestrator.Run(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("ETag", resp.ETag)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleForecastLatest(w http.ResponseWriter, r *http.Request) {
	tf := r.URL.Query().Get("tf")
	target := r.URL.Query().Get("target")
	if tf == "" || target == "" {
		writeError(w, http.StatusBadRequest, "tf and target are required")
		return
	}
	f, ok, err := s.store.LatestForecast(r.Context(), tf, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"forecast": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"forecast": f})
}

func (s *Server) handleForecastMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := forecast.ComputeMetrics(r.Context(), s.store, s.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"metrics": m})
}

func (s *Server) handleEventsLatest(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 24*14 {
			writeError(w, http.StatusBadRequest, "invalid hours")
			return
		}
		hours = n
	}
	ctx := r.Context()
	clusters, err := s.store.ListClustersSince(ctx, s.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ids := make([]string, 0, len(clusters))
	for _, c := range clusters {
		ids = append(ids, c.ClusterID)
	}
	impacts, err := s.store.ImpactsForClusters(ctx, ids)
	if err != nil {
		impacts = map[string][]models.EventImpact{}
	}
	type eventWithImpacts struct {
		models.EventCluster
		RealizedImpacts []models.EventImpact `json:"realized_impacts,omitempty"`
	}
	out := make([]eventWithImpacts, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, eventWithImpacts{EventCluster: c, RealizedImpacts: impacts[c.ClusterID]})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out, "hours": hours})
}

func (s *Server) handleQuotesLatest(w http.ResponseWriter, r *http.Request) {
	assets := splitList(r.URL.Query().Get("assets"))
	if len(assets) == 0 {
		writeError(w, http.StatusBadRequest, "assets is required")
		return
	}
	ctx := r.Context()
	out := make(map[string]interface{}, len(assets))
	for _, a := range assets {
		if q, ok := s.router.GetQuote(ctx, a); ok {
			out[a] = q
		} else {
			out[a] = map[string]interface{}{"price": nil, "error": "all_failed"}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quotes": out})
}

func (s *Server) handleQuotesDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Stats())
}

func (s *Server) handleBarsLatest(w http.ResponseWriter, r *http.Request) {
	assets := splitList(r.URL.Query().Get("assets"))
	if len(assets) == 0 {
		writeError(w, http.StatusBadRequest, "assets is required")
		return
	}
	limit := maxBarsPerAsset
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n < limit {
			limit = n
		}
	}
	ctx := r.Context()
	out := make(map[string][]models.PriceBar, len(assets))
	for _, a := range assets {
		bars, err := s.store.ListBars(ctx, a, limit)
		if err != nil {
			s.log.Warn().Err(err).Str("asset", a).Msg("bars read failed")
			continue
		}
		out[a] = bars
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bars": out})
}

// planState prices the holdings against the latest pipeline output and
// runs the optimizer over the full signal set.
func (s *Server) planState(ctx context.Context) (pipeline.Intel, portfolio.Valuation, map[string]float64, []portfolio.Plan) {
	var intel pipeline.Intel
	if s.orchestrator != nil {
		intel = s.orchestrator.LatestIntel()
	}
	v := s.portfolio.Value(ctx, intel.Items)
	rotation := portfolio.SectorRotationFromNews(intel.Items)
	plans := portfolio.Optimize(portfolio.OptimizerInput{
		Valuation:       v,
		MomentumZ7d:     s.portfolio.MomentumZ7d(ctx),
		SectorRotation:  rotation,
		RegimeScore:     regimeScore(intel.Snapshot),
		MaxWeight:       portfolio.DefaultMaxWeight,
		MaxCryptoWeight: portfolio.DefaultMaxCryptoWeight,
	})
	return intel, v, rotation, plans
}

// regimeScore maps the snapshot's VIX read onto -1..1 with risk-on
// positive; an active macro risk-off flag floors the score.
func regimeScore(snap *models.MarketSnapshot) float64 {
	if snap == nil {
		return 0
	}
	score := 0.0
	if snap.VIX > 0 {
		score = (18 - snap.VIX) / 12
		score = math.Max(-1, math.Min(1, score))
	}
	if snap.MacroRiskOff && score > -0.5 {
		score = -0.5
	}
	return score
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if s.portfolio == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"portfolio": nil})
		return
	}
	_, v, _, plans := s.planState(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"base":      baseOrDefault(r.URL.Query().Get("base")),
		"horizon":   horizonOrDefault(r.URL.Query().Get("horizon")),
		"portfolio": v,
		"plans":     plans,
	})
}

func (s *Server) handleDailyBrief(w http.ResponseWriter, r *http.Request) {
	if s.portfolio == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"brief": nil})
		return
	}
	_, v, _, plans := s.planState(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"brief": portfolio.BuildBrief(v, plans)})
}

func (s *Server) handleDebateGet(w http.ResponseWriter, r *http.Request) {
	var last debate.Result
	if s.kv.GetJSON(r.Context(), "debate_last", &last) {
		last.FromCache = true
		writeJSON(w, http.StatusOK, last)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcome": "none",
		"detail":  "no cached debate; POST to run one",
	})
}

type debateRequest struct {
	Base    string `json:"base"`
	Window  string `json:"window"`
	Horizon string `json:"horizon"`
	Force   bool   `json:"force,omitempty"`
}

func (s *Server) handleDebatePost(w http.ResponseWriter, r *http.Request) {
	if s.debate == nil || s.portfolio == nil {
		writeError(w, http.StatusServiceUnavailable, "debate engine not configured")
		return
	}
	var req debateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	req.Base = baseOrDefault(req.Base)
	req.Horizon = horizonOrDefault(req.Horizon)
	if req.Window == "" {
		req.Window = "24h"
	}

	ctx := r.Context()
	intel, v, rotation, plans := s.planState(ctx)
	dctx := debate.BuildContext(debate.ContextInput{
		Base: req.Base, Window: req.Window, Horizon: req.Horizon,
		Valuation:       v,
		Plans:           plans,
		Items:           intel.Items,
		Forecasts:       intel.Forecasts,
		SectorRotation:  rotation,
		MaxWeight:       portfolio.DefaultMaxWeight,
		MaxCryptoWeight: portfolio.DefaultMaxCryptoWeight,
	})
	result, err := s.debate.Run(ctx, &dctx, req.Force)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func baseOrDefault(base string) string {
	switch strings.ToUpper(base) {
	case "TRY":
		return "TRY"
	default:
		return "USD"
	}
}

func horizonOrDefault(h string) string {
	switch h {
	case "24h", "7d", "30d":
		return h
	default:
		return "24h"
	}
}
