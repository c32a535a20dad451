// Package httpapi exposes the pipeline, forecasts, events, quotes,
// portfolio and debate over HTTP. All provider/data failures surface as
// 200 responses with populated debug blocks; 4xx is reserved for
// malformed requests.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/cache"
	"github.com/sawpanic/intelrun/internal/debate"
	"github.com/sawpanic/intelrun/internal/pipeline"
	"github.com/sawpanic/intelrun/internal/portfolio"
	"github.com/sawpanic/intelrun/internal/quotes"
	"github.com/sawpanic/intelrun/internal/store"
)

// Server bundles the HTTP surface over the engines.
type Server struct {
	orchestrator *pipeline.Orchestrator
	store        *store.Store
	router       *quotes.Router
	portfolio    *portfolio.Engine
	debate       *debate.Engine
	kv           *cache.KV
	now          func() time.Time
	log          zerolog.Logger

	startedAt time.Time
}

func NewServer(orc *pipeline.Orchestrator, st *store.Store, router *quotes.Router,
	pf *portfolio.Engine, db *debate.Engine, kv *cache.KV, log zerolog.Logger) *Server {
	return &Server{
		orchestrator: orc,
		store:        st,
		router:       router,
		portfolio:    pf,
		debate:       db,
		kv:           kv,
		now:          time.Now,
		log:          log.With().Str("component", "httpapi").Logger(),
		startedAt:    time.Now(),
	}
}

// Routes registers the full API surface.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/intel/run", s.handleIntelRun).Methods(http.MethodPost)
	r.HandleFunc("/forecasts/latest", s.handleForecastLatest).Methods(http.MethodGet)
	r.HandleFunc("/forecasts/metrics", s.handleForecastMetrics).Methods(http.MethodGet)
	r.HandleFunc("/events/latest", s.handleEventsLatest).Methods(http.MethodGet)
	r.HandleFunc("/quotes/latest", s.handleQuotesLatest).Methods(http.MethodGet)
	r.HandleFunc("/quotes/debug", s.handleQuotesDebug).Methods(http.MethodGet)
	r.HandleFunc("/bars/latest", s.handleBarsLatest).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	for _, prefix := range []string{"", "/api/v1"} {
		r.HandleFunc(prefix+"/portfolio", s.handlePortfolio).Methods(http.MethodGet)
		r.HandleFunc(prefix+"/portfolio/daily-brief", s.handleDailyBrief).Methods(http.MethodGet)
	}
	r.HandleFunc("/api/v1/portfolio/debate", s.handleDebateGet).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/portfolio/debate", s.handleDebatePost).Methods(http.MethodPost)
	return r
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Serve runs the listener until ctx is canceled, then drains.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
