package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/intelrun/internal/cache"
	"github.com/sawpanic/intelrun/internal/config"
	"github.com/sawpanic/intelrun/internal/debate"
	"github.com/sawpanic/intelrun/internal/eventstudy"
	"github.com/sawpanic/intelrun/internal/forecast"
	"github.com/sawpanic/intelrun/internal/httpapi"
	"github.com/sawpanic/intelrun/internal/news"
	"github.com/sawpanic/intelrun/internal/pipeline"
	"github.com/sawpanic/intelrun/internal/portfolio"
	"github.com/sawpanic/intelrun/internal/providers"
	"github.com/sawpanic/intelrun/internal/quotes"
	"github.com/sawpanic/intelrun/internal/store"
)

var holdingsPath string

func serveCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			app, err := buildApp(ctx, cfg, log.Logger)
			if err != nil {
				return err
			}
			defer app.Close()

			app.startWorker(ctx)
			return app.server.Serve(ctx, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
		},
	}
	cmd.Flags().StringVar(&holdingsPath, "holdings", "", "optional YAML holdings file")
	return cmd
}

// app holds the wired engine graph.
type app struct {
	cfg          config.Config
	store        *store.Store
	kv           *cache.KV
	router       *quotes.Router
	orchestrator *pipeline.Orchestrator
	forecast     *forecast.Engine
	server       *httpapi.Server
	cron         *cron.Cron
	log          zerolog.Logger
}

func buildApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	st, err := store.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	kv, err := cache.NewKV(cfg.RedisURL, 4096, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	httpc := providers.NewHTTPClient(cfg.RequestTimeout, logger)
	var gdelt news.Searcher
	if cfg.GdeltEnabled {
		gdelt = providers.NewGdeltClient(httpc, logger)
	}
	finnhub := providers.NewFinnhubClient(httpc, cfg.FinnhubKey, logger)
	yahoo := providers.NewYahooClient(httpc, logger)
	twelve := providers.NewTwelveDataClient(httpc, cfg.TwelveDataKey, logger)
	feeds := providers.NewFeedClient(httpc, logger)
	coingecko := providers.NewCoingeckoClient(httpc)
	fearGreed := providers.NewFearGreedClient(httpc)

	router := quotes.NewRouter([]quotes.Provider{yahoo, finnhub, twelve}, quotes.DefaultBuckets(), logger)

	newsEng := news.NewEngine(gdelt, finnhub, feeds, news.Options{
		MaxQueriesPerSpan: cfg.MaxQueriesPerSpan,
		MinNews:           cfg.MinNews,
		MinNewsLong:       cfg.MinNewsLong,
		ExtraMaxTickers:   cfg.NewsExtraMaxTickers,
		ExtraMaxFeeds:     cfg.NewsExtraMaxFeeds,
		DedupSimilarity:   cfg.DedupSimilarity,
		DomainSoftCap:     cfg.DomainSoftCap,
		NewsBudget:        cfg.NewsBudget,
		EventFeedBudget:   cfg.EventFeedBudget,
		PersonalBudget:    time.Duration(cfg.PersonalBudgetMS) * time.Millisecond,
		RankProfile:       cfg.RankProfile,
		RankProfileAuto:   cfg.RankProfileAuto,
	}, logger)

	fc := forecast.NewEngine(st, 0, cfg.ImpactHalfLifeHours, logger)
	impacts := eventstudy.NewImpactJob(st, st, logger)
	snapshot := pipeline.NewSnapshotBuilder(coingecko, fearGreed, logger)
	orc := pipeline.NewOrchestrator(cfg, snapshot, newsEng, router, st, fc, impacts, logger)

	holdings, err := loadHoldings(holdingsPath)
	if err != nil {
		return nil, err
	}
	pf := portfolio.NewEngine(router, st, holdings, logger)

	dbEng, err := buildDebate(ctx, cfg, kv, logger)
	if err != nil {
		return nil, err
	}

	server := httpapi.NewServer(orc, st, router, pf, dbEng, kv, logger)

	return &app{
		cfg:          cfg,
		store:        st,
		kv:           kv,
		router:       router,
		orchestrator: orc,
		forecast:     fc,
		server:       server,
		log:          logger,
	}, nil
}

// buildDebate wires whichever LLM transports have keys. Fewer than two
// providers leaves the debate engine disabled.
func buildDebate(ctx context.Context, cfg config.Config, kv *cache.KV, logger zerolog.Logger) (*debate.Engine, error) {
	var chain []debate.Provider
	if cfg.OpenAIKey != "" {
		chain = append(chain, debate.NewOpenAI(cfg.OpenAIKey, "", cfg.DebateProviderTimeout))
	}
	if cfg.GeminiKey != "" {
		g, err := debate.NewGemini(ctx, cfg.GeminiKey, "")
		if err != nil {
			logger.Warn().Err(err).Msg("gemini transport unavailable")
		} else {
			chain = append(chain, g)
		}
	}
	if cfg.OpenRouterKey != "" {
		chain = append(chain, debate.NewOpenRouter(cfg.OpenRouterKey, "", cfg.DebateProviderTimeout))
	}
	if len(chain) < 2 {
		logger.Info().Int("providers", len(chain)).Msg("debate disabled, need two llm providers")
		return nil, nil
	}
	var referee debate.Provider
	if len(chain) > 2 {
		referee = chain[2]
	}
	return debate.NewEngine(chain[0], chain[1], referee, kv, cfg.DebateProviderTimeout, cfg.DebateBudget, logger), nil
}

func loadHoldings(path string) ([]portfolio.Holding, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holdings: %w", err)
	}
	var doc struct {
		Holdings []portfolio.Holding `yaml:"holdings"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse holdings: %w", err)
	}
	return doc.Holdings, nil
}

// startWorker schedules the background jobs: a periodic pipeline tick,
// forecast expiry scoring and the nightly retention purge.
func (a *app) startWorker(ctx context.Context) {
	c := cron.New()

	_, _ = c.AddFunc("@every 15m", func() {
		tctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if _, err := a.orchestrator.Run(tctx, pipeline.Request{Timeframe: "1h", NewsTimespan: "6h"}); err != nil {
			a.log.Warn().Err(err).Msg("worker pipeline run failed")
		}
	})
	_, _ = c.AddFunc("@every 5m", func() {
		tctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if n, err := a.forecast.ScoreExpired(tctx); err != nil {
			a.log.Warn().Err(err).Msg("forecast scoring failed")
		} else if n > 0 {
			a.log.Info().Int("scored", n).Msg("forecasts scored")
		}
	})
	_, _ = c.AddFunc("@daily", func() {
		tctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		cutoff := time.Now().AddDate(0, 0, -a.cfg.RetentionDays)
		if n, err := a.store.PurgeBefore(tctx, cutoff); err != nil {
			a.log.Warn().Err(err).Msg("retention purge failed")
		} else {
			a.log.Info().Int64("rows", n).Msg("retention purge")
		}
	})

	c.Start()
	a.cron = c
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
}

func (a *app) Close() {
	if a.kv != nil {
		_ = a.kv.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
