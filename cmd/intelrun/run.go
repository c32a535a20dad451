package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/intelrun/internal/config"
	"github.com/sawpanic/intelrun/internal/pipeline"
)

func runCmd(ctx context.Context) *cobra.Command {
	var (
		timeframe string
		timespan  string
		watchlist []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline pass and print the response as JSON",
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

			tctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
			defer cancel()
			resp, err := app.orchestrator.Run(tctx, pipeline.Request{
				Timeframe:    timeframe,
				NewsTimespan: timespan,
				Watchlist:    watchlist,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&timeframe, "tf", "1h", "forecast timeframe")
	cmd.Flags().StringVar(&timespan, "span", "6h", "news timespan")
	cmd.Flags().StringSliceVar(&watchlist, "watch", nil, "extra symbols to quote")
	return cmd
}
