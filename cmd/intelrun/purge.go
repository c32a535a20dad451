package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/intelrun/internal/config"
	"github.com/sawpanic/intelrun/internal/store"
)

func purgeCmd(ctx context.Context) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete events, forecasts and bars older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.RetentionDays
			}
			st, err := store.Open(cfg.DatabaseURL, log.Logger)
			if err != nil {
				return err
			}
			defer st.Close()

			tctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			n, err := st.PurgeBefore(tctx, time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			log.Info().Int64("rows", n).Int("days", days).Msg("purge complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "override retention window in days")
	return cmd
}
