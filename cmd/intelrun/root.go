package main

import (
	"context"

	"github.com/spf13/cobra"
)

var configPath string

func Execute(ctx context.Context) error {
	root := &cobra.Command{Use: "intelrun", Short: "Market intelligence service"}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")
	root.AddCommand(serveCmd(ctx))
	root.AddCommand(runCmd(ctx))
	root.AddCommand(purgeCmd(ctx))
	return root.ExecuteContext(ctx)
}
