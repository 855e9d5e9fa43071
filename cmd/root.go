package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aroundme-app/aroundme/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "aroundme",
	Short: "Location-aware point-of-interest discovery",
	Long:  "Discovers points of interest near a location by mining community discussions, news coverage, and municipal open-data feeds, resolving each to a validated coordinate.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
