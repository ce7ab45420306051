package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbx-ops/recsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "recsync",
	Short: "Incremental call-recording uploader",
	Long:  "Scans daily recording archives, resolves each call against the CDR store, uploads new recordings to S3 exactly once, and triggers the downstream workflow.",
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
		os.Exit(exitCode(err))
	}
}
