package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/bookpipe/internal/config"
	logpkg "github.com/local/bookpipe/internal/logger"
	"github.com/local/bookpipe/internal/metrics"
)

var cfg cfgpkg.Config

var rootCmd = &cobra.Command{
	Use:   "bookpipe",
	Short: "Structural complexity classification and segmentation for PDF book corpora",
	Long: `Bookpipe analyzes book-length PDF documents with a staged evidence
pipeline (embedded outline, secondary metadata dump, visual layout
heuristics), classifies each book's structural complexity through a
fault-tolerant remote inference client, and splits classified books into
their component documents.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environments configure directly.
		_ = godotenv.Load()
		cfg = cfgpkg.FromEnv()

		if err := logpkg.Init(logpkg.Options{
			Level:      cfg.Logging.Level,
			Pretty:     cfg.Logging.Pretty,
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
			Axiom: logpkg.AxiomOptions{
				Enabled: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
				APIKey:  cfg.Axiom.APIKey,
				OrgID:   cfg.Axiom.OrgID,
				Dataset: cfg.Axiom.Dataset,
				Flush:   cfg.Axiom.FlushInterval,
			},
		}); err != nil {
			return err
		}
		metrics.Init()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logpkg.Close()
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd, segmentCmd, inspectCmd)
}
