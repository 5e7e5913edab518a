package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rolerag/internal/config"
	"rolerag/internal/logging"
)

var (
	cfgPath string
	verbose bool

	cfg    *config.AppConfig
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "rag",
	Short: "Role-aware question answering over department documents",
	Long: `rag segments department markdown reports into heading-labeled chunks,
tags every chunk with the roles allowed to read it, and answers questions
using only the chunks the asking role may see.

Documents live under <data_dir>/<department>/*.md.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		if cfgPath == "" {
			cfg, _, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = logging.New(cfg.Log.Level, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/rolerag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
