package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/techreview-es/mgz-harvester/internal/config"
	"github.com/techreview-es/mgz-harvester/internal/logger"
)

var (
	configPath string

	cfg *config.Config
	log logger.Logger = logger.NopLogger{}
)

var rootCmd = &cobra.Command{
	Use:   "mgz",
	Short: "Ingests MIT Technology Review entries as Spanish articles",
	Long: `mgz pulls entries from the MIT Technology Review content API, translates
them to Spanish, and upserts the normalized articles into the document store.

It also carries the maintenance passes that rewrite stored articles with the
current cleanup rules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logger.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		log = l
		log.DebugObj("configuration loaded", "config", cfg.String())
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, syncCmd, repairCmd, backfillCmd, diagnoseCmd, inspectCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
