package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	syncLimit  int
	syncOffset int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the upstream entries API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, offset := cfg.Upstream.Limit, cfg.Upstream.Offset
		if cmd.Flags().Changed("limit") {
			limit = syncLimit
		}
		if cmd.Flags().Changed("offset") {
			offset = syncOffset
		}

		p, err := buildPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		count, err := p.syncer.PerformSync(cmd.Context(), limit, offset)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d articles.\n", count)
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncLimit, "limit", 5, "entries to fetch")
	syncCmd.Flags().IntVar(&syncOffset, "offset", 0, "entries to skip")
}
