package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/techreview-es/mgz-harvester/internal/enrich"
	"github.com/techreview-es/mgz-harvester/internal/repair"
)

var (
	batchSize     int
	backfillLimit int
	diagnoseLimit int
)

var repairCmd = &cobra.Command{
	Use:       "repair <job>",
	Short:     "Rewrite stored articles with the current cleanup rules",
	Long:      "Jobs:\n  normalize  default a missing status to published and clean excerpts\n  content    rebuild content paragraphs and clean excerpts, stamping cleanedAt",
	Args:      cobra.ExactArgs(1),
	ValidArgs: jobNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, ok := repair.Jobs()[args[0]]
		if !ok {
			return fmt.Errorf("unknown repair job %q (want one of: %s)", args[0], strings.Join(jobNames(), ", "))
		}
		size := cfg.Repair.BatchSize
		if cmd.Flags().Changed("batch-size") {
			size = batchSize
		}

		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := repair.NewRunner(st, size, log).Run(cmd.Context(), job)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s complete: scanned %d, updated %d in %d batches.\n", job.Name(), res.Scanned, res.Updated, res.Batches)
		return nil
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill-social",
	Short: "Generate LinkedIn posts for recent articles that have none",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		gen, err := openGenerator(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		b := enrich.NewBackfiller(st, enrich.NewSocialPostGenerator(gen, log), log)
		res, err := b.Run(cmd.Context(), backfillLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backfill complete: scanned %d, generated %d, skipped %d.\n", res.Scanned, res.Generated, res.Skipped)
		return nil
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "List recent articles with untranslated titles, no image or empty content",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		rep, err := repair.Diagnose(cmd.Context(), st, diagnoseLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if rep.Scanned == 0 {
			fmt.Fprintln(out, "No articles found.")
			return nil
		}
		for i, f := range rep.Findings {
			fmt.Fprintf(out, "%d. ID: %s (doc %s)\n", i+1, f.OriginalID, f.DocID)
			fmt.Fprintf(out, "   Title: %s\n", f.Title)
			fmt.Fprintf(out, "   Issues: [%s]\n", strings.Join(f.Issues, "] ["))
			fmt.Fprintf(out, "   Paragraphs: %d, figures: %d, text: %d chars\n", f.Stats.Paragraphs, f.Stats.Figures, f.Stats.TextLength)
		}
		if len(rep.Findings) == 0 {
			fmt.Fprintf(out, "No major issues found in the last %d articles.\n", rep.Scanned)
			return nil
		}
		fmt.Fprintf(out, "Summary: %d of %d articles with potential issues.\n", len(rep.Findings), rep.Scanned)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <doc-id>",
	Short: "Show a content preview and paragraph count for one article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		in, err := repair.Inspect(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Article ID: %s\nTitle: %s\n", in.DocID, in.Title)
		fmt.Fprintln(out, "--- Content preview ---")
		fmt.Fprintln(out, in.Preview)
		fmt.Fprintln(out, "--- End of preview ---")
		fmt.Fprintf(out, "Has <p> tags: %t\n", in.HasParagraphs())
		if in.HasParagraphs() {
			fmt.Fprintf(out, "Number of <p> tags: %d\n", in.Stats.Paragraphs)
		}
		return nil
	},
}

func jobNames() []string {
	names := make([]string, 0, len(repair.Jobs()))
	for name := range repair.Jobs() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	repairCmd.Flags().IntVar(&batchSize, "batch-size", repair.DefaultBatchSize, "updates per commit")
	backfillCmd.Flags().IntVar(&backfillLimit, "limit", enrich.DefaultBackfillLimit, "recent articles to inspect")
	diagnoseCmd.Flags().IntVar(&diagnoseLimit, "limit", repair.DefaultDiagnoseLimit, "recent articles to check")
}
