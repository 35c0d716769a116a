package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TamperPanda/SDBLogger/report"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		output outputFlags
		rf     reportFlags
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the last snapshot as a report",
		Example: `  sdblogger export --format parquet -o output/sdb.parquet
  sdblogger export --sort stackValue --min-rarity 90 --show-nc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := g.cfg
			output.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			opts, err := rf.options()
			if err != nil {
				return err
			}

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.snapshots.Load(ctx)
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("no snapshot yet: run a crawl first")
			}

			totals, err := report.ExportFile(snap, opts, cfg.OutputFormat, cfg.OutputFile, cfg.BatchSize)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			printTotals(cmd, totals)
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot from %s written to %s\n", snap.CreatedAt.Local().Format("2006-01-02 15:04"), cfg.OutputFile)
			return nil
		},
	}

	output.bind(cmd.Flags())
	rf.bind(cmd.Flags())
	return cmd
}
