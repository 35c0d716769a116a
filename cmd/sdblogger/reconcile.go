package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TamperPanda/SDBLogger/reconcile"
	"github.com/TamperPanda/SDBLogger/report"
)

func newReconcileCmd(g *globalFlags) *cobra.Command {
	var (
		export bool
		output outputFlags
		rf     reportFlags
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Apply recorded removals to the last snapshot",
		Long: `Merges removals from the document store into the ledger, subtracts them
from the last snapshot, drops items that reach zero and clears the ledger.
Running it again with nothing recorded leaves the snapshot untouched.`,
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

			res, err := reconcile.New(a.snapshots, a.ledger, a.metrics).Reconcile(ctx)
			if errors.Is(err, reconcile.ErrNoSnapshot) {
				return fmt.Errorf("nothing to reconcile: run a crawl first")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Merged from document store: %d\n", res.Merged)
			fmt.Fprintf(out, "Adjusted: %d  Dropped: %d  Remaining items: %d\n", res.Adjusted, res.Dropped, len(res.Snapshot.Items))
			if len(res.Unknown) > 0 {
				fmt.Fprintf(out, "Removals for items not in the snapshot: %v\n", res.Unknown)
			}

			if export {
				totals, err := report.ExportFile(res.Snapshot, opts, cfg.OutputFormat, cfg.OutputFile, cfg.BatchSize)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				printTotals(cmd, totals)
				fmt.Fprintf(out, "Output file: %s\n", cfg.OutputFile)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&export, "export", false, "Write the corrected report afterwards")
	output.bind(fs)
	rf.bind(fs)
	return cmd
}
