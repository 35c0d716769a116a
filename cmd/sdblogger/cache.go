package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the item metadata cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show cached item count and age",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.cache.All(ctx)
			if err != nil {
				return err
			}
			last, err := a.cache.LastRefresh(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cached items: %d\n", len(records))
			if last.IsZero() {
				fmt.Fprintln(out, "Last refresh: never")
				return nil
			}
			age := time.Since(last).Round(time.Minute)
			state := "fresh"
			if age > g.cfg.CacheTTL {
				state = "stale, cleared at next crawl"
			}
			fmt.Fprintf(out, "Last refresh: %s (%s ago, %s)\n", last.Local().Format("2006-01-02 15:04"), age, state)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached record",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cache.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Metadata cache cleared")
			return nil
		},
	})

	return cmd
}
