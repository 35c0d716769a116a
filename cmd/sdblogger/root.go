package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/TamperPanda/SDBLogger/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	storeDSN    string
	documentDSN string
	metricsAddr string
	verbose     bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "sdblogger",
		Short: "Inventory logger for the safety deposit box",
		Long: `sdblogger crawls the safety deposit box listing, merges duplicate rows into
one inventory, enriches identified items with price and rarity data, and keeps
the last snapshot in step with items removed since.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg := config.DefaultConfig()
			if err := cfg.ApplyEnv(); err != nil {
				return fmt.Errorf("environment: %w", err)
			}
			g.apply(cmd.Flags(), cfg)

			logger, _ := newLogger(cfg.Verbose)
			slog.SetDefault(logger)
			g.cfg = cfg
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.storeDSN, "store", "", "Primary store: sqlite path, postgres:// URL, yaml file or memory: (env SDB_STORE)")
	pf.StringVar(&g.documentDSN, "document-store", "", "Document store for removals recorded outside the tool (env SDB_DOCUMENT_STORE)")
	pf.StringVar(&g.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address, e.g. :9090 (env SDB_METRICS_ADDR)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newCrawlCmd(g),
		newReconcileCmd(g),
		newRemoveCmd(g),
		newExportCmd(g),
		newCacheCmd(g),
	)
	return cmd
}

// apply copies explicitly set global flags onto cfg.
func (g *globalFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("store") {
		cfg.StoreDSN = g.storeDSN
	}
	if fs.Changed("document-store") {
		cfg.DocumentStoreDSN = g.documentDSN
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = g.metricsAddr
	}
	cfg.Verbose = g.verbose
}
