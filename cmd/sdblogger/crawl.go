package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/TamperPanda/SDBLogger/config"
	"github.com/TamperPanda/SDBLogger/enrich"
	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/progress"
	"github.com/TamperPanda/SDBLogger/report"
	"github.com/TamperPanda/SDBLogger/scraper"
	"github.com/TamperPanda/SDBLogger/transport"
)

type crawlFlags struct {
	baseURL             string
	category            string
	objName             string
	minDelay            time.Duration
	maxDelay            time.Duration
	fetchMetadata       bool
	metadataURL         string
	chunkSize           int
	maxRateLimitRetries int
	noExport            bool
	output              outputFlags
	report              reportFlags
}

func newCrawlCmd(g *globalFlags) *cobra.Command {
	f := &crawlFlags{}

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every listing page and save a fresh snapshot",
		Long: `Walks the listing one page at a time with a randomized pause between pages,
merges duplicate rows, fetches missing price and rarity data in batches and
saves the result as the new snapshot. Interrupting the crawl keeps what was
collected so far.

Delay and metadata preferences are remembered for the next run.`,
		Example: `  # Crawl with the remembered settings and export CSV
  sdblogger crawl

  # Only the "food" category, slower pacing, no metadata lookup
  sdblogger crawl --category 1 --min-delay 2s --max-delay 4s --fetch-metadata=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := g.cfg

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := cfg.LoadSettings(ctx, a.kv); err != nil {
				return err
			}
			if err := cfg.ApplyEnv(); err != nil {
				return fmt.Errorf("environment: %w", err)
			}
			g.apply(cmd.Flags(), cfg)
			f.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := cfg.SaveSettings(ctx, a.kv); err != nil {
				slog.Warn("could not remember crawl settings", slog.Any("error", err))
			}
			opts, err := f.report.options()
			if err != nil {
				return err
			}

			source, err := scraper.NewCollySource(cfg, a.metrics)
			if err != nil {
				return err
			}
			reporter := progress.Log{Logger: slog.Default()}

			var enricher scraper.Enricher
			if cfg.FetchMetadata {
				batches := enrich.NewHTTPSource(cfg.MetadataURL, transport.NewClient(cfg.BatchTimeout, nil), cfg.UserAgent)
				client, err := enrich.NewClient(batches, a.cache, enrich.OptionsFromConfig(cfg), a.metrics, reporter)
				if err != nil {
					return err
				}
				enricher = client
			}

			sched := scraper.NewScheduler(source, a.cache, enricher, a.snapshots, scraper.OptionsFromConfig(cfg), a.metrics, reporter)

			slog.Info("starting crawl",
				slog.String("base_url", cfg.BaseURL),
				slog.String("category", cfg.Category),
				slog.String("obj_name", cfg.ObjName),
				slog.Duration("min_delay", cfg.MinDelay),
				slog.Duration("max_delay", cfg.MaxDelay),
				slog.Bool("fetch_metadata", cfg.FetchMetadata),
			)
			result, err := sched.Run(ctx)
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}

			var totals *report.Totals
			if cfg.AutoExport && result.Snapshot != nil {
				t, err := report.ExportFile(result.Snapshot, opts, cfg.OutputFormat, cfg.OutputFile, cfg.BatchSize)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				totals = &t
			}

			printCrawlSummary(cmd, result, cfg, totals)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.baseURL, "base-url", "", "Site origin to crawl (env SDB_BASE_URL)")
	fs.StringVar(&f.category, "category", "", "Listing category filter (env SDB_CATEGORY)")
	fs.StringVar(&f.objName, "obj-name", "", "Listing item-name filter (env SDB_OBJ_NAME)")
	fs.DurationVar(&f.minDelay, "min-delay", 0, "Minimum pause between pages (remembered)")
	fs.DurationVar(&f.maxDelay, "max-delay", 0, "Maximum pause between pages (remembered)")
	fs.BoolVar(&f.fetchMetadata, "fetch-metadata", true, "Look up price and rarity for identified items (remembered)")
	fs.StringVar(&f.metadataURL, "metadata-url", "", "Batch lookup endpoint (env SDB_METADATA_URL)")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "Identifiers per lookup request (env SDB_CHUNK_SIZE)")
	fs.IntVar(&f.maxRateLimitRetries, "max-rate-limit-retries", 0, "Give up on a rate-limited chunk after this many retries; 0 retries forever")
	fs.BoolVar(&f.noExport, "no-export", false, "Do not write the report after the crawl")
	f.output.bind(fs)
	f.report.bind(fs)
	return cmd
}

// apply copies explicitly set flags onto cfg.
func (f *crawlFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if fs.Changed("category") {
		cfg.Category = f.category
	}
	if fs.Changed("obj-name") {
		cfg.ObjName = f.objName
	}
	if fs.Changed("min-delay") {
		cfg.MinDelay = f.minDelay
	}
	if fs.Changed("max-delay") {
		cfg.MaxDelay = f.maxDelay
	}
	if fs.Changed("fetch-metadata") {
		cfg.FetchMetadata = f.fetchMetadata
	}
	if fs.Changed("metadata-url") {
		cfg.MetadataURL = f.metadataURL
	}
	if fs.Changed("chunk-size") {
		cfg.ChunkSize = f.chunkSize
	}
	if fs.Changed("max-rate-limit-retries") {
		cfg.MaxRateLimitRetries = f.maxRateLimitRetries
	}
	if f.noExport {
		cfg.AutoExport = false
	}
	f.output.apply(fs, cfg)
}

func printCrawlSummary(cmd *cobra.Command, result *models.CrawlResult, cfg *config.Config, totals *report.Totals) {
	out := cmd.OutOrStdout()
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	if result.Stopped {
		fmt.Fprintln(out, "Crawl stopped early")
	} else {
		fmt.Fprintln(out, "Crawl complete")
	}
	fmt.Fprintf(out, "  Pages:         %d/%d\n", result.PagesDone, result.PagesTotal)
	fmt.Fprintf(out, "  Failed pages:  %d\n", result.PagesFailed)
	fmt.Fprintf(out, "  Rows skipped:  %d\n", result.RowsSkipped)
	fmt.Fprintf(out, "  Items:         %d\n", len(result.Items))
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(out, "  Error types:   %v\n", result.ErrorsByType)
	}
	if e := result.Enrichment; e != nil {
		fmt.Fprintf(out, "  Metadata:      %d fetched, %d missing, %d chunks, %d attempts\n", e.Fetched, e.Missing, e.Chunks, e.Attempts)
		if e.RateLimited > 0 {
			fmt.Fprintf(out, "  Rate limited:  %d\n", e.RateLimited)
		}
		if len(e.Unresolved) > 0 {
			fmt.Fprintf(out, "  Unresolved:    %d\n", len(e.Unresolved))
		}
	}
	fmt.Fprintf(out, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	if totals != nil {
		printTotals(cmd, *totals)
		fmt.Fprintf(out, "  Output file:   %s\n", cfg.OutputFile)
	}
	fmt.Fprintln(out, separator)
}

func printTotals(cmd *cobra.Command, t report.Totals) {
	fmt.Fprintf(cmd.OutOrStdout(), "  Items shown: %d | Total qty: %d | Est total value: %.0f\n", t.Items, t.Quantity, t.TotalValue)
}
