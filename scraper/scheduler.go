// Package scraper walks the deposit-box listing page by page and folds every
// row into the aggregated inventory.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TamperPanda/SDBLogger/aggregate"
	"github.com/TamperPanda/SDBLogger/cache"
	"github.com/TamperPanda/SDBLogger/config"
	"github.com/TamperPanda/SDBLogger/metrics"
	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/pacing"
	"github.com/TamperPanda/SDBLogger/parser"
	"github.com/TamperPanda/SDBLogger/progress"
	"github.com/TamperPanda/SDBLogger/snapshot"
	"github.com/TamperPanda/SDBLogger/transport"
)

// ErrAlreadyRunning is returned by Run while another crawl is in progress.
var ErrAlreadyRunning = errors.New("scraper: crawl already running")

// inFlight guards against two schedulers crawling at once in one process.
var inFlight atomic.Bool

// State is the scheduler lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopping
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Enricher resolves metadata for item identifiers into the cache.
type Enricher interface {
	Enrich(ctx context.Context, ids []int) (*models.EnrichResult, error)
}

// Options controls the crawl loop.
type Options struct {
	PageSize      int
	MinDelay      time.Duration
	MaxDelay      time.Duration
	Origin        string // scheme://host used to absolutize image references
	FetchMetadata bool
}

// OptionsFromConfig copies the crawl settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	origin := ""
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}
	return Options{
		PageSize:      cfg.PageSize,
		MinDelay:      cfg.MinDelay,
		MaxDelay:      cfg.MaxDelay,
		Origin:        origin,
		FetchMetadata: cfg.FetchMetadata,
	}
}

// Scheduler runs crawl sessions. Only one session runs at a time.
type Scheduler struct {
	source    PageSource
	cache     *cache.Cache
	enricher  Enricher
	snapshots *snapshot.Store
	opts      Options
	metrics   *metrics.Metrics
	progress  progress.Reporter

	agg *aggregate.Aggregator

	mu    sync.Mutex
	state State

	sleep  pacing.SleepFunc
	jitter func(lo, hi time.Duration) time.Duration
	now    func() time.Time
}

// NewScheduler wires a scheduler. enricher may be nil when metadata is not
// fetched; m and p may be nil.
func NewScheduler(source PageSource, c *cache.Cache, enricher Enricher, snapshots *snapshot.Store, opts Options, m *metrics.Metrics, p progress.Reporter) *Scheduler {
	if p == nil {
		p = progress.Nop{}
	}
	return &Scheduler{
		source:    source,
		cache:     c,
		enricher:  enricher,
		snapshots: snapshots,
		opts:      opts,
		metrics:   m,
		progress:  p,
		agg:       aggregate.New(),
		sleep:     pacing.Sleep,
		jitter:    pacing.Jitter,
		now:       time.Now,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop asks a running crawl to finish at the next page boundary. The page
// in flight, if any, is allowed to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		s.state = Stopping
		slog.Info("crawl stop requested")
	}
}

func (s *Scheduler) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrAlreadyRunning
	}
	if !inFlight.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.state = Running
	return nil
}

func (s *Scheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	inFlight.Store(false)
}

// stopRequested reports whether the crawl should end at this boundary.
func (s *Scheduler) stopRequested(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Stopping || ctx.Err() != nil
}

func (s *Scheduler) complete() (stopped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stopped = s.state == Stopping
	s.state = Completed
	return stopped
}

// Run performs one crawl session: it walks every listing page in offset
// order, aggregates the rows, enriches identified items and saves the
// resulting snapshot. Page and row failures are logged and skipped.
// Cancelling ctx behaves like Stop; the partial inventory is still saved.
func (s *Scheduler) Run(ctx context.Context) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.finish()

	result := &models.CrawlResult{
		StartTime:    s.now(),
		ErrorsByType: make(map[string]int),
	}
	// Work after the crawl loop must finish even when ctx was cancelled.
	finalCtx := context.WithoutCancel(ctx)

	expired, err := s.cache.ExpireIfStale(ctx, result.StartTime)
	if err != nil {
		return nil, fmt.Errorf("expire metadata cache: %w", err)
	}
	if expired {
		slog.Info("metadata cache expired, cleared before crawl")
	}

	hint, err := s.source.Hint(ctx)
	if err != nil {
		s.recordError(result, err)
		slog.Warn("could not read page count, crawling the first page only", slog.Any("error", err))
	}
	total := parser.PageCount(hint, s.opts.PageSize)
	result.PagesTotal = total
	s.agg.Reset()

	slog.Info("crawl started",
		slog.Int("pages", total),
		slog.Int("page_options", hint.PageOptions),
		slog.Int("total_items", hint.TotalItems),
	)
	s.progress.Report(0, fmt.Sprintf("Processing page: 0/%d", total))

	for page := 0; page < total; page++ {
		if s.stopRequested(ctx) {
			break
		}
		offset := page * s.opts.PageSize
		s.crawlPage(ctx, result, offset)

		s.progress.Report(progress.Percent(page+1, total), fmt.Sprintf("Processing page: %d/%d", page+1, total))
		if page+1 < total {
			_ = s.sleep(ctx, s.jitter(s.opts.MinDelay, s.opts.MaxDelay))
		}
	}

	result.Stopped = s.complete() || ctx.Err() != nil
	result.Items = s.agg.Items()
	slog.Info("crawl finished",
		slog.Int("pages_done", result.PagesDone),
		slog.Int("pages_failed", result.PagesFailed),
		slog.Int("items", len(result.Items)),
		slog.Bool("stopped", result.Stopped),
	)

	if s.opts.FetchMetadata && s.enricher != nil && ctx.Err() == nil {
		ids := s.agg.IDs()
		if len(ids) > 0 {
			s.progress.Report(100, fmt.Sprintf("Fetching metadata for %d items...", len(ids)))
			enrichment, err := s.enricher.Enrich(ctx, ids)
			result.Enrichment = enrichment
			if err != nil {
				slog.Warn("metadata enrichment incomplete", slog.Any("error", err))
			}
		}
	}

	metadata, err := s.cache.All(finalCtx)
	if err != nil {
		return result, fmt.Errorf("load metadata: %w", err)
	}
	snap := snapshot.Build(result.Items, metadata, s.now())
	if err := s.snapshots.Save(finalCtx, snap, snap.CreatedAt); err != nil {
		return result, fmt.Errorf("save snapshot: %w", err)
	}
	result.Snapshot = snap
	result.EndTime = s.now()
	return result, nil
}

// crawlPage fetches and aggregates the page at offset. Failures are recorded
// and the crawl moves on.
func (s *Scheduler) crawlPage(ctx context.Context, result *models.CrawlResult, offset int) {
	rows, err := s.source.FetchPage(ctx, offset)
	if err != nil {
		result.PagesFailed++
		result.FailedPages = append(result.FailedPages, offset)
		s.metrics.IncPage("failed")
		label := s.recordError(result, err)
		slog.Error("page fetch failed",
			slog.Int("offset", offset),
			slog.String("category", label),
			slog.Any("error", err),
		)
		return
	}

	added := 0
	for _, row := range rows {
		candidate, err := parser.ExtractRow(row, s.opts.Origin)
		if err != nil {
			result.RowsSkipped++
			s.metrics.IncRowSkipped()
			s.recordError(result, err)
			slog.Warn("row skipped",
				slog.Int("offset", offset),
				slog.Any("error", err),
			)
			continue
		}
		s.agg.Upsert(offset, candidate)
		added++
	}
	result.PagesDone++
	s.metrics.IncPage("ok")
	s.metrics.AddRows(added)
	slog.Debug("page aggregated",
		slog.Int("offset", offset),
		slog.Int("rows", added),
		slog.Int("items", s.agg.Len()),
	)
}

func (s *Scheduler) recordError(result *models.CrawlResult, err error) string {
	label := transport.Label(err)
	result.ErrorsByType[label]++
	s.metrics.IncError(label)
	return label
}
