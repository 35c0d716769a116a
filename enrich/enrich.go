// Package enrich resolves item metadata from the lookup service in sequential,
// rate-limit-aware batches and merges it into the persistent cache.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/TamperPanda/SDBLogger/cache"
	"github.com/TamperPanda/SDBLogger/config"
	"github.com/TamperPanda/SDBLogger/metrics"
	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/pacing"
	"github.com/TamperPanda/SDBLogger/progress"
	"github.com/TamperPanda/SDBLogger/transport"
)

// Options controls chunking and pacing.
type Options struct {
	ChunkSize  int
	DelayMin   time.Duration
	DelayMax   time.Duration
	BackoffMin time.Duration
	BackoffMax time.Duration
	// MaxRateLimitRetries bounds consecutive rate-limited attempts of one
	// chunk; past it the chunk is skipped. 0 retries until it succeeds.
	MaxRateLimitRetries int
	// UnresolvedMaxSize is the starting capacity of the unresolved tracker.
	// Each pass grows it to the number of missing ids so none are evicted.
	UnresolvedMaxSize int
}

// OptionsFromConfig copies the enrichment settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ChunkSize:           cfg.ChunkSize,
		DelayMin:            cfg.ChunkDelayMin,
		DelayMax:            cfg.ChunkDelayMax,
		BackoffMin:          cfg.RateLimitBackoffMin,
		BackoffMax:          cfg.RateLimitBackoffMax,
		MaxRateLimitRetries: cfg.MaxRateLimitRetries,
		UnresolvedMaxSize:   cfg.UnresolvedMaxSize,
	}
}

// Client is the enrichment client.
type Client struct {
	source   BatchSource
	cache    *cache.Cache
	opts     Options
	metrics  *metrics.Metrics
	progress progress.Reporter

	// unresolved remembers ids whose chunk was skipped during the current pass.
	unresolved *lru.Cache[int, string]

	sleep  pacing.SleepFunc
	jitter func(lo, hi time.Duration) time.Duration
	now    func() time.Time
}

// NewClient wires a client. m and p may be nil.
func NewClient(source BatchSource, c *cache.Cache, opts Options, m *metrics.Metrics, p progress.Reporter) (*Client, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if opts.UnresolvedMaxSize <= 0 {
		opts.UnresolvedMaxSize = 10000
	}
	unresolved, err := lru.New[int, string](opts.UnresolvedMaxSize)
	if err != nil {
		return nil, fmt.Errorf("create unresolved tracker: %w", err)
	}
	if p == nil {
		p = progress.Nop{}
	}
	return &Client{
		source:     source,
		cache:      c,
		opts:       opts,
		metrics:    m,
		progress:   p,
		unresolved: unresolved,
		sleep:      pacing.Sleep,
		jitter:     pacing.Jitter,
		now:        time.Now,
	}, nil
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []int, size int) [][]int {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	chunks := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Enrich fetches metadata for every id in ids that the cache lacks. Chunks
// are processed strictly in order; a rate-limited chunk is retried before
// any later chunk is attempted, and any other failure skips the chunk for
// this pass. When at least one chunk was requested the combined records
// replace the cache and the refresh time moves to now.
//
// Cancelling ctx stops between attempts; records fetched so far are still
// written to the cache but the refresh time is left alone.
func (c *Client) Enrich(ctx context.Context, ids []int) (*models.EnrichResult, error) {
	res := &models.EnrichResult{Requested: countDistinct(ids)}

	stored, err := c.cache.All(ctx)
	if err != nil {
		return res, err
	}
	missing, err := c.cache.Missing(ctx, ids)
	if err != nil {
		return res, err
	}
	res.Missing = len(missing)
	if len(missing) == 0 {
		slog.Debug("metadata cache already covers every item", slog.Int("ids", res.Requested))
		return res, nil
	}

	chunks := Chunk(missing, c.opts.ChunkSize)
	res.Chunks = len(chunks)
	combined := make(map[int]models.ItemMetadata, len(stored)+len(missing))
	for id, meta := range stored {
		combined[id] = meta
	}
	c.unresolved.Purge()
	if len(missing) > c.opts.UnresolvedMaxSize {
		c.unresolved.Resize(len(missing))
	}

	index := 0
	consecutive := 0
	for index < len(chunks) {
		if ctx.Err() != nil {
			break
		}
		chunk := chunks[index]
		c.progress.Report(progress.Percent(index, len(chunks)),
			fmt.Sprintf("Requesting metadata chunk %d/%d (%d items)...", index+1, len(chunks), len(chunk)))

		res.Attempts++
		records, err := c.fetchChunk(ctx, chunk)
		switch {
		case err == nil:
			c.metrics.IncChunk("ok")
			for id, meta := range records {
				combined[id] = meta
			}
			for _, id := range chunk {
				if _, ok := records[id]; !ok {
					c.unresolved.Add(id, "missing")
				}
			}
			res.Fetched += len(records)
			consecutive = 0
			index++
			if index < len(chunks) {
				delay := c.jitter(c.opts.DelayMin, c.opts.DelayMax)
				c.progress.Report(progress.Percent(index, len(chunks)),
					fmt.Sprintf("Processed chunk %d/%d. Next in %.1fs...", index, len(chunks), delay.Seconds()))
				_ = c.sleep(ctx, delay)
			}

		case transport.IsRateLimited(err):
			res.RateLimited++
			consecutive++
			c.metrics.IncChunk("rate_limited")
			c.metrics.IncRateLimited()
			if c.opts.MaxRateLimitRetries > 0 && consecutive > c.opts.MaxRateLimitRetries {
				slog.Warn("metadata chunk still rate limited, giving up",
					slog.Int("chunk", index+1),
					slog.Int("attempts", consecutive),
				)
				c.skip(ctx, chunk, "rate_limited", &index, len(chunks))
				consecutive = 0
				continue
			}
			backoff := c.jitter(c.opts.BackoffMin, c.opts.BackoffMax)
			c.progress.Report(progress.Percent(index, len(chunks)),
				fmt.Sprintf("Rate limited! Retrying chunk %d in %.1fs...", index+1, backoff.Seconds()))
			slog.Info("metadata chunk rate limited",
				slog.Int("chunk", index+1),
				slog.Int("attempt", consecutive),
				slog.Duration("backoff", backoff),
			)
			_ = c.sleep(ctx, backoff)

		default:
			label := transport.Label(err)
			c.metrics.IncChunk("failed")
			c.metrics.IncError(label)
			attrs := []any{
				slog.Int("chunk", index+1),
				slog.Int("ids", len(chunk)),
				slog.String("category", label),
				slog.Any("error", err),
			}
			var parseErr transport.ErrParse
			if errors.As(err, &parseErr) {
				attrs = append(attrs, slog.String("body", truncate(parseErr.Input, 512)))
			}
			slog.Warn("metadata chunk failed, skipping", attrs...)
			consecutive = 0
			c.skip(ctx, chunk, label, &index, len(chunks))
		}
	}

	res.Unresolved = c.unresolved.Keys()

	// Persist even when ctx was cancelled so fetched records are not lost.
	persistCtx := context.WithoutCancel(ctx)
	if err := c.cache.Replace(persistCtx, combined); err != nil {
		return res, err
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("enrichment interrupted: %w", ctx.Err())
	}
	if err := c.cache.MarkRefreshed(persistCtx, c.now()); err != nil {
		return res, err
	}
	res.Refreshed = true
	c.progress.Report(100, fmt.Sprintf("Metadata fetched for %d of %d items", res.Fetched, res.Missing))
	return res, nil
}

// skip abandons the chunk at *index for this pass and waits the standard delay.
func (c *Client) skip(ctx context.Context, chunk []int, reason string, index *int, total int) {
	for _, id := range chunk {
		c.unresolved.Add(id, reason)
	}
	*index++
	if *index < total {
		_ = c.sleep(ctx, c.jitter(c.opts.DelayMin, c.opts.DelayMax))
	}
}

// fetchChunk issues one batch request and classifies its outcome.
func (c *Client) fetchChunk(ctx context.Context, chunk []int) (map[int]models.ItemMetadata, error) {
	start := time.Now()
	resp, err := c.source.FetchBatch(ctx, chunk)
	c.metrics.ObserveDuration("batch", time.Since(start))
	if err != nil {
		return nil, transport.Classify(err, 0)
	}
	if resp.Status != http.StatusOK {
		return nil, transport.Classify(nil, resp.Status)
	}
	records, err := DecodeBatch(resp.Body)
	if err != nil {
		return nil, transport.ErrParse{Input: string(resp.Body), Err: err}
	}
	return records, nil
}

type batchItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    *struct {
		Value *float64 `json:"value"`
	} `json:"price"`
	Rarity     *int `json:"rarity"`
	IsNC       bool `json:"isNC"`
	IsBD       bool `json:"isBD"`
	IsWearable bool `json:"isWearable"`
}

// DecodeBatch parses a lookup-service response: an object from stringified id
// to item record. Entries with a non-numeric key or a null record are left
// out. A zero price is treated as unknown.
func DecodeBatch(body []byte) (map[int]models.ItemMetadata, error) {
	var raw map[string]*batchItem
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	records := make(map[int]models.ItemMetadata, len(raw))
	for key, item := range raw {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 || item == nil {
			continue
		}
		meta := models.ItemMetadata{
			Name:       item.Name,
			Category:   item.Category,
			Rarity:     item.Rarity,
			IsNC:       item.IsNC,
			IsBD:       item.IsBD,
			IsWearable: item.IsWearable,
		}
		if item.Price != nil && item.Price.Value != nil && *item.Price.Value != 0 {
			v := *item.Price.Value
			meta.Value = &v
		}
		records[id] = meta
	}
	return records, nil
}

func countDistinct(ids []int) int {
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if id > 0 {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
