// Package cache persists item metadata fetched from the lookup service and
// invalidates it wholesale once it is older than its TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/store"
)

const (
	// KeyDatabase holds the JSON object of id -> metadata.
	KeyDatabase = "itemDatabase"
	// KeyRefreshed holds the unix-millisecond time of the last enrichment that fetched data.
	KeyRefreshed = "itemDataDate"
)

// Cache is the durable id -> metadata mapping plus its last-refresh timestamp.
type Cache struct {
	kv  store.KV
	ttl time.Duration
	mu  sync.Mutex
}

// New returns a cache persisted in kv that expires after ttl.
func New(kv store.KV, ttl time.Duration) *Cache {
	return &Cache{kv: kv, ttl: ttl}
}

// ExpireIfStale drops every cached record when the last refresh is older than
// the TTL, or was never recorded. It reports whether the records were dropped.
func (c *Cache) ExpireIfStale(ctx context.Context, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, err := c.lastRefreshLocked(ctx)
	if err != nil {
		return false, err
	}
	if now.Sub(last) <= c.ttl {
		return false, nil
	}
	if err := c.kv.Delete(ctx, KeyDatabase); err != nil {
		return false, fmt.Errorf("drop expired cache: %w", err)
	}
	slog.Info("metadata cache expired",
		slog.Time("last_refresh", last),
		slog.Duration("ttl", c.ttl),
	)
	return true, nil
}

// All returns a copy of every cached record.
func (c *Cache) All(ctx context.Context) (map[int]models.ItemMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

// Missing returns the ids, in input order and without repeats, that have no cached record.
func (c *Cache) Missing(ctx context.Context, ids []int) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]struct{}, len(ids))
	missing := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := records[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Replace overwrites the whole mapping with records.
func (c *Cache) Replace(ctx context.Context, records map[int]models.ItemMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	encoded := make(map[string]models.ItemMetadata, len(records))
	for id, meta := range records {
		encoded[strconv.Itoa(id)] = meta
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("encode metadata cache: %w", err)
	}
	if err := c.kv.Set(ctx, KeyDatabase, string(data)); err != nil {
		return fmt.Errorf("store metadata cache: %w", err)
	}
	return nil
}

// MarkRefreshed records now as the last refresh time.
func (c *Cache) MarkRefreshed(ctx context.Context, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.kv.Set(ctx, KeyRefreshed, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("store refresh time: %w", err)
	}
	return nil
}

// LastRefresh returns the last refresh time, or the zero time if none was recorded.
func (c *Cache) LastRefresh(ctx context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefreshLocked(ctx)
}

// Clear drops the records and the refresh time.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.kv.Delete(ctx, KeyDatabase); err != nil {
		return fmt.Errorf("clear metadata cache: %w", err)
	}
	if err := c.kv.Delete(ctx, KeyRefreshed); err != nil {
		return fmt.Errorf("clear refresh time: %w", err)
	}
	return nil
}

func (c *Cache) lastRefreshLocked(ctx context.Context) (time.Time, error) {
	raw, err := c.kv.Get(ctx, KeyRefreshed, "0")
	if err != nil {
		return time.Time{}, fmt.Errorf("load refresh time: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

func (c *Cache) loadLocked(ctx context.Context) (map[int]models.ItemMetadata, error) {
	raw, err := c.kv.Get(ctx, KeyDatabase, "{}")
	if err != nil {
		return nil, fmt.Errorf("load metadata cache: %w", err)
	}
	var encoded map[string]models.ItemMetadata
	if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
		// A corrupt blob is treated as empty; the next enrichment rewrites it.
		slog.Warn("metadata cache unreadable, starting empty", slog.Any("error", err))
		return make(map[int]models.ItemMetadata), nil
	}
	records := make(map[int]models.ItemMetadata, len(encoded))
	for key, meta := range encoded {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 {
			continue
		}
		records[id] = meta
	}
	return records, nil
}
