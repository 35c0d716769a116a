package config

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/TamperPanda/SDBLogger/store"
)

// Keys under which crawl preferences are remembered between runs.
const (
	KeyMinDelay      = "sdb_min_delay"
	KeyMaxDelay      = "sdb_max_delay"
	KeyFetchMetadata = "sdb_fetch_itemdb"
)

// LoadSettings overlays remembered crawl preferences onto c. Delays are
// stored in milliseconds; unreadable entries are ignored.
func (c *Config) LoadSettings(ctx context.Context, kv store.KV) error {
	delays := []struct {
		key string
		dst *time.Duration
	}{
		{KeyMinDelay, &c.MinDelay},
		{KeyMaxDelay, &c.MaxDelay},
	}
	for _, item := range delays {
		raw, err := kv.Get(ctx, item.key, "")
		if err != nil {
			return fmt.Errorf("load %s: %w", item.key, err)
		}
		if raw == "" {
			continue
		}
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			slog.Warn("ignoring stored setting", slog.String("key", item.key), slog.String("value", raw))
			continue
		}
		*item.dst = time.Duration(ms) * time.Millisecond
	}

	raw, err := kv.Get(ctx, KeyFetchMetadata, "")
	if err != nil {
		return fmt.Errorf("load %s: %w", KeyFetchMetadata, err)
	}
	if raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			c.FetchMetadata = v
		}
	}
	return nil
}

// SaveSettings remembers the current crawl preferences.
func (c *Config) SaveSettings(ctx context.Context, kv store.KV) error {
	values := map[string]string{
		KeyMinDelay:      strconv.FormatInt(c.MinDelay.Milliseconds(), 10),
		KeyMaxDelay:      strconv.FormatInt(c.MaxDelay.Milliseconds(), 10),
		KeyFetchMetadata: strconv.FormatBool(c.FetchMetadata),
	}
	for key, value := range values {
		if err := kv.Set(ctx, key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}
