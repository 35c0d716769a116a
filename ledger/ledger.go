// Package ledger accumulates removed quantities per item until a
// reconciliation folds them into the last snapshot.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/store"
)

// Key is the storage key both tiers keep their removals under.
const Key = "sdb_removals"

// Ledger is the removal ledger. The primary tier is the process-wide store;
// the secondary tier is a document-scoped store written by the report side and
// merged into the primary before every reconciliation.
type Ledger struct {
	primary   store.KV
	secondary store.KV
	mu        sync.Mutex
}

// New returns a ledger over the two tiers. secondary may be nil.
func New(primary, secondary store.KV) *Ledger {
	return &Ledger{primary: primary, secondary: secondary}
}

// Record adds ev to the primary tier.
func (l *Ledger) Record(ctx context.Context, ev models.RemovalEvent) error {
	return l.record(ctx, l.primary, ev)
}

// RecordDocument adds ev to the secondary tier.
func (l *Ledger) RecordDocument(ctx context.Context, ev models.RemovalEvent) error {
	if l.secondary == nil {
		return fmt.Errorf("ledger has no document store")
	}
	return l.record(ctx, l.secondary, ev)
}

// Consume folds events into the primary tier until events is closed or ctx ends.
// Invalid events are logged and dropped.
func (l *Ledger) Consume(ctx context.Context, events <-chan models.RemovalEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := l.Record(ctx, ev); err != nil {
				slog.Warn("removal event dropped",
					slog.Int("item_id", ev.ItemID),
					slog.Int("qty", ev.Quantity),
					slog.Any("error", err),
				)
			}
		}
	}
}

// MergeSecondary copies every secondary entry over the primary, secondary
// winning on collision, then clears the secondary. It returns the number of
// entries merged.
func (l *Ledger) MergeSecondary(ctx context.Context) (int, error) {
	if l.secondary == nil || l.secondary == l.primary {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	pending, err := load(ctx, l.secondary)
	if err != nil {
		return 0, fmt.Errorf("load document removals: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	current, err := load(ctx, l.primary)
	if err != nil {
		return 0, fmt.Errorf("load removals: %w", err)
	}
	for id, qty := range pending {
		current[id] = qty
	}
	if err := save(ctx, l.primary, current); err != nil {
		return 0, err
	}
	if err := l.secondary.Delete(ctx, Key); err != nil {
		return 0, fmt.Errorf("clear document removals: %w", err)
	}
	slog.Info("merged document removals", slog.Int("entries", len(pending)))
	return len(pending), nil
}

// All returns the primary tier.
func (l *Ledger) All(ctx context.Context) (map[int]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return load(ctx, l.primary)
}

// Pending returns the secondary tier without merging it.
func (l *Ledger) Pending(ctx context.Context) (map[int]int, error) {
	if l.secondary == nil {
		return map[int]int{}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return load(ctx, l.secondary)
}

// Clear empties the primary tier.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.primary.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear removals: %w", err)
	}
	return nil
}

func (l *Ledger) record(ctx context.Context, kv store.KV, ev models.RemovalEvent) error {
	if ev.ItemID <= 0 {
		return fmt.Errorf("removal needs a positive item id, got %d", ev.ItemID)
	}
	if ev.Quantity <= 0 {
		return fmt.Errorf("removal needs a positive quantity, got %d", ev.Quantity)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := load(ctx, kv)
	if err != nil {
		return fmt.Errorf("load removals: %w", err)
	}
	entries[ev.ItemID] += ev.Quantity
	return save(ctx, kv, entries)
}

// IDs returns the ledger's item ids in ascending order.
func IDs(entries map[int]int) []int {
	ids := make([]int, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func load(ctx context.Context, kv store.KV) (map[int]int, error) {
	raw, err := kv.Get(ctx, Key, "{}")
	if err != nil {
		return nil, err
	}
	var encoded map[string]int
	if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
		return nil, fmt.Errorf("decode removals: %w", err)
	}
	entries := make(map[int]int, len(encoded))
	for key, qty := range encoded {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 || qty <= 0 {
			continue
		}
		entries[id] = qty
	}
	return entries, nil
}

func save(ctx context.Context, kv store.KV, entries map[int]int) error {
	encoded := make(map[string]int, len(entries))
	for id, qty := range entries {
		encoded[strconv.Itoa(id)] = qty
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("encode removals: %w", err)
	}
	if err := kv.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("store removals: %w", err)
	}
	return nil
}
