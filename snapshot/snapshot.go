// Package snapshot joins aggregated items with cached metadata and persists
// the last finalized result.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/store"
)

const (
	// KeyLast holds the JSON encoding of the last finalized snapshot.
	KeyLast = "sdb_last_export"
	// KeyLastTime holds the unix-millisecond time the last snapshot was saved.
	KeyLastTime = "sdb_last_export_time"
)

// Build joins items with metadata by identifier. Items without an identifier,
// or without a cached record, carry no metadata.
func Build(items []models.AggregatedItem, metadata map[int]models.ItemMetadata, now time.Time) *models.Snapshot {
	snap := &models.Snapshot{
		CreatedAt: now,
		Items:     make([]models.SnapshotItem, 0, len(items)),
	}
	for _, it := range items {
		row := models.SnapshotItem{
			ID:       it.ID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Type:     it.Type,
			ImageURL: it.ImageURL,
		}
		if it.HasID() {
			if meta, ok := metadata[it.ID]; ok {
				row.Category = meta.Category
				row.Value = meta.Value
				row.Rarity = meta.Rarity
				row.IsNC = meta.IsNC
				row.IsBD = meta.IsBD
				row.IsWearable = meta.IsWearable
			}
		}
		snap.Items = append(snap.Items, row)
	}
	return snap
}

// Store persists the last finalized snapshot.
type Store struct {
	kv store.KV
}

func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

// Save replaces the last finalized snapshot.
func (s *Store) Save(ctx context.Context, snap *models.Snapshot, now time.Time) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, KeyLast, string(data)); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, KeyLastTime, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("store snapshot time: %w", err)
	}
	return nil
}

// Load returns the last finalized snapshot, or nil if none was saved.
func (s *Store) Load(ctx context.Context) (*models.Snapshot, error) {
	raw, err := s.kv.Get(ctx, KeyLast, "")
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var snap models.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
