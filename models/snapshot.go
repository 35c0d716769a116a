package models

import "time"

// SnapshotItem is one aggregated item joined with its cached metadata.
type SnapshotItem struct {
	ID         int      `json:"id,omitempty" parquet:"id"`
	Name       string   `json:"name" parquet:"name"`
	Quantity   int      `json:"qty" parquet:"qty"`
	Type       string   `json:"type" parquet:"type"`
	ImageURL   string   `json:"image" parquet:"image"`
	Category   string   `json:"cat,omitempty" parquet:"category"`
	Value      *float64 `json:"value" parquet:"value,optional"`
	Rarity     *int     `json:"rarity" parquet:"rarity,optional"`
	IsNC       bool     `json:"isNC" parquet:"is_nc"`
	IsBD       bool     `json:"isBD" parquet:"is_bd"`
	IsWearable bool     `json:"isWearable" parquet:"is_wearable"`
}

// StackValue is quantity times unit value, zero when the value is unknown.
func (it SnapshotItem) StackValue() float64 {
	if it.Value == nil {
		return 0
	}
	return float64(it.Quantity) * *it.Value
}

// Snapshot is the finalized dataset of one crawl, possibly corrected by reconciliation.
type Snapshot struct {
	CreatedAt    time.Time      `json:"created_at"`
	ReconciledAt *time.Time     `json:"reconciled_at,omitempty"`
	Items        []SnapshotItem `json:"items"`
}

// Clone returns a deep copy safe to mutate.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{CreatedAt: s.CreatedAt, Items: make([]SnapshotItem, len(s.Items))}
	if s.ReconciledAt != nil {
		at := *s.ReconciledAt
		out.ReconciledAt = &at
	}
	copy(out.Items, s.Items)
	return out
}
