package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/store"
)

func TestBuildJoinsByID(t *testing.T) {
	price := 2500.0
	rarity := 90
	items := []models.AggregatedItem{
		{Key: "id:1", ID: 1, Name: "Apple", Quantity: 5, Type: "Food"},
		{Key: "id:2", ID: 2, Name: "Pear", Quantity: 1},
		{Key: "name:mystery", Name: "Mystery", Quantity: 2},
	}
	meta := map[int]models.ItemMetadata{
		1: {Name: "Apple", Category: "food", Value: &price, Rarity: &rarity, IsWearable: false},
	}
	now := time.Unix(1700000000, 0)

	snap := Build(items, meta, now)
	if !snap.CreatedAt.Equal(now) {
		t.Fatalf("created at = %v", snap.CreatedAt)
	}
	if len(snap.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(snap.Items))
	}
	apple := snap.Items[0]
	if apple.Value == nil || *apple.Value != 2500 || apple.Category != "food" || apple.Quantity != 5 {
		t.Fatalf("apple = %+v", apple)
	}
	if apple.StackValue() != 12500 {
		t.Fatalf("stack value = %v, want 12500", apple.StackValue())
	}
	if snap.Items[1].Value != nil || snap.Items[1].StackValue() != 0 {
		t.Fatalf("pear should carry no metadata: %+v", snap.Items[1])
	}
	if snap.Items[2].ID != 0 || snap.Items[2].Name != "Mystery" {
		t.Fatalf("unidentified item = %+v", snap.Items[2])
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := NewStore(kv)

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil snapshot before first save")
	}

	price := 10.5
	snap := &models.Snapshot{
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Items:     []models.SnapshotItem{{ID: 9, Name: "Apple", Quantity: 10, Value: &price}},
	}
	if err := s.Save(ctx, snap, time.UnixMilli(1700000001000)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 10 || *got.Items[0].Value != 10.5 {
		t.Fatalf("loaded = %+v", got)
	}
	if raw, _ := kv.Get(ctx, KeyLastTime, ""); raw != "1700000001000" {
		t.Fatalf("export time = %q", raw)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	_ = kv.Set(ctx, KeyLast, "{")
	if _, err := NewStore(kv).Load(ctx); err == nil {
		t.Fatalf("expected decode error")
	}
}
