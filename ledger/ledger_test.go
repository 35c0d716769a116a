package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/store"
)

func TestRecordAccumulates(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory(), store.NewMemory())

	for _, ev := range []models.RemovalEvent{{ItemID: 9, Quantity: 1}, {ItemID: 9, Quantity: 3}, {ItemID: 4, Quantity: 2}} {
		if err := l.Record(ctx, ev); err != nil {
			t.Fatalf("record %+v: %v", ev, err)
		}
	}
	all, err := l.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if all[9] != 4 || all[4] != 2 || len(all) != 2 {
		t.Fatalf("ledger = %v, want map[4:2 9:4]", all)
	}
}

func TestRecordRejectsInvalidEvents(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory(), nil)
	for _, ev := range []models.RemovalEvent{{ItemID: 0, Quantity: 1}, {ItemID: 3, Quantity: 0}, {ItemID: 3, Quantity: -2}} {
		if err := l.Record(ctx, ev); err == nil {
			t.Fatalf("expected error for %+v", ev)
		}
	}
	all, _ := l.All(ctx)
	if len(all) != 0 {
		t.Fatalf("ledger = %v, want empty", all)
	}
}

func TestMergeSecondaryWinsAndClears(t *testing.T) {
	ctx := context.Background()
	primary := store.NewMemory()
	secondary := store.NewMemory()
	l := New(primary, secondary)

	_ = l.Record(ctx, models.RemovalEvent{ItemID: 1, Quantity: 2})
	_ = l.Record(ctx, models.RemovalEvent{ItemID: 2, Quantity: 7})
	_ = l.RecordDocument(ctx, models.RemovalEvent{ItemID: 2, Quantity: 5})
	_ = l.RecordDocument(ctx, models.RemovalEvent{ItemID: 3, Quantity: 1})

	merged, err := l.MergeSecondary(ctx)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged != 2 {
		t.Fatalf("merged = %d, want 2", merged)
	}
	all, _ := l.All(ctx)
	want := map[int]int{1: 2, 2: 5, 3: 1}
	if len(all) != len(want) {
		t.Fatalf("ledger = %v, want %v", all, want)
	}
	for id, qty := range want {
		if all[id] != qty {
			t.Fatalf("ledger = %v, want %v", all, want)
		}
	}
	pending, _ := l.Pending(ctx)
	if len(pending) != 0 {
		t.Fatalf("secondary = %v, want cleared", pending)
	}

	again, err := l.MergeSecondary(ctx)
	if err != nil || again != 0 {
		t.Fatalf("second merge = %d, %v; want no-op", again, err)
	}
}

func TestMergeWithoutSecondary(t *testing.T) {
	l := New(store.NewMemory(), nil)
	if n, err := l.MergeSecondary(context.Background()); err != nil || n != 0 {
		t.Fatalf("merge = %d, %v", n, err)
	}
	if err := l.RecordDocument(context.Background(), models.RemovalEvent{ItemID: 1, Quantity: 1}); err == nil {
		t.Fatalf("expected error without document store")
	}
}

func TestMergeKeepsRemovalsWhenTiersShareStore(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	l := New(kv, kv)
	if err := l.Record(ctx, models.RemovalEvent{ItemID: 9, Quantity: 4}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n, err := l.MergeSecondary(ctx); err != nil || n != 0 {
		t.Fatalf("merge = %d, %v", n, err)
	}
	got, err := l.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != 1 || got[9] != 4 {
		t.Fatalf("removals = %v, want 9:4", got)
	}
}

func TestMergeFromYAMLDocument(t *testing.T) {
	ctx := context.Background()
	doc, err := store.OpenYAMLFile(filepath.Join(t.TempDir(), "removals.yaml"))
	if err != nil {
		t.Fatalf("open yaml: %v", err)
	}
	l := New(store.NewMemory(), doc)
	if err := l.RecordDocument(ctx, models.RemovalEvent{ItemID: 9, Quantity: 4}); err != nil {
		t.Fatalf("record document: %v", err)
	}
	if _, err := l.MergeSecondary(ctx); err != nil {
		t.Fatalf("merge: %v", err)
	}
	all, _ := l.All(ctx)
	if all[9] != 4 {
		t.Fatalf("ledger = %v, want 9:4", all)
	}
}

func TestConsume(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory(), nil)
	events := make(chan models.RemovalEvent, 4)
	events <- models.RemovalEvent{ItemID: 5, Quantity: 2}
	events <- models.RemovalEvent{ItemID: -1, Quantity: 2}
	events <- models.RemovalEvent{ItemID: 5, Quantity: 1}
	close(events)

	if err := l.Consume(ctx, events); err != nil {
		t.Fatalf("consume: %v", err)
	}
	all, _ := l.All(ctx)
	if all[5] != 3 || len(all) != 1 {
		t.Fatalf("ledger = %v, want map[5:3]", all)
	}
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(store.NewMemory(), nil)
	events := make(chan models.RemovalEvent)

	done := make(chan error, 1)
	go func() { done <- l.Consume(ctx, events) }()
	events <- models.RemovalEvent{ItemID: 1, Quantity: 1}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("consume err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("consume did not return after cancel")
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory(), nil)
	_ = l.Record(ctx, models.RemovalEvent{ItemID: 1, Quantity: 1})
	if err := l.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	all, _ := l.All(ctx)
	if len(all) != 0 {
		t.Fatalf("ledger = %v, want empty", all)
	}
}

func TestIDsSorted(t *testing.T) {
	ids := IDs(map[int]int{30: 1, 2: 1, 11: 1})
	if len(ids) != 3 || ids[0] != 2 || ids[1] != 11 || ids[2] != 30 {
		t.Fatalf("ids = %v", ids)
	}
}
