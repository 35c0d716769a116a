package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TamperPanda/SDBLogger/ledger"
	"github.com/TamperPanda/SDBLogger/metrics"
	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/snapshot"
	"github.com/TamperPanda/SDBLogger/store"
)

type fixture struct {
	engine    *Engine
	snapshots *snapshot.Store
	ledger    *ledger.Ledger
}

func newFixture(t *testing.T, items ...models.SnapshotItem) fixture {
	t.Helper()
	primary := store.NewMemory()
	snapshots := snapshot.NewStore(primary)
	l := ledger.New(primary, store.NewMemory())
	if items != nil {
		snap := &models.Snapshot{CreatedAt: time.Unix(1700000000, 0).UTC(), Items: items}
		if err := snapshots.Save(context.Background(), snap, time.Now()); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	e := New(snapshots, l, metrics.New())
	e.now = func() time.Time { return time.Unix(1700000500, 0).UTC() }
	return fixture{engine: e, snapshots: snapshots, ledger: l}
}

func quantities(snap *models.Snapshot) map[int]int {
	out := make(map[int]int, len(snap.Items))
	for _, it := range snap.Items {
		out[it.ID] = it.Quantity
	}
	return out
}

func TestReconcileTwoRounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.SnapshotItem{ID: 9, Name: "Apple", Quantity: 10})

	_ = f.ledger.Record(ctx, models.RemovalEvent{ItemID: 9, Quantity: 4})
	res, err := f.engine.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := quantities(res.Snapshot); got[9] != 6 || len(got) != 1 {
		t.Fatalf("after first round = %v, want 9:6", got)
	}
	if res.Adjusted != 1 || res.Dropped != 0 {
		t.Fatalf("stats = %+v", res)
	}
	if res.Snapshot.ReconciledAt == nil {
		t.Fatalf("reconciled at not set")
	}
	left, _ := f.ledger.All(ctx)
	if len(left) != 0 {
		t.Fatalf("ledger = %v, want cleared", left)
	}

	_ = f.ledger.Record(ctx, models.RemovalEvent{ItemID: 9, Quantity: 6})
	res, err = f.engine.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(res.Snapshot.Items) != 0 {
		t.Fatalf("items = %+v, want item 9 dropped", res.Snapshot.Items)
	}
	stored, _ := f.snapshots.Load(ctx)
	if len(stored.Items) != 0 {
		t.Fatalf("stored items = %+v, want none", stored.Items)
	}
}

func TestReconcileEmptyLedgerIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		models.SnapshotItem{ID: 1, Name: "Apple", Quantity: 3},
		models.SnapshotItem{Name: "Unidentified", Quantity: 2},
	)
	before, _ := f.snapshots.Load(ctx)

	for i := 0; i < 2; i++ {
		res, err := f.engine.Reconcile(ctx)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Adjusted != 0 || res.Dropped != 0 {
			t.Fatalf("stats = %+v, want nothing changed", res)
		}
		if res.Snapshot.ReconciledAt != nil {
			t.Fatalf("no-op reconcile should not stamp the snapshot")
		}
		if len(res.Snapshot.Items) != len(before.Items) {
			t.Fatalf("items = %d, want %d", len(res.Snapshot.Items), len(before.Items))
		}
		for j := range before.Items {
			if res.Snapshot.Items[j] != before.Items[j] {
				t.Fatalf("item %d changed: %+v -> %+v", j, before.Items[j], res.Snapshot.Items[j])
			}
		}
	}
}

func TestReconcileMergesDocumentRemovalsFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		models.SnapshotItem{ID: 1, Quantity: 10},
		models.SnapshotItem{ID: 2, Quantity: 10},
	)
	_ = f.ledger.Record(ctx, models.RemovalEvent{ItemID: 1, Quantity: 8})
	_ = f.ledger.RecordDocument(ctx, models.RemovalEvent{ItemID: 1, Quantity: 3})
	_ = f.ledger.RecordDocument(ctx, models.RemovalEvent{ItemID: 2, Quantity: 1})

	res, err := f.engine.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Merged != 2 {
		t.Fatalf("merged = %d, want 2", res.Merged)
	}
	// The document tier overrides the primary entry for item 1.
	if got := quantities(res.Snapshot); got[1] != 7 || got[2] != 9 {
		t.Fatalf("quantities = %v, want 1:7 2:9", got)
	}
	pending, _ := f.ledger.Pending(ctx)
	if len(pending) != 0 {
		t.Fatalf("document tier = %v, want cleared", pending)
	}
}

func TestReconcileWithoutSnapshot(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Reconcile(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestApplyClamp(t *testing.T) {
	tests := []struct {
		name    string
		qty     int
		removed int
		want    int // 0 means dropped
	}{
		{name: "partial", qty: 10, removed: 4, want: 6},
		{name: "exact", qty: 6, removed: 6, want: 0},
		{name: "overshoot", qty: 2, removed: 5, want: 0},
		{name: "one left", qty: 2, removed: 1, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &models.Snapshot{Items: []models.SnapshotItem{{ID: 5, Quantity: tt.qty}}}
			out, stats := Apply(snap, map[int]int{5: tt.removed})
			if tt.want == 0 {
				if len(out.Items) != 0 || stats.Dropped != 1 {
					t.Fatalf("expected drop, got %+v %+v", out.Items, stats)
				}
				return
			}
			if len(out.Items) != 1 || out.Items[0].Quantity != tt.want {
				t.Fatalf("items = %+v, want qty %d", out.Items, tt.want)
			}
			if snap.Items[0].Quantity != tt.qty {
				t.Fatalf("input snapshot mutated")
			}
		})
	}
}

func TestApplyIgnoresUnidentifiedAndReportsUnknown(t *testing.T) {
	snap := &models.Snapshot{Items: []models.SnapshotItem{
		{Name: "No id", Quantity: 3},
		{ID: 1, Quantity: 3},
	}}
	out, stats := Apply(snap, map[int]int{1: 1, 77: 2, 0: 3})
	if len(out.Items) != 2 || out.Items[0].Quantity != 3 || out.Items[1].Quantity != 2 {
		t.Fatalf("items = %+v", out.Items)
	}
	if len(stats.Unknown) != 2 || stats.Unknown[0] != 0 || stats.Unknown[1] != 77 {
		t.Fatalf("unknown = %v, want [0 77]", stats.Unknown)
	}
}
