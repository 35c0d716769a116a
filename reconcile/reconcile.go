// Package reconcile applies accumulated removals to the last finalized snapshot.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TamperPanda/SDBLogger/ledger"
	"github.com/TamperPanda/SDBLogger/metrics"
	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/snapshot"
)

// ErrNoSnapshot is returned when no crawl has ever finalized a snapshot.
var ErrNoSnapshot = errors.New("reconcile: no finalized snapshot")

// Result describes one reconciliation.
type Result struct {
	Snapshot *models.Snapshot
	Merged   int // document entries merged before applying
	Adjusted int // items whose quantity went down but stayed positive
	Dropped  int // items removed because they reached zero
	Unknown  []int
}

// Engine reconciles the ledger against the snapshot store.
type Engine struct {
	snapshots *snapshot.Store
	ledger    *ledger.Ledger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New returns an engine. m may be nil.
func New(snapshots *snapshot.Store, l *ledger.Ledger, m *metrics.Metrics) *Engine {
	return &Engine{
		snapshots: snapshots,
		ledger:    l,
		metrics:   m,
		now:       time.Now,
	}
}

// Reconcile merges the document ledger into the primary one, applies it to
// the last snapshot, saves the corrected snapshot and clears the ledger.
// With an empty ledger it returns the stored snapshot unchanged.
func (e *Engine) Reconcile(ctx context.Context) (*Result, error) {
	merged, err := e.ledger.MergeSecondary(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge document removals: %w", err)
	}

	snap, err := e.snapshots.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrNoSnapshot
	}

	removals, err := e.ledger.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load removals: %w", err)
	}
	if len(removals) == 0 {
		return &Result{Snapshot: snap, Merged: merged}, nil
	}

	corrected, stats := Apply(snap, removals)
	now := e.now()
	corrected.ReconciledAt = &now

	if err := e.snapshots.Save(ctx, corrected, now); err != nil {
		return nil, fmt.Errorf("save corrected snapshot: %w", err)
	}
	if err := e.ledger.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear ledger: %w", err)
	}

	e.metrics.AddReconciled("adjusted", stats.Adjusted)
	e.metrics.AddReconciled("dropped", stats.Dropped)
	slog.Info("reconciled snapshot",
		slog.Int("removals", len(removals)),
		slog.Int("adjusted", stats.Adjusted),
		slog.Int("dropped", stats.Dropped),
		slog.Int("unknown", len(stats.Unknown)),
		slog.Int("items", len(corrected.Items)),
	)

	return &Result{
		Snapshot: corrected,
		Merged:   merged,
		Adjusted: stats.Adjusted,
		Dropped:  stats.Dropped,
		Unknown:  stats.Unknown,
	}, nil
}

// Stats counts what Apply did.
type Stats struct {
	Adjusted int
	Dropped  int
	Unknown  []int // ledger ids that matched no snapshot item
}

// Apply returns a corrected copy of snap: each identified item loses its
// ledger quantity, clamped at zero, and items reaching zero are dropped.
func Apply(snap *models.Snapshot, removals map[int]int) (*models.Snapshot, Stats) {
	var stats Stats
	out := snap.Clone()
	out.Items = out.Items[:0]
	matched := make(map[int]struct{}, len(removals))

	for _, it := range snap.Items {
		removed, ok := removals[it.ID]
		if it.ID <= 0 || !ok {
			out.Items = append(out.Items, it)
			continue
		}
		matched[it.ID] = struct{}{}
		remaining := it.Quantity - removed
		if remaining <= 0 {
			stats.Dropped++
			continue
		}
		it.Quantity = remaining
		stats.Adjusted++
		out.Items = append(out.Items, it)
	}

	for _, id := range ledger.IDs(removals) {
		if _, ok := matched[id]; !ok {
			stats.Unknown = append(stats.Unknown, id)
		}
	}
	return out, stats
}
