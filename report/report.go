// Package report filters, sorts and exports finalized snapshots.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/TamperPanda/SDBLogger/models"
)

// SortKey selects the report ordering.
type SortKey string

const (
	SortValue      SortKey = "value"
	SortName       SortKey = "name"
	SortQuantity   SortKey = "qty"
	SortStackValue SortKey = "stackValue"
	SortRarity     SortKey = "rarity"
	SortID         SortKey = "id"
)

// ParseSortKey maps a user-supplied name onto a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "value":
		return SortValue, nil
	case "name":
		return SortName, nil
	case "qty", "quantity":
		return SortQuantity, nil
	case "stackvalue", "stack_value", "stack":
		return SortStackValue, nil
	case "rarity":
		return SortRarity, nil
	case "id":
		return SortID, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// Options narrows and orders the report. Zero values disable each filter.
type Options struct {
	ShowNC    bool
	MinRarity int
	MaxRarity int
	Search    string
	Type      string
	SortBy    SortKey
	// Ascending reverses the default order of SortBy.
	Ascending bool
}

// Totals summarises a filtered report.
type Totals struct {
	Items      int
	Quantity   int
	TotalValue float64
}

// Apply returns the snapshot items that pass opts, in report order. Items
// without a name never appear. Items with an unknown rarity pass the rarity
// bounds.
func Apply(items []models.SnapshotItem, opts Options) []models.SnapshotItem {
	search := strings.ToLower(opts.Search)
	out := make([]models.SnapshotItem, 0, len(items))
	for _, it := range items {
		if it.IsNC && !opts.ShowNC {
			continue
		}
		if it.Rarity != nil {
			if opts.MinRarity != 0 && *it.Rarity < opts.MinRarity {
				continue
			}
			if opts.MaxRarity != 0 && *it.Rarity > opts.MaxRarity {
				continue
			}
		}
		if it.Name == "" || !strings.Contains(strings.ToLower(it.Name), search) {
			continue
		}
		if opts.Type != "" && it.Type != opts.Type {
			continue
		}
		out = append(out, it)
	}

	sortItems(out, opts.SortBy)
	if opts.Ascending {
		slices.Reverse(out)
	}
	return out
}

func sortItems(items []models.SnapshotItem, key SortKey) {
	var compare func(a, b models.SnapshotItem) int
	switch key {
	case SortName:
		compare = func(a, b models.SnapshotItem) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case SortQuantity:
		compare = func(a, b models.SnapshotItem) int { return cmp.Compare(b.Quantity, a.Quantity) }
	case SortStackValue:
		compare = func(a, b models.SnapshotItem) int { return cmp.Compare(b.StackValue(), a.StackValue()) }
	case SortRarity:
		compare = func(a, b models.SnapshotItem) int { return cmp.Compare(rarityOf(b), rarityOf(a)) }
	case SortID:
		compare = func(a, b models.SnapshotItem) int { return cmp.Compare(a.ID, b.ID) }
	case SortValue, "":
		compare = func(a, b models.SnapshotItem) int { return cmp.Compare(valueOf(b), valueOf(a)) }
	default:
		return
	}
	slices.SortStableFunc(items, compare)
}

// Summarize totals the given report rows.
func Summarize(items []models.SnapshotItem) Totals {
	var t Totals
	for _, it := range items {
		t.Items++
		t.Quantity += it.Quantity
		t.TotalValue += it.StackValue()
	}
	return t
}

func valueOf(it models.SnapshotItem) float64 {
	if it.Value == nil {
		return 0
	}
	return *it.Value
}

func rarityOf(it models.SnapshotItem) int {
	if it.Rarity == nil {
		return 0
	}
	return *it.Rarity
}
