// Package aggregate keeps the running, deduplicated item set of one crawl session.
package aggregate

import (
	"github.com/TamperPanda/SDBLogger/models"
	"github.com/TamperPanda/SDBLogger/parser"
)

// Aggregator merges candidates sharing a key. Quantities are summed; every
// other field keeps the value of the first candidate seen for the key.
//
// Items without an identifier are keyed by normalized name, so two distinct
// unidentified items with the same name collapse into one entry.
//
// An Aggregator is owned by a single crawl session and is not safe for
// concurrent use.
type Aggregator struct {
	items []models.AggregatedItem
	index map[string]int
}

func New() *Aggregator {
	return &Aggregator{
		index: make(map[string]int),
	}
}

// Upsert folds c, found on the page at pageOffset, into the set. It reports
// whether c created a new entry.
func (a *Aggregator) Upsert(pageOffset int, c models.Candidate) bool {
	key := parser.ItemKey(c)
	qty := c.Quantity
	if qty < 0 {
		qty = 0
	}

	if pos, ok := a.index[key]; ok {
		a.items[pos].Quantity += qty
		return false
	}

	a.index[key] = len(a.items)
	a.items = append(a.items, models.AggregatedItem{
		Key:        key,
		ID:         c.ID,
		Name:       c.Name,
		Quantity:   qty,
		Type:       c.Type,
		ImageURL:   c.ImageURL,
		PageOffset: pageOffset,
	})
	return true
}

// Items returns a copy of the set in first-seen order.
func (a *Aggregator) Items() []models.AggregatedItem {
	out := make([]models.AggregatedItem, len(a.items))
	copy(out, a.items)
	return out
}

// Get returns the entry for key.
func (a *Aggregator) Get(key string) (models.AggregatedItem, bool) {
	pos, ok := a.index[key]
	if !ok {
		return models.AggregatedItem{}, false
	}
	return a.items[pos], true
}

// IDs returns the distinct identifiers in first-seen order.
func (a *Aggregator) IDs() []int {
	ids := make([]int, 0, len(a.items))
	for _, it := range a.items {
		if it.HasID() {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// Len returns the number of distinct keys.
func (a *Aggregator) Len() int {
	return len(a.items)
}

// Reset empties the set for a new session.
func (a *Aggregator) Reset() {
	a.items = nil
	a.index = make(map[string]int)
}
