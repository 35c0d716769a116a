// Package models defines data structures shared by the crawl, enrichment and reconciliation stages.
package models

import "time"

// RawRow is one listing row as it arrives from a page source, before any interpretation.
type RawRow struct {
	Cells     []string // text of each direct cell, in order
	Bold      []string // text of every bold span in the row
	Link      string   // href of the item link, if any
	InputName string   // name of the identifier-bearing input, if any
	ImageSrc  string   // src of the row image, if any
}

// Candidate is a single extracted row, not yet merged with its duplicates.
type Candidate struct {
	ID       int // 0 when the row carried no identifier
	Name     string
	Quantity int
	Type     string
	ImageURL string
}

// AggregatedItem is the deduplicated view of every candidate sharing a key.
type AggregatedItem struct {
	Key        string `json:"key"`
	ID         int    `json:"id,omitempty"`
	Name       string `json:"name"`
	Quantity   int    `json:"qty"`
	Type       string `json:"type"`
	ImageURL   string `json:"image"`
	PageOffset int    `json:"page_offset"`
}

// HasID reports whether the item is keyed by identifier.
func (it AggregatedItem) HasID() bool {
	return it.ID > 0
}

// ItemMetadata is the lookup-service record cached per item identifier.
type ItemMetadata struct {
	Name       string   `json:"name"`
	Category   string   `json:"cat"`
	Value      *float64 `json:"value"`
	Rarity     *int     `json:"rarity"`
	IsNC       bool     `json:"isNC"`
	IsBD       bool     `json:"isBD"`
	IsWearable bool     `json:"isWearable"`
}

// PageHint carries the two page-count signals found on the first listing page.
type PageHint struct {
	PageOptions int // entries in the offset selector
	TotalItems  int // "Items: N" counter
}

// RemovalEvent reports that quantity units of an item left the inventory.
type RemovalEvent struct {
	ItemID   int `json:"item_id" yaml:"item_id"`
	Quantity int `json:"qty" yaml:"qty"`
}

// CrawlResult summarises one crawl session.
type CrawlResult struct {
	StartTime    time.Time
	EndTime      time.Time
	PagesTotal   int
	PagesDone    int
	PagesFailed  int
	FailedPages  []int
	RowsSkipped  int
	Stopped      bool
	ErrorsByType map[string]int
	Items        []AggregatedItem
	Enrichment   *EnrichResult
	Snapshot     *Snapshot
}

// EnrichResult summarises one enrichment pass.
type EnrichResult struct {
	Requested   int
	Missing     int
	Chunks      int
	Attempts    int
	Fetched     int
	RateLimited int
	Unresolved  []int
	Refreshed   bool
}
