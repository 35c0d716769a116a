package main

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/TamperPanda/SDBLogger/config"
	"github.com/TamperPanda/SDBLogger/report"
)

// outputFlags select the export destination.
type outputFlags struct {
	file      string
	format    string
	batchSize int
}

func (o *outputFlags) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.file, "output", "o", "", "Report file path (env SDB_OUTPUT)")
	fs.StringVar(&o.format, "format", "", "Report format: "+strings.Join(report.Formats, ", ")+" (env SDB_FORMAT)")
	fs.IntVar(&o.batchSize, "batch-size", 0, "Rows per write batch")
}

func (o *outputFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("output") {
		cfg.OutputFile = o.file
	}
	if fs.Changed("format") {
		cfg.OutputFormat = strings.ToLower(o.format)
	}
	if fs.Changed("batch-size") {
		cfg.BatchSize = o.batchSize
	}
}

// reportFlags narrow and order the exported rows.
type reportFlags struct {
	showNC    bool
	minRarity int
	maxRarity int
	search    string
	itemType  string
	sortBy    string
	ascending bool
}

func (r *reportFlags) bind(fs *pflag.FlagSet) {
	fs.BoolVar(&r.showNC, "show-nc", false, "Include NC items")
	fs.IntVar(&r.minRarity, "min-rarity", 0, "Hide items below this rarity; 0 disables")
	fs.IntVar(&r.maxRarity, "max-rarity", 0, "Hide items above this rarity; 0 disables")
	fs.StringVar(&r.search, "search", "", "Only items whose name contains this text")
	fs.StringVar(&r.itemType, "type", "", "Only items of this type")
	fs.StringVar(&r.sortBy, "sort", "value", "Sort by value, name, qty, stackValue, rarity or id")
	fs.BoolVar(&r.ascending, "ascending", false, "Reverse the sort order")
}

func (r *reportFlags) options() (report.Options, error) {
	key, err := report.ParseSortKey(r.sortBy)
	if err != nil {
		return report.Options{}, err
	}
	return report.Options{
		ShowNC:    r.showNC,
		MinRarity: r.minRarity,
		MaxRarity: r.maxRarity,
		Search:    r.search,
		Type:      r.itemType,
		SortBy:    key,
		Ascending: r.ascending,
	}, nil
}
