package report

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/TamperPanda/SDBLogger/models"
)

// Writer is an export destination.
type Writer interface {
	Write(items []models.SnapshotItem) error
	Close() error
}

// Formats lists the accepted export formats.
var Formats = []string{"csv", "json", "dual", "parquet"}

// NewWriter opens a writer for format at path. For "dual" the JSON lines
// file sits next to path with a .jsonl extension.
func NewWriter(format, path string) (Writer, error) {
	switch strings.ToLower(format) {
	case "csv":
		return NewCSVWriter(path)
	case "json":
		return NewJSONWriter(path)
	case "dual":
		return NewDualWriter(path, SiblingPath(path, ".jsonl"))
	case "parquet":
		return NewParquetWriter(path)
	default:
		return nil, fmt.Errorf("unsupported output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// SiblingPath swaps the extension of path for ext.
func SiblingPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// Export filters and sorts the snapshot with opts and streams the rows to w
// in batches of batchSize. It does not close w.
func Export(snap *models.Snapshot, opts Options, w Writer, batchSize int) (Totals, error) {
	if snap == nil {
		return Totals{}, fmt.Errorf("export: no snapshot")
	}
	if batchSize <= 0 {
		batchSize = 64
	}

	rows := Apply(snap.Items, opts)
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		if err := w.Write(rows[start:end]); err != nil {
			return Totals{}, fmt.Errorf("write batch at row %d: %w", start, err)
		}
	}

	totals := Summarize(rows)
	slog.Info("report exported",
		slog.Int("rows", totals.Items),
		slog.Int("total_qty", totals.Quantity),
		slog.Float64("total_value", totals.TotalValue),
		slog.Int("filtered_out", len(snap.Items)-len(rows)),
	)
	return totals, nil
}

// ExportFile opens path in format, exports the snapshot and closes the file.
func ExportFile(snap *models.Snapshot, opts Options, format, path string, batchSize int) (Totals, error) {
	w, err := NewWriter(format, path)
	if err != nil {
		return Totals{}, err
	}
	totals, err := Export(snap, opts, w, batchSize)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return totals, err
}
