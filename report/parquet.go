package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/parquet-go/parquet-go"

	"github.com/TamperPanda/SDBLogger/models"
)

// ParquetWriter writes report rows to a Parquet file.
type ParquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[models.SnapshotItem]
	mu     sync.Mutex
}

// NewParquetWriter creates filename for Parquet output.
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}
	return &ParquetWriter{
		file:   f,
		writer: parquet.NewGenericWriter[models.SnapshotItem](f),
	}, nil
}

func (pw *ParquetWriter) Write(items []models.SnapshotItem) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if _, err := pw.writer.Write(items); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	return nil
}

// Close writes the footer and closes the file.
func (pw *ParquetWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.writer.Close(); err != nil {
		pw.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return pw.file.Close()
}

// ReadParquet loads every row of a report written by ParquetWriter.
func ReadParquet(filename string) ([]models.SnapshotItem, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[models.SnapshotItem](pf)
	defer reader.Close()

	items := make([]models.SnapshotItem, 0, pf.NumRows())
	for {
		rows := make([]models.SnapshotItem, 128)
		n, err := reader.Read(rows)
		items = append(items, rows[:n]...)
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return items, fmt.Errorf("read parquet rows: %w", err)
		}
	}
}
