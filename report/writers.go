package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/TamperPanda/SDBLogger/models"
)

// Header is the CSV column order.
var Header = []string{"name", "type", "qty", "rarity", "value", "stackValue", "id"}

// CSVWriter writes report rows to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Record renders one item as a CSV row. Unknown rarity and value are left blank.
func Record(it models.SnapshotItem) []string {
	rarity, value, id := "", "", ""
	if it.Rarity != nil {
		rarity = strconv.Itoa(*it.Rarity)
	}
	if it.Value != nil {
		value = formatNumber(*it.Value)
	}
	if it.ID > 0 {
		id = strconv.Itoa(it.ID)
	}
	return []string{
		it.Name,
		it.Type,
		strconv.Itoa(it.Quantity),
		rarity,
		value,
		formatNumber(it.StackValue()),
		id,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write appends items to the CSV output.
func (cw *CSVWriter) Write(items []models.SnapshotItem) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, it := range items {
		if err := cw.writer.Write(Record(it)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// jsonRecord adds the derived stack value to the stored item fields.
type jsonRecord struct {
	models.SnapshotItem
	StackValue float64 `json:"stackValue"`
}

// NewJSONWriter creates filename for JSON lines output.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends items in JSONL format.
func (jw *JSONWriter) Write(items []models.SnapshotItem) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, it := range items {
		if err := jw.encoder.Encode(jsonRecord{SnapshotItem: it, StackValue: it.StackValue()}); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
