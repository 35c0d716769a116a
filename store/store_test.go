package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	got, err := kv.Get(ctx, "itemDatabase", "{}")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if got != "{}" {
		t.Fatalf("missing key = %q, want default", got)
	}

	if err := kv.Set(ctx, "itemDatabase", `{"1":{"name":"Apple"}}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, "itemDatabase", `{"2":{"name":"Pear"}}`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = kv.Get(ctx, "itemDatabase", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `{"2":{"name":"Pear"}}` {
		t.Fatalf("value = %q, want overwritten value", got)
	}

	if err := kv.Delete(ctx, "itemDatabase"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := kv.Delete(ctx, "itemDatabase"); err != nil {
		t.Fatalf("delete twice: %v", err)
	}
	got, err = kv.Get(ctx, "itemDatabase", "gone")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != "gone" {
		t.Fatalf("deleted key = %q, want default", got)
	}
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	kv, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	exerciseKV(t, kv)
}

func TestSQLiteDurableAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	first, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := first.Set(ctx, "itemDataDate", "1700000000000"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer second.Close()
	got, err := second.Get(ctx, "itemDataDate", "0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "1700000000000" {
		t.Fatalf("value = %q after reopen", got)
	}
}

func TestYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "removals.yaml")
	kv, err := OpenYAMLFile(path)
	if err != nil {
		t.Fatalf("open yaml: %v", err)
	}
	exerciseKV(t, kv)
}

func TestYAMLFilePicksUpExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "removals.yaml")
	kv, err := OpenYAMLFile(path)
	if err != nil {
		t.Fatalf("open yaml: %v", err)
	}
	if err := os.WriteFile(path, []byte("sdb_removals: '{\"9\":4}'\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := kv.Get(context.Background(), "sdb_removals", "{}")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `{"9":4}` {
		t.Fatalf("value = %q, want edited value", got)
	}
}

func TestYAMLFileRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "removals.yaml")
	if err := os.WriteFile(path, []byte("- not\n- a mapping\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	kv, err := OpenYAMLFile(path)
	if err != nil {
		t.Fatalf("open yaml: %v", err)
	}
	if _, err := kv.Get(context.Background(), "k", ""); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		dsn  string
		want string
	}{
		{dsn: "memory:", want: "*store.Memory"},
		{dsn: filepath.Join(dir, "a.yaml"), want: "*store.YAMLFile"},
		{dsn: "yaml:" + filepath.Join(dir, "b.doc"), want: "*store.YAMLFile"},
		{dsn: "sqlite:" + filepath.Join(dir, "c.db"), want: "*store.SQLite"},
		{dsn: filepath.Join(dir, "d.db"), want: "*store.SQLite"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			kv, err := Open(ctx, tt.dsn)
			if err != nil {
				t.Fatalf("open %q: %v", tt.dsn, err)
			}
			defer Close(kv)
			if got := typeName(kv); got != tt.want {
				t.Fatalf("backend = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "redis://localhost:6379")
	if !errors.Is(err, ErrUnsupportedDSN) {
		t.Fatalf("expected ErrUnsupportedDSN, got %v", err)
	}
	if _, err := Open(context.Background(), "  "); !errors.Is(err, ErrUnsupportedDSN) {
		t.Fatalf("expected ErrUnsupportedDSN for empty dsn, got %v", err)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("SDB_TEST_POSTGRES_DSN")
	if !strings.HasPrefix(dsn, "postgres") {
		t.Skip("SDB_TEST_POSTGRES_DSN not set")
	}
	kv, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer kv.Close()
	exerciseKV(t, kv)
}

func typeName(kv KV) string {
	switch kv.(type) {
	case *Memory:
		return "*store.Memory"
	case *YAMLFile:
		return "*store.YAMLFile"
	case *SQLite:
		return "*store.SQLite"
	case *Postgres:
		return "*store.Postgres"
	default:
		return "unknown"
	}
}
