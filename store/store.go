// Package store provides the durable string key/value persistence the pipeline keeps its state in.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedDSN is returned by Open for a DSN no backend understands.
var ErrUnsupportedDSN = errors.New("store: unsupported dsn")

// KV is a durable string-valued key/value store.
type KV interface {
	// Get returns the stored value, or def when key is absent.
	Get(ctx context.Context, key, def string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by backends holding a connection or file handle.
type Closer interface {
	Close() error
}

// Open selects a backend from dsn:
//
//	memory:                     in-process map
//	postgres://... postgresql:// shared table through pgx
//	yaml:path, *.yaml, *.yml    YAML document file
//	sqlite:path, anything else  sqlite database file
func Open(ctx context.Context, dsn string) (KV, error) {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)
	switch {
	case dsn == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedDSN)
	case lower == "memory:" || lower == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return wrap(OpenPostgres(ctx, dsn))
	case strings.HasPrefix(lower, "yaml:"):
		return wrap(OpenYAMLFile(dsn[len("yaml:"):]))
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return wrap(OpenYAMLFile(dsn))
	case strings.HasPrefix(lower, "sqlite:"):
		return wrap(OpenSQLite(ctx, dsn[len("sqlite:"):]))
	case strings.Contains(lower, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, dsn)
	default:
		return wrap(OpenSQLite(ctx, dsn))
	}
}

// wrap keeps a failed open from yielding a non-nil KV holding a nil pointer.
func wrap[T KV](kv T, err error) (KV, error) {
	if err != nil {
		return nil, err
	}
	return kv, nil
}

// Close releases kv if its backend holds resources.
func Close(kv KV) error {
	if c, ok := kv.(Closer); ok {
		return c.Close()
	}
	return nil
}
