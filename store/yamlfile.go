package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// YAMLFile keeps values as a flat YAML mapping in a hand-editable document.
// The file is re-read before every operation so edits made outside the
// process are picked up.
type YAMLFile struct {
	path string
	mu   sync.Mutex
}

// OpenYAMLFile prepares path, creating its directory if needed.
func OpenYAMLFile(path string) (*YAMLFile, error) {
	if path == "" {
		return nil, fmt.Errorf("yaml path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return &YAMLFile{path: path}, nil
}

func (y *YAMLFile) Get(_ context.Context, key, def string) (string, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	values, err := y.load()
	if err != nil {
		return def, err
	}
	value, ok := values[key]
	if !ok {
		return def, nil
	}
	return value, nil
}

func (y *YAMLFile) Set(_ context.Context, key, value string) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	values, err := y.load()
	if err != nil {
		return err
	}
	values[key] = value
	return y.save(values)
}

func (y *YAMLFile) Delete(_ context.Context, key string) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	values, err := y.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return y.save(values)
}

func (y *YAMLFile) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(y.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", y.path, err)
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", y.path, err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return values, nil
}

func (y *YAMLFile) save(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", y.path, err)
	}
	tmp := y.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, y.path); err != nil {
		return fmt.Errorf("replace %s: %w", y.path, err)
	}
	return nil
}
