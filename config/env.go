package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key as a Go duration, or as milliseconds when it is a bare integer.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, true, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// ApplyEnv overlays SDB_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if v, ok := EnvString("SDB_BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := EnvString("SDB_CATEGORY"); ok {
		c.Category = v
	}
	if v, ok := EnvString("SDB_OBJ_NAME"); ok {
		c.ObjName = v
	}
	if v, ok := EnvString("SDB_METADATA_URL"); ok {
		c.MetadataURL = v
	}
	if v, ok := EnvString("SDB_STORE"); ok {
		c.StoreDSN = v
	}
	if v, ok := EnvString("SDB_DOCUMENT_STORE"); ok {
		c.DocumentStoreDSN = v
	}
	if v, ok := EnvString("SDB_OUTPUT"); ok {
		c.OutputFile = v
	}
	if v, ok := EnvString("SDB_FORMAT"); ok {
		c.OutputFormat = strings.ToLower(v)
	}
	if v, ok := EnvString("SDB_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SDB_CHUNK_SIZE", &c.ChunkSize},
		{"SDB_MAX_RATE_LIMIT_RETRIES", &c.MaxRateLimitRetries},
	}
	for _, item := range ints {
		v, ok, err := EnvInt(item.key)
		if err != nil {
			return err
		}
		if ok {
			*item.dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SDB_MIN_DELAY", &c.MinDelay},
		{"SDB_MAX_DELAY", &c.MaxDelay},
		{"SDB_PAGE_TIMEOUT", &c.PageTimeout},
		{"SDB_CACHE_TTL", &c.CacheTTL},
	}
	for _, item := range durations {
		v, ok, err := EnvDuration(item.key)
		if err != nil {
			return err
		}
		if ok {
			*item.dst = v
		}
	}

	if v, ok, err := EnvBool("SDB_FETCH_METADATA"); err != nil {
		return err
	} else if ok {
		c.FetchMetadata = v
	}
	return nil
}
