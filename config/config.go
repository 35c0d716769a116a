package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Config holds crawler, enrichment and storage configuration.
type Config struct {
	BaseURL  string
	Category string
	ObjName  string
	PageSize int

	MinDelay    time.Duration
	MaxDelay    time.Duration
	PageTimeout time.Duration

	FetchMetadata       bool
	MetadataURL         string
	ChunkSize           int
	ChunkDelayMin       time.Duration
	ChunkDelayMax       time.Duration
	RateLimitBackoffMin time.Duration
	RateLimitBackoffMax time.Duration
	MaxRateLimitRetries int // 0 retries a rate-limited chunk until it succeeds
	BatchTimeout        time.Duration
	UnresolvedMaxSize   int

	CacheTTL time.Duration

	StoreDSN         string
	DocumentStoreDSN string

	OutputFile   string
	OutputFormat string // csv, json, dual or parquet
	AutoExport   bool
	BatchSize    int

	UserAgent   string
	Verbose     bool
	MetricsAddr string
}

// DefaultConfig returns the pacing the listing and the lookup service tolerate.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:  "https://www.neopets.com",
		Category: "0",
		PageSize: 30,

		MinDelay:    950 * time.Millisecond,
		MaxDelay:    1600 * time.Millisecond,
		PageTimeout: 30 * time.Second,

		FetchMetadata:       true,
		MetadataURL:         "https://itemdb.com.br/api/v1/items/many",
		ChunkSize:           500,
		ChunkDelayMin:       1500 * time.Millisecond,
		ChunkDelayMax:       3000 * time.Millisecond,
		RateLimitBackoffMin: 10 * time.Second,
		RateLimitBackoffMax: 15 * time.Second,
		MaxRateLimitRetries: 0,
		BatchTimeout:        120 * time.Second,
		UnresolvedMaxSize:   10000,

		CacheTTL: 24 * time.Hour,

		StoreDSN:         "data/sdblogger.db",
		DocumentStoreDSN: "data/removals.yaml",

		OutputFile:   "output/sdb_export.csv",
		OutputFormat: "csv",
		AutoExport:   true,
		BatchSize:    64,

		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:     false,
		MetricsAddr: "",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MinDelay < 0 {
		return fmt.Errorf("min delay cannot be negative")
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("max delay (%s) cannot be below min delay (%s)", c.MaxDelay, c.MinDelay)
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be positive")
	}

	if c.FetchMetadata {
		metaURL, err := url.Parse(c.MetadataURL)
		if err != nil || metaURL.Host == "" {
			return fmt.Errorf("metadata URL must be an absolute URL")
		}
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.ChunkDelayMin < 0 || c.ChunkDelayMax < c.ChunkDelayMin {
		return fmt.Errorf("chunk delay range [%s, %s] is invalid", c.ChunkDelayMin, c.ChunkDelayMax)
	}
	if c.RateLimitBackoffMin < 0 || c.RateLimitBackoffMax < c.RateLimitBackoffMin {
		return fmt.Errorf("rate limit backoff range [%s, %s] is invalid", c.RateLimitBackoffMin, c.RateLimitBackoffMax)
	}
	if c.MaxRateLimitRetries < 0 {
		return fmt.Errorf("max rate limit retries cannot be negative")
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("batch timeout must be positive")
	}
	if c.UnresolvedMaxSize <= 0 {
		return fmt.Errorf("unresolved max size must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	if c.StoreDSN == "" {
		return fmt.Errorf("store DSN cannot be empty")
	}
	if c.DocumentStoreDSN == "" {
		return fmt.Errorf("document store DSN cannot be empty")
	}
	if err := c.ValidateStores(); err != nil {
		return err
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual", "parquet":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or parquet")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// ValidateStores rejects a document store that points at the primary store.
// Both tiers keep removals under the same key, so merging one into the other
// would erase them.
func (c *Config) ValidateStores() error {
	if sameStore(c.StoreDSN, c.DocumentStoreDSN) {
		return fmt.Errorf("document store must differ from store (both %q)", c.StoreDSN)
	}
	return nil
}

func sameStore(a, b string) bool {
	a, b = storeLocation(a), storeLocation(b)
	if a == "" || a == "memory:" || a == "memory" {
		return false
	}
	return a == b
}

func storeLocation(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)
	if strings.Contains(lower, "://") {
		return dsn
	}
	for _, prefix := range []string{"sqlite:", "yaml:"} {
		if strings.HasPrefix(lower, prefix) {
			dsn = dsn[len(prefix):]
			break
		}
	}
	if dsn == "" {
		return ""
	}
	return filepath.Clean(dsn)
}
