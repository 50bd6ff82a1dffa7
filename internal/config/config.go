package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docnav/internal/chunker"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRemote = "remote"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Document store
	StoreBackend string `yaml:"store_backend"`
	SQLitePath   string `yaml:"sqlite_path"`
	StoreURL     string `yaml:"store_url"`
	StoreAPIKey  string `yaml:"store_api_key"`

	// Chunking
	WordBudget     int    `yaml:"word_budget"`
	FixedChunkSize int    `yaml:"fixed_chunk_size"`
	FixedChunkUnit string `yaml:"fixed_chunk_unit"`

	// Edits
	ContextProximity  int           `yaml:"context_proximity"`
	StrictEditBatches bool          `yaml:"strict_edit_batches"`
	IDCacheTTL        time.Duration `yaml:"id_cache_ttl"`

	// Import worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	// MCP over streamable HTTP; empty disables it.
	MCPAddr string `yaml:"mcp_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:                 "8090",
		StoreBackend:         BackendSQLite,
		SQLitePath:           "data/docnav.db",
		WordBudget:           300,
		FixedChunkSize:       300,
		FixedChunkUnit:       "words",
		ContextProximity:     80,
		IDCacheTTL:           30 * time.Second,
		WorkerCount:          4,
		MaxQueueSize:         100,
		MaxUploadBytes:       52428800, // 50MB
		JobTTL:               1 * time.Hour,
		PDFFallbackPdftotext: true,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by DOCNAV_CONFIG, and then environment variables, in that order.
func Load() (Config, error) {
	return LoadFile(os.Getenv("DOCNAV_CONFIG"))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCNAV_API_KEY", cfg.APIKey)

	cfg.StoreBackend = envOr("STORE_BACKEND", cfg.StoreBackend)
	cfg.SQLitePath = envOr("SQLITE_PATH", cfg.SQLitePath)
	cfg.StoreURL = envOr("STORE_URL", cfg.StoreURL)
	cfg.StoreAPIKey = envOr("STORE_API_KEY", cfg.StoreAPIKey)

	cfg.WordBudget = envInt("WORD_BUDGET", cfg.WordBudget)
	cfg.FixedChunkSize = envInt("FIXED_CHUNK_SIZE", cfg.FixedChunkSize)
	cfg.FixedChunkUnit = envOr("FIXED_CHUNK_UNIT", cfg.FixedChunkUnit)

	cfg.ContextProximity = envInt("CONTEXT_PROXIMITY", cfg.ContextProximity)
	cfg.StrictEditBatches = envBool("STRICT_EDIT_BATCHES", cfg.StrictEditBatches)
	cfg.IDCacheTTL = envDuration("ID_CACHE_TTL", cfg.IDCacheTTL)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)
	cfg.MCPAddr = envOr("MCP_ADDR", cfg.MCPAddr)

	cfg.applyDefaults()
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.WordBudget <= 0 {
		c.WordBudget = d.WordBudget
	}
	if c.FixedChunkSize <= 0 {
		c.FixedChunkSize = d.FixedChunkSize
	}
	if c.ContextProximity <= 0 {
		c.ContextProximity = d.ContextProximity
	}
	if c.IDCacheTTL < 0 {
		c.IDCacheTTL = 0
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
}

// Validate checks settings the server cannot run without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCNAV_API_KEY is required")
	}
	return c.ValidateStore()
}

// ValidateStore checks only the store settings. The CLI uses it because it
// never serves HTTP.
func (c Config) ValidateStore() error {
	switch c.StoreBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendMemory:
	case BackendRemote:
		if c.StoreURL == "" {
			return fmt.Errorf("STORE_URL is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (use sqlite, memory or remote)", c.StoreBackend)
	}
	switch c.FixedChunkUnit {
	case "words", "nodes":
	default:
		return fmt.Errorf("unknown FIXED_CHUNK_UNIT %q (use words or nodes)", c.FixedChunkUnit)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// Chunking returns the chunker settings.
func (c Config) Chunking() chunker.Config {
	return chunker.Config{
		WordBudget: c.WordBudget,
		FixedSize:  c.FixedChunkSize,
		FixedUnit:  chunker.Unit(c.FixedChunkUnit),
	}
}
