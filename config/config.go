// Package config provides centralized configuration for the VFD SWMR
// engine.
//
// This package implements a three-tier configuration hierarchy:
//  1. Built-in defaults (lowest priority)
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// Config is immutable once Load returns; nothing in the engine mutates
// it afterward.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Config holds the per-file parameters recognized at init (§6) plus
// ambient knobs for logging, the admin API, and reader retry budget.
type Config struct {
	// Writer marks this handle as the writer.
	// Environment: VFDSWMR_WRITER
	// Default: false
	Writer bool `yaml:"writer"`

	// TickLen is the tick duration in tenths of a second; must be positive.
	// Environment: VFDSWMR_TICK_LEN
	// Default: 10 (one second)
	TickLen uint32 `yaml:"tick_len"`

	// MaxLag is the minimum number of ticks a previously-published page
	// image remains observable by lagging readers; must be >= 3.
	// Environment: VFDSWMR_MAX_LAG
	// Default: 3
	MaxLag uint32 `yaml:"max_lag"`

	// MDPagesReserved is the metadata file's fixed capacity in pages.
	// Environment: VFDSWMR_MD_PAGES_RESERVED
	// Default: 8
	MDPagesReserved uint32 `yaml:"md_pages_reserved"`

	// MDFilePath is the filesystem path of the metadata file.
	// Environment: VFDSWMR_MD_FILE_PATH
	// Default: "./vfdswmr.md"
	MDFilePath string `yaml:"md_file_path"`

	// FSPageSize is the large file's fixed page size in bytes, a power of two.
	// Environment: VFDSWMR_FS_PAGE_SIZE
	// Default: 4096
	FSPageSize uint32 `yaml:"fs_page_size"`

	// LogLevel sets the initial logger level (TRACE/DEBUG/INFO/WARN/ERROR).
	// Environment: VFDSWMR_LOG_LEVEL
	// Default: "INFO"
	LogLevel string `yaml:"log_level"`

	// AdminAddr is the bind address for the read-only admin/introspection
	// HTTP API; empty disables it.
	// Environment: VFDSWMR_ADMIN_ADDR
	// Default: "" (disabled)
	AdminAddr string `yaml:"admin_addr"`

	// ReaderRetryBudget bounds the reader's Header-Index-Header torn-read
	// retry loop before surfacing a read error.
	// Environment: VFDSWMR_READER_RETRY_BUDGET
	// Default: 8
	ReaderRetryBudget int `yaml:"reader_retry_budget"`
}

// Default returns the built-in default configuration.
func Default() Config {
	return Config{
		Writer:            false,
		TickLen:           10,
		MaxLag:            3,
		MDPagesReserved:   8,
		MDFilePath:        "./vfdswmr.md",
		FSPageSize:        4096,
		LogLevel:          "INFO",
		AdminAddr:         "",
		ReaderRetryBudget: 8,
	}
}

// Load builds a Config by layering, in ascending priority: built-in
// defaults, an optional YAML file at yamlPath (skipped if yamlPath is
// empty or the file does not exist), then environment variables.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VFDSWMR_WRITER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Writer = b
		}
	}
	if v := os.Getenv("VFDSWMR_TICK_LEN"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.TickLen = uint32(n)
		}
	}
	if v := os.Getenv("VFDSWMR_MAX_LAG"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.MaxLag = uint32(n)
		}
	}
	if v := os.Getenv("VFDSWMR_MD_PAGES_RESERVED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.MDPagesReserved = uint32(n)
		}
	}
	if v := os.Getenv("VFDSWMR_MD_FILE_PATH"); v != "" {
		cfg.MDFilePath = v
	}
	if v := os.Getenv("VFDSWMR_FS_PAGE_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.FSPageSize = uint32(n)
		}
	}
	if v := os.Getenv("VFDSWMR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VFDSWMR_ADMIN_ADDR"); v != "" {
		cfg.AdminAddr = v
	}
	if v := os.Getenv("VFDSWMR_READER_RETRY_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReaderRetryBudget = n
		}
	}
}

// IndexCapacity computes the Index's fixed entry capacity from
// MDPagesReserved and FSPageSize (§4.2): the metadata file's byte
// capacity minus the fixed Header size, divided by the wire entry size.
func (c Config) IndexCapacity(headerSize, entrySize uint64) int {
	total := uint64(c.MDPagesReserved) * uint64(c.FSPageSize)
	if total <= headerSize {
		return 0
	}
	return int((total - headerSize) / entrySize)
}

// Validate checks the invariants spec.md §6 requires of a loaded
// configuration.
func (c Config) Validate() error {
	if c.TickLen == 0 {
		return errInvalidTickLen
	}
	if c.MaxLag < 3 {
		return errInvalidMaxLag
	}
	if c.MDPagesReserved == 0 {
		return errInvalidMDPagesReserved
	}
	if c.MDFilePath == "" {
		return errInvalidMDFilePath
	}
	return nil
}
