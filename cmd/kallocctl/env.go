package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/joshuapare/kalloc/internal/align"
	"github.com/joshuapare/kalloc/internal/bootcfg"
)

const envVarPrefix = "KALLOC"

// Settings are read from KALLOC_* environment variables.
type Settings struct {
	// Seed seeds the random workloads. KALLOC_SEED
	Seed int64 `envconfig:"KALLOC_SEED" default:"1"`

	// PageSize overrides the page size used for pools the CLI builds itself.
	// Zero means the host page size. KALLOC_PAGE_SIZE
	PageSize bootcfg.Number `envconfig:"KALLOC_PAGE_SIZE"`

	// LogLevel enables logging at debug, info, warn or error. Empty leaves
	// logging off unless --verbose is given. KALLOC_LOG_LEVEL
	LogLevel string `envconfig:"KALLOC_LOG_LEVEL"`

	// LogJSON switches log records to JSON. KALLOC_LOG_JSON
	LogJSON bool `envconfig:"KALLOC_LOG_JSON"`

	// Lang picks the digit grouping for counts. KALLOC_LANG
	Lang string `envconfig:"KALLOC_LANG" default:"en"`
}

func defaultSettings() Settings {
	return Settings{Seed: 1, Lang: "en"}
}

func loadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process(envVarPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing environment variables: %w", err)
	}
	if s.PageSize != 0 && !align.IsPow2(uint64(s.PageSize)) {
		return Settings{}, fmt.Errorf("%s_PAGE_SIZE %s is not a power of two", envVarPrefix, s.PageSize)
	}
	return s, nil
}

func (s Settings) level() (slog.Level, error) {
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s.LogLevel))); err != nil {
		return 0, fmt.Errorf("%s_LOG_LEVEL: %w", envVarPrefix, err)
	}
	return l, nil
}

// pageSize returns the page size for pools the CLI builds.
func (s Settings) pageSize() uint64 {
	if s.PageSize != 0 {
		return uint64(s.PageSize)
	}
	return hostPageSize()
}
