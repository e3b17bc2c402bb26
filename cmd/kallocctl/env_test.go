package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kalloc/internal/logger"
)

func TestLoadSettings(t *testing.T) {
	t.Setenv("KALLOC_SEED", "7")
	t.Setenv("KALLOC_PAGE_SIZE", "16K")
	t.Setenv("KALLOC_LOG_LEVEL", "warn")

	s, err := loadSettings()
	require.NoError(t, err)
	assert.Equal(t, int64(7), s.Seed)
	assert.Equal(t, uint64(16<<10), s.pageSize())
	assert.Equal(t, "en", s.Lang)

	l, err := s.level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := loadSettings()
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Seed)
	assert.Equal(t, hostPageSize(), s.pageSize())

	l, err := s.level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)
}

func TestLoadSettings_Errors(t *testing.T) {
	t.Setenv("KALLOC_PAGE_SIZE", "3000")
	_, err := loadSettings()
	require.ErrorContains(t, err, "power of two")

	t.Setenv("KALLOC_PAGE_SIZE", "lots")
	_, err = loadSettings()
	require.Error(t, err)

	t.Setenv("KALLOC_PAGE_SIZE", "")
	s := Settings{LogLevel: "loud"}
	_, err = s.level()
	require.Error(t, err)
}

func TestFormatting(t *testing.T) {
	resetFlags(t)
	assert.Equal(t, "1,048,576", count(uint64(1<<20)))
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "4.0 KiB", formatBytes(4096))
	assert.Equal(t, "64.0 MiB", formatBytes(64<<20))
}

func TestSetup_AllocLogEnv(t *testing.T) {
	resetFlags(t)
	t.Cleanup(func() {
		logger.Init(logger.Options{})
		resetFlags(t)
	})

	t.Setenv(logger.EnvLogAlloc, "1")
	require.NoError(t, setup())
	assert.True(t, logger.Debugging(), "allocator debug logging survives setup")

	t.Setenv(logger.EnvLogAlloc, "")
	require.NoError(t, setup())
	assert.False(t, logger.Debugging())
}
