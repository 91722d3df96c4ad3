package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "khub.log")

	closeFn, err := Setup(Config{
		Level:      slog.LevelInfo,
		OutputFile: logPath,
		JSONFormat: true,
	})
	require.NoError(t, err)

	slog.Info("analysis batch complete", "documents", 3)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "analysis batch complete")
	assert.Contains(t, string(data), `"documents":3`)
}

func TestRotation_MovesOversizedFileAside(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "khub.log")
	require.NoError(t, os.WriteFile(logPath, []byte(strings.Repeat("x", 64)), 0644))

	closeFn, err := Setup(Config{
		Level:      slog.LevelInfo,
		OutputFile: logPath,
		MaxSize:    32,
		MaxBackups: 3,
	})
	require.NoError(t, err)
	defer closeFn()

	rotated, err := os.ReadFile(logPath + ".1")
	require.NoError(t, err)
	assert.Len(t, rotated, 64, "previous contents moved to the first backup")

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "active log starts fresh")
}

func TestDefaultConfig(t *testing.T) {
	prod := DefaultConfig(false)
	assert.Equal(t, slog.LevelInfo, prod.Level)
	assert.True(t, prod.JSONFormat)
	assert.False(t, prod.AddSource)
	assert.True(t, strings.HasPrefix(filepath.Base(prod.OutputFile), "khub_"))

	debug := DefaultConfig(true)
	assert.Equal(t, slog.LevelDebug, debug.Level)
	assert.False(t, debug.JSONFormat)
	assert.True(t, debug.AddSource)
}
