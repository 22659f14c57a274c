package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptfix/internal/config"
)

func TestNew_ConsoleOnly(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "debug"}, "0123456789abcdef")
	require.NoError(t, err)
	For(logger, CategoryBoot).Infow("hello", "k", "v")
	_ = logger.Sync()
}

func TestNew_FileOutput(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(config.LoggingConfig{Level: "info", Dir: dir}, "0123456789abcdef")
	require.NoError(t, err)

	For(logger, CategoryWorkflow).Infow("unit corrected", "key", 55001)
	require.NoError(t, logger.Sync())

	matches, err := filepath.Glob(filepath.Join(dir, "run-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "unit corrected")
	assert.Contains(t, string(data), "01234567", "file lines carry the short run id")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "shouty"}, "run")
	require.Error(t, err)
}
