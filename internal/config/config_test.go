package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesCompileTimeConstants(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 16, cfg.Store.ShardCount)
	assert.Equal(t, 50, cfg.Batcher.SizeThreshold)
	assert.Equal(t, 10, cfg.Batcher.FlushIntervalMs)
	assert.EqualValues(t, 100*1024*1024, cfg.Journal.CompactionThresholdBytes)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadLayersYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvcached.yml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  shard_count: 32\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Store.ShardCount)
	assert.Equal(t, Default().Batcher, cfg.Batcher, "fields absent from the file keep their default")
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	cfg := Default()
	cfg.Store.ShardCount = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Journal.Path = ""
	assert.Error(t, cfg.Validate())
}
