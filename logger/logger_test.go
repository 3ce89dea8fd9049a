package logger

import (
	"os"
	"path/filepath"
	"testing"

	"assetsearch/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, "test")
	require.Error(t, err)
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "assetsearch.log")

	log, err := New(config.LogConfig{Level: "debug", Format: "json", OutputFile: path}, "test")
	require.NoError(t, err)

	log.Info("catalog loaded")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "catalog loaded")
	assert.Contains(t, string(data), `"service":"test"`)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
