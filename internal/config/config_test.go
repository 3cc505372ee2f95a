package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearShotpoolEnv() {
	for _, e := range os.Environ() {
		for i := range e {
			if e[i] == '=' {
				if len(e[:i]) >= 8 && e[:8] == "SHOTPOOL" {
					os.Unsetenv(e[:i])
				}
				break
			}
		}
	}
}

func TestLoad_DefaultsProduceValidConfig(t *testing.T) {
	clearShotpoolEnv()
	os.Setenv("SHOTPOOL_SIGNER_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.BrowserPool.MinSize)
	assert.Equal(t, 10, cfg.BrowserPool.MaxSize)
	assert.Equal(t, "fs", cfg.Storage.Type)
	assert.Equal(t, "./data/artifacts", cfg.Storage.FSDir)
	assert.Equal(t, time.Hour, cfg.Batch.TerminalTTL)
	assert.Equal(t, 1280, cfg.Pipeline.DefaultWidth)
	assert.InDelta(t, 0.2, cfg.Retry.JitterFraction, 0.0001)
}

func TestLoad_MissingSignerSecretFails(t *testing.T) {
	clearShotpoolEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHOTPOOL_SIGNER_SECRET")
}

func TestLoad_InvalidStorageTypeFails(t *testing.T) {
	clearShotpoolEnv()
	os.Setenv("SHOTPOOL_SIGNER_SECRET", "test-secret")
	os.Setenv("SHOTPOOL_STORAGE_TYPE", "s3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type")
}

func TestLoad_BrowserPoolMinExceedsMaxFails(t *testing.T) {
	clearShotpoolEnv()
	os.Setenv("SHOTPOOL_SIGNER_SECRET", "test-secret")
	os.Setenv("SHOTPOOL_BROWSER_MIN_SIZE", "20")
	os.Setenv("SHOTPOOL_BROWSER_MAX_SIZE", "10")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds max size")
}
