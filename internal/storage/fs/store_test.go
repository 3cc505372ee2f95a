package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotpool/shotpool/internal/storage/compliance"
	"github.com/shotpool/shotpool/internal/storage/objectstore"
)

func TestFSStore_Compliance(t *testing.T) {
	compliance.RunObjectStoreComplianceTest(t, func() (objectstore.ObjectStore, func()) {
		tmpDir, err := os.MkdirTemp("", "fs-store-test-*")
		require.NoError(t, err)

		store, err := NewStore(tmpDir)
		require.NoError(t, err)

		return store, func() { os.RemoveAll(tmpDir) }
	})
}

func TestFSStore_UploadPreservesContent(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	require.NoError(t, err)

	localPath := filepath.Join(t.TempDir(), "source.png")
	require.NoError(t, os.WriteFile(localPath, []byte("exact bytes"), 0644))

	require.NoError(t, store.Upload(context.Background(), localPath, "artifacts/one.png"))

	got, err := os.ReadFile(store.Path("artifacts/one.png"))
	require.NoError(t, err)
	assert.Equal(t, "exact bytes", string(got))
}
