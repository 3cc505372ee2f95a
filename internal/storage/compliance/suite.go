// Package compliance runs a shared behavioral test suite against any
// objectstore.ObjectStore implementation. internal/storage/fs runs it; the
// gcs package's test does its own single upload instead.
package compliance

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotpool/shotpool/internal/storage/objectstore"
)

// RunObjectStoreComplianceTest exercises Upload against a fresh store built
// by setup, which also returns a teardown func.
func RunObjectStoreComplianceTest(t *testing.T, setup func() (objectstore.ObjectStore, func())) {
	t.Run("UploadSucceeds", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()

		localPath := writeTempFile(t, []byte("a screenshot artifact"))
		key := uuid.NewString() + ".png"

		err := store.Upload(context.Background(), localPath, key)
		require.NoError(t, err)
	})

	t.Run("UploadOfNestedKeySucceeds", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()

		localPath := writeTempFile(t, []byte("nested artifact"))
		key := "2026/07/30/" + uuid.NewString() + ".png"

		err := store.Upload(context.Background(), localPath, key)
		require.NoError(t, err)
	})

	t.Run("UploadMissingSourceFails", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()

		err := store.Upload(context.Background(), "/nonexistent/path/does-not-exist.png", uuid.NewString()+".png")
		assert.Error(t, err)
	})
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "source.png")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}
