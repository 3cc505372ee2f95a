package fs_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shotpool/shotpool/internal/storage/fs"
)

func BenchmarkFS_Upload_1000Artifacts(b *testing.B) {
	tmpDir, err := os.MkdirTemp("", "shotpool-bench-*")
	if err != nil {
		b.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := fs.NewStore(filepath.Join(tmpDir, "store"))
	if err != nil {
		b.Fatalf("failed to create store: %v", err)
	}

	srcPath := filepath.Join(tmpDir, "source.png")
	payload := make([]byte, 64*1024) // a representative screenshot artifact size
	if err := os.WriteFile(srcPath, payload, 0644); err != nil {
		b.Fatalf("failed to write source file: %v", err)
	}

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("bench/%d.png", i)
		if err := store.Upload(ctx, srcPath, key); err != nil {
			b.Fatalf("upload failed: %v", err)
		}
	}
}
