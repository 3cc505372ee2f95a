package config

import (
	"fmt"
	"time"
)

// StorageConfig selects and tunes the artifact storage backend
// (internal/storage/fs or internal/storage/gcs).
type StorageConfig struct {
	Type      string `env:"SHOTPOOL_STORAGE_TYPE" default:"fs"` // fs, gcs
	FSDir     string `env:"SHOTPOOL_STORAGE_FS_DIR" default:"./data/artifacts"`
	GCSBucket string `env:"SHOTPOOL_STORAGE_GCS_BUCKET"`
}

func (c StorageConfig) Validate() error {
	switch c.Type {
	case "fs":
		if c.FSDir == "" {
			return fmt.Errorf("storage type fs requires SHOTPOOL_STORAGE_FS_DIR")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("storage type gcs requires SHOTPOOL_STORAGE_GCS_BUCKET")
		}
	default:
		return fmt.Errorf("unknown storage type %q (want fs or gcs)", c.Type)
	}
	return nil
}

// SignerConfig tunes internal/signer.HMACSigner.
type SignerConfig struct {
	Secret  string        `env:"SHOTPOOL_SIGNER_SECRET"`
	BaseURL string        `env:"SHOTPOOL_SIGNER_BASE_URL" default:"http://localhost:8080/artifacts"`
	TTL     time.Duration `env:"SHOTPOOL_SIGNER_TTL" default:"1h"`
}

func (c SignerConfig) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("SHOTPOOL_SIGNER_SECRET must be set")
	}
	return nil
}
