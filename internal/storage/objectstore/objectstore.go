// Package objectstore defines the narrow upload contract the pipeline uses
// to publish a finished screenshot artifact (spec §6).
package objectstore

import "context"

// ObjectStore uploads a local file under the caller-chosen storage key and
// returns only an error (signed URLs are internal/signer's job).
type ObjectStore interface {
	Upload(ctx context.Context, localPath, storageKey string) error
}
