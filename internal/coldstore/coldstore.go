// Package coldstore provides the tiered blob storage gateway for archive blobs.
package coldstore

import (
	"context"
	"errors"
	"time"
)

// Common errors for cold store operations.
var (
	ErrBlobNotFound   = errors.New("blob not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrTierFailed     = errors.New("tier transition failed")
)

// Tier is the storage cost/performance class of a blob.
type Tier string

const (
	// TierStandard is the class blobs are written into.
	TierStandard Tier = "standard"
	// TierArchive is the long-lived low-cost class blobs transition to.
	TierArchive Tier = "archive"
)

// Metadata keys attached to every archive blob.
const (
	MetaLogType        = "log_type"
	MetaDate           = "date"
	MetaCount          = "count"
	MetaSHA256         = "sha256"
	MetaRetentionUntil = "retention_until"
	MetaCompression    = "compression"
)

// ObjectInfo describes one stored blob as returned by List.
type ObjectInfo struct {
	Key       string
	Metadata  map[string]string
	SizeBytes int64
	CreatedAt time.Time
}

// BlobStore abstracts the tiered blob store holding archive blobs.
// Implementations include S3 and the local filesystem for testing.
type BlobStore interface {
	// Put writes a blob with its metadata. Writing the same key again
	// overwrites the previous object (callers guard against that).
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error

	// SetTier transitions a stored blob to the given tier. It is a separate
	// call after Put; the window before the transition lands is acceptable
	// since correctness never depends on the tier.
	SetTier(ctx context.Context, key string, tier Tier) error

	// Exists checks whether a blob exists for the key.
	Exists(ctx context.Context, key string) (bool, error)

	// Get reads a blob's bytes and metadata.
	// Returns ErrBlobNotFound if no blob exists for the key.
	Get(ctx context.Context, key string) ([]byte, map[string]string, error)

	// List returns info for every blob under the given key prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
