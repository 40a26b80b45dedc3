package coldstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// metaSuffix names the JSON sidecar holding a blob's metadata and tier.
const metaSuffix = ".meta.json"

// LocalStore implements BlobStore using the local filesystem.
// This is primarily used for testing and development. Metadata and the
// assigned tier live in a sidecar file next to each blob.
type LocalStore struct {
	basePath string
	mu       sync.RWMutex
}

// sidecar is the on-disk shape of a blob's metadata.
type sidecar struct {
	Metadata  map[string]string `json:"metadata"`
	Tier      Tier              `json:"tier"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewLocalStore creates a new local filesystem blob store.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Put writes a blob and its metadata sidecar.
func (l *LocalStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	destPath := l.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	sc := sidecar{
		Metadata:  metadata,
		Tier:      TierStandard,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.writeSidecar(destPath, &sc); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return nil
}

// SetTier records the tier in the blob's sidecar.
func (l *LocalStore) SetTier(ctx context.Context, key string, tier Tier) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	destPath := l.fullPath(key)
	sc, err := l.readSidecar(destPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("%w: %v", ErrTierFailed, err)
	}

	sc.Tier = tier
	if err := l.writeSidecar(destPath, sc); err != nil {
		return fmt.Errorf("%w: %v", ErrTierFailed, err)
	}
	return nil
}

// Exists checks whether a blob exists.
func (l *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	_, err := os.Stat(l.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get reads a blob's bytes and metadata.
func (l *LocalStore) Get(ctx context.Context, key string) ([]byte, map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	srcPath := l.fullPath(key)
	data, err := os.ReadFile(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	sc, err := l.readSidecar(srcPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return data, sc.Metadata, nil
}

// GetTier returns the tier recorded for a blob. Test helper.
func (l *LocalStore) GetTier(key string) (Tier, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sc, err := l.readSidecar(l.fullPath(key))
	if err != nil {
		return "", err
	}
	return sc.Tier, nil
}

// List returns info for every blob under the given prefix.
func (l *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var infos []ObjectInfo
	err := filepath.Walk(l.basePath, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if fi.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return nil
		}

		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		sc, err := l.readSidecar(path)
		if err != nil {
			return err
		}

		infos = append(infos, ObjectInfo{
			Key:       key,
			Metadata:  sc.Metadata,
			SizeBytes: fi.Size(),
			CreatedAt: sc.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return infos, nil
}

// Corrupt overwrites a stored blob's bytes without touching its metadata.
// Test helper for integrity verification scenarios.
func (l *LocalStore) Corrupt(key string, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return os.WriteFile(l.fullPath(key), data, 0644)
}

func (l *LocalStore) writeSidecar(blobPath string, sc *sidecar) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(blobPath+metaSuffix, data, 0644)
}

func (l *LocalStore) readSidecar(blobPath string) (*sidecar, error) {
	data, err := os.ReadFile(blobPath + metaSuffix)
	if err != nil {
		return nil, err
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// fullPath returns the full filesystem path for a blob key.
func (l *LocalStore) fullPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}
