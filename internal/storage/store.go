package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"devicegalaxy/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Store persists processed images by key. Keys use forward slashes, for
// example "device/12/<uuid>.jpg".
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "disk":
		return NewDiskStore(cfg.Root)
	case "s3":
		store, err := NewObjectStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func DeviceImageKey(deviceID int64, imageID string) string {
	return fmt.Sprintf("%s%s.jpg", DevicePrefix(deviceID), imageID)
}

func DevicePrefix(deviceID int64) string {
	return fmt.Sprintf("device/%d/", deviceID)
}

func ProfilePictureKey(userID string) string {
	return fmt.Sprintf("pfp/%s.jpg", userID)
}
