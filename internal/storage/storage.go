// Package storage defines the Storage interface and the backend factory for
// uploaded media, which for this platform means the social-card images
// attached to petitions and templates.
//
// New backends are added by implementing the Storage interface and
// registering with the factory via an init() function in the backend's own
// package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The main package imports each backend with a blank import to trigger
// init(), so adding a backend requires no factory changes.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/petition-platform/petition-platform/internal/config"
)

// Storage defines the interface for media storage backends
type Storage interface {
	// Upload stores a file and returns the storage result with path and size
	Upload(ctx context.Context, path string, reader io.Reader) (*UploadResult, error)

	// Download retrieves a file and returns a reader
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file from storage
	Delete(ctx context.Context, path string) error

	// GetURL returns a direct download URL. For cloud storage this generates
	// a signed URL valid for the specified TTL; for local storage it returns
	// a path served by the API.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Exists checks if a file exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)
}

// UploadResult contains information about an uploaded file
type UploadResult struct {
	// Path is the storage path where the file was stored
	Path string

	// Size is the file size in bytes
	Size int64
}

// FactoryFunc creates a storage backend from configuration
type FactoryFunc func(*config.Config) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewStorage creates a storage backend based on configuration
func NewStorage(cfg *config.Config) (Storage, error) {
	factory, ok := factories[cfg.Storage.DefaultBackend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s (must be 'local' or 's3')", cfg.Storage.DefaultBackend)
	}

	return factory(cfg)
}
