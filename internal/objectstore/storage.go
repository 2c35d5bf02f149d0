// Package objectstore uploads packaged artifacts and staged snapshots to
// object storage and reads them back.
package objectstore

import (
	"context"
	"errors"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_storage.go -package=mocks -source=storage.go Storage

// ErrObjectNotFound is returned by Download for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// Storage is the object storage contract consumed by the sync pipeline.
type Storage interface {
	// Upload stores data under key, replacing any existing object, and
	// returns the public URL of the object.
	Upload(ctx context.Context, key string, data []byte) (string, error)
	// Download returns the object stored under key or ErrObjectNotFound.
	Download(ctx context.Context, key string) ([]byte, error)
}

// PublicURL joins a public base URL and an object key.
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
