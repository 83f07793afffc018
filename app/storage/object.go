package storage

import "context"

// ObjectStore persists uploaded cup images and returns retrievable URLs.
type ObjectStore interface {
	Store(ctx context.Context, ownerID string, data []byte, filename string) (string, error)
	Delete(ctx context.Context, objectURL string) error
}
