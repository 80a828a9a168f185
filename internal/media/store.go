package media

import (
	"context"
	"path"

	"github.com/google/uuid"
)

// Store persists media objects by key.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL is the public address templates link to.
	URL(key string) string
}

// NewPostImageKey returns a fresh key under posts/.
func NewPostImageKey(ext string) string {
	return path.Join("posts", uuid.NewString()+"."+ext)
}
