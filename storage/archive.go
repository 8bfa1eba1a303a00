package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

type StoredObject struct {
	Key string
	URL string
}

// Archive keeps raw activity files next to the parsed tracks.
type Archive interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (*StoredObject, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// TrackKey builds a collision-free object key for a user's upload. The
// original extension is kept so downloads open in GPX tools.
func TrackKey(userID int, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".gpx"
	}
	return fmt.Sprintf("tracks/%d/%s%s", userID, uuid.NewString(), ext)
}
