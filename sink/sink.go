// Package sink writes published objects to a keyed store. Keys are
// slash-separated paths; each key is independent and the last write wins.
package sink

import (
	"context"

	"github.com/cadastral/tiler/tile"
)

// Object is one keyed write with its HTTP-facing headers.
type Object struct {
	Key             string
	Body            []byte
	ContentType     string
	ContentEncoding string
	CacheControl    string
}

// Sink stores objects. Put must be safe for concurrent use.
type Sink interface {
	Put(ctx context.Context, obj Object) error
}

// TileObject wraps an already-gzipped vector tile payload. The body is never
// re-compressed.
func TileObject(key string, data []byte) Object {
	return Object{
		Key:             key,
		Body:            data,
		ContentType:     tile.ContentTypeVectorTile,
		ContentEncoding: tile.GZIP,
		CacheControl:    tile.CacheControlTile,
	}
}

// MetadataObject wraps an encoded TileJSON document.
func MetadataObject(key string, body []byte) Object {
	return Object{
		Key:          key,
		Body:         body,
		ContentType:  tile.ContentTypeJSON,
		CacheControl: tile.CacheControlMetadata,
	}
}
