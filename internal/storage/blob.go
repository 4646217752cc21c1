package storage

import "io"

// BlobStore holds item images referenced by image_path. Keys are
// server-generated; callers never choose them.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
}
