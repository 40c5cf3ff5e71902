// Package store provides the content store used to read site sources and
// publish rendered output.
//
// A Backend holds objects in named buckets. An Adapter pairs one source
// bucket with one destination bucket and exposes the ContentStore operations
// the site builder, template resolver and render pipeline consume.
package store

import (
	"context"
	"errors"
	"time"
)

// ContentStore is the view of a backend used during one run.
// List and Get read the source bucket; Copy and Put write the destination.
type ContentStore interface {
	// List returns the immediate children of prefix, delimited by "/".
	List(ctx context.Context, prefix string) (Listing, error)

	// Get returns the bytes of a source object.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Copy copies a source object verbatim to dstKey in the destination.
	Copy(ctx context.Context, srcKey, dstKey string, visibility Visibility) error

	// Put uploads data to dstKey in the destination.
	Put(ctx context.Context, dstKey string, data []byte, opts PutOptions) error
}

// Backend stores objects in named buckets.
type Backend interface {
	List(ctx context.Context, bucket, prefix string) (Listing, error)
	Get(ctx context.Context, bucket, key string) (*Object, error)
	Put(ctx context.Context, bucket string, obj *Object) error
	Close() error
}

// Listing is a single-level, directory-delimited listing.
type Listing struct {
	Files       []FileEntry
	Directories []DirEntry
}

// FileEntry names an object directly under the listed prefix.
type FileEntry struct {
	Key string
}

// DirEntry names a common prefix one level below the listed prefix.
// Prefix always ends with "/".
type DirEntry struct {
	Prefix string
}

// Visibility is the access policy recorded on published objects.
type Visibility string

const (
	VisibilityPrivate    Visibility = "private"
	VisibilityPublicRead Visibility = "public-read"
)

// PutOptions carries the publishing metadata of an upload.
type PutOptions struct {
	ContentType  string
	Visibility   Visibility
	CacheControl string
	StorageClass string
}

// Object is a stored blob with its metadata.
type Object struct {
	Key      string
	Data     []byte
	Metadata Metadata
}

// Metadata stores object metadata.
type Metadata struct {
	ContentType  string     `json:"content_type,omitempty"`
	Visibility   Visibility `json:"visibility,omitempty"`
	CacheControl string     `json:"cache_control,omitempty"`
	StorageClass string     `json:"storage_class,omitempty"`
	ModifiedAt   time.Time  `json:"modified_at"`
}

func metadataFrom(opts PutOptions) Metadata {
	return Metadata{
		ContentType:  opts.ContentType,
		Visibility:   opts.Visibility,
		CacheControl: opts.CacheControl,
		StorageClass: opts.StorageClass,
		ModifiedAt:   time.Now().UTC(),
	}
}

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Bucket string
	Key    string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Bucket + "/" + e.Key
}

// IsNotFound returns true if err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
