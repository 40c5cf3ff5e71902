package store

import (
	"context"
	"log/slog"
	"mime"
	"path"

	"git.home.luguber.info/inful/scampish/internal/logfields"
)

// Adapter binds a Backend to one source and one destination bucket.
type Adapter struct {
	backend      Backend
	source       string
	dest         string
	storageClass string
	logger       *slog.Logger
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithStorageClass sets the storage class recorded on copied assets.
func WithStorageClass(class string) AdapterOption {
	return func(a *Adapter) { a.storageClass = class }
}

// WithLogger sets the logger used for copy and upload records.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = logger }
}

// NewAdapter creates a ContentStore reading source and writing dest.
func NewAdapter(backend Backend, source, dest string, opts ...AdapterOption) *Adapter {
	a := &Adapter{backend: backend, source: source, dest: dest, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SourceBucket returns the bucket List and Get read from.
func (a *Adapter) SourceBucket() string { return a.source }

// DestBucket returns the bucket Copy and Put write to.
func (a *Adapter) DestBucket() string { return a.dest }

func (a *Adapter) List(ctx context.Context, prefix string) (Listing, error) {
	return a.backend.List(ctx, a.source, prefix)
}

func (a *Adapter) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.backend.Get(ctx, a.source, key)
	if err != nil {
		return nil, err
	}
	return obj.Data, nil
}

// Copy reads srcKey from the source bucket and writes it unchanged to dstKey.
func (a *Adapter) Copy(ctx context.Context, srcKey, dstKey string, visibility Visibility) error {
	obj, err := a.backend.Get(ctx, a.source, srcKey)
	if err != nil {
		return err
	}
	contentType := obj.Metadata.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(srcKey)
	}
	a.logger.Debug("Copying object",
		logfields.Key(srcKey),
		slog.String("dest", dstKey),
		logfields.Bucket(a.dest))
	return a.backend.Put(ctx, a.dest, &Object{
		Key:  dstKey,
		Data: obj.Data,
		Metadata: metadataFrom(PutOptions{
			ContentType:  contentType,
			Visibility:   visibility,
			StorageClass: a.storageClass,
		}),
	})
}

// Put uploads data to dstKey in the destination bucket.
func (a *Adapter) Put(ctx context.Context, dstKey string, data []byte, opts PutOptions) error {
	if opts.ContentType == "" {
		opts.ContentType = ContentTypeFor(dstKey)
	}
	a.logger.Debug("Uploading object",
		logfields.Key(dstKey),
		logfields.Bucket(a.dest),
		slog.Int("bytes", len(data)))
	return a.backend.Put(ctx, a.dest, &Object{Key: dstKey, Data: data, Metadata: metadataFrom(opts)})
}

// ContentTypeFor guesses a MIME type from the key's extension.
func ContentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
