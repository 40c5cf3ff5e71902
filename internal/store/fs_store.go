package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
)

const metaDir = ".meta"

// FSStore is a filesystem-based implementation of Backend.
// Each bucket is a directory below the base path; metadata lives in a
// parallel tree so listings only ever see content:
//
//	<base>/
//	  <bucket>/src/blog/post.markdown
//	  .meta/<bucket>/src/blog/post.markdown.json
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a filesystem store rooted at basePath.
func NewFSStore(basePath string) (*FSStore, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", basePath, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// BasePath returns the directory holding the buckets.
func (s *FSStore) BasePath() string { return s.basePath }

// BucketPath returns the directory backing bucket.
func (s *FSStore) BucketPath(bucket string) string {
	return filepath.Join(s.basePath, bucket)
}

// List returns the delimited listing of prefix within bucket.
func (s *FSStore) List(ctx context.Context, bucket, prefix string) (Listing, error) {
	if err := checkBucket(bucket); err != nil {
		return Listing{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// A prefix without a trailing slash lists siblings sharing the name prefix.
	dirKey, namePrefix := prefix, ""
	if i := strings.LastIndexByte(prefix, '/'); i >= 0 {
		dirKey, namePrefix = prefix[:i+1], prefix[i+1:]
	} else {
		dirKey, namePrefix = "", prefix
	}

	entries, err := os.ReadDir(s.objectPath(bucket, dirKey))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Listing{}, nil
		}
		return Listing{}, ioError(err, "list directory", bucket, prefix)
	}

	listing := Listing{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Listing{}, err
		}
		name := entry.Name()
		if !strings.HasPrefix(name, namePrefix) {
			continue
		}
		if entry.IsDir() {
			listing.Directories = append(listing.Directories, DirEntry{Prefix: dirKey + name + "/"})
			continue
		}
		listing.Files = append(listing.Files, FileEntry{Key: dirKey + name})
	}
	return listing, nil
}

// Get retrieves the object stored at key.
func (s *FSStore) Get(ctx context.Context, bucket, key string) (*Object, error) {
	if err := checkBucket(bucket); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// #nosec G304 - path is confined to the bucket directory by checkKey
	data, err := os.ReadFile(s.objectPath(bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound{Bucket: bucket, Key: key}
		}
		return nil, ioError(err, "read object", bucket, key)
	}

	metadata, err := s.readMetadata(bucket, key)
	if err != nil {
		metadata = Metadata{}
	}
	return &Object{Key: key, Data: data, Metadata: metadata}, nil
}

// Put writes obj, creating intermediate directories.
func (s *FSStore) Put(ctx context.Context, bucket string, obj *Object) error {
	if err := checkBucket(bucket); err != nil {
		return err
	}
	if err := checkKey(obj.Key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	objectPath := s.objectPath(bucket, obj.Key)
	if err := os.MkdirAll(filepath.Dir(objectPath), 0o750); err != nil {
		return ioError(err, "create object directory", bucket, obj.Key)
	}
	if err := os.WriteFile(objectPath, obj.Data, 0o600); err != nil {
		return ioError(err, "write object", bucket, obj.Key)
	}
	if err := s.writeMetadata(bucket, obj.Key, obj.Metadata); err != nil {
		return ioError(err, "write metadata", bucket, obj.Key)
	}
	return nil
}

// Close releases resources.
func (s *FSStore) Close() error {
	return nil
}

// objectPath returns the filesystem path for an object.
func (s *FSStore) objectPath(bucket, key string) string {
	return filepath.Join(s.basePath, bucket, filepath.FromSlash(key))
}

// metadataPath returns the filesystem path for object metadata.
func (s *FSStore) metadataPath(bucket, key string) string {
	return filepath.Join(s.basePath, metaDir, bucket, filepath.FromSlash(key)) + ".json"
}

func (s *FSStore) readMetadata(bucket, key string) (Metadata, error) {
	// #nosec G304 - path is internal, constructed from a checked key
	data, err := os.ReadFile(s.metadataPath(bucket, key))
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return metadata, nil
}

func (s *FSStore) writeMetadata(bucket, key string, metadata Metadata) error {
	path := s.metadataPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func checkBucket(bucket string) error {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || strings.HasPrefix(bucket, ".") {
		return ferrors.ValidationError("invalid bucket name").WithContext("bucket", bucket).Build()
	}
	return nil
}

func checkKey(key string) error {
	if key == "" || strings.HasSuffix(key, "/") || strings.HasPrefix(key, "/") {
		return ferrors.ValidationError("invalid object key").WithContext("key", key).Build()
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return ferrors.ValidationError("invalid object key").WithContext("key", key).Build()
		}
	}
	return nil
}

// ioError classifies a filesystem failure as a retryable store error.
func ioError(err error, op, bucket, key string) error {
	return ferrors.WrapError(err, ferrors.CategoryStore, op).
		Retryable().
		WithContext("bucket", bucket).
		WithContext("key", key).
		Build()
}
