package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const metaSuffix = ".meta"

// BoltStore is a Backend kept in a single bbolt database file.
// Each store bucket maps to a bbolt bucket of the same name holding the
// object bytes, plus a sibling "<bucket>.meta" bucket with JSON metadata.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, ioError(err, "open bolt database", "", path)
	}
	return &BoltStore{db: db}, nil
}

// List returns the delimited listing of prefix within bucket.
func (s *BoltStore) List(ctx context.Context, bucket, prefix string) (Listing, error) {
	if err := checkBucket(bucket); err != nil {
		return Listing{}, err
	}
	listing := Listing{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); {
			if err := ctx.Err(); err != nil {
				return err
			}
			rest := k[len(p):]
			i := bytes.IndexByte(rest, '/')
			if i < 0 {
				listing.Files = append(listing.Files, FileEntry{Key: string(k)})
				k, _ = c.Next()
				continue
			}
			dir := prefix + string(rest[:i+1])
			listing.Directories = append(listing.Directories, DirEntry{Prefix: dir})
			// '0' sorts directly after '/', so this skips the whole subtree.
			k, _ = c.Seek([]byte(dir[:len(dir)-1] + "0"))
		}
		return nil
	})
	if err != nil {
		return Listing{}, ioError(err, "list bucket", bucket, prefix)
	}
	return listing, nil
}

// Get retrieves the object stored at key.
func (s *BoltStore) Get(ctx context.Context, bucket, key string) (*Object, error) {
	if err := checkBucket(bucket); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var obj *Object
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		// Cursor lookup keeps empty objects distinguishable from missing keys.
		k, data := b.Cursor().Seek([]byte(key))
		if k == nil || string(k) != key {
			return nil
		}
		obj = &Object{Key: key, Data: bytes.Clone(data)}
		if mb := tx.Bucket([]byte(bucket + metaSuffix)); mb != nil {
			if raw := mb.Get([]byte(key)); raw != nil {
				if err := json.Unmarshal(raw, &obj.Metadata); err != nil {
					return fmt.Errorf("unmarshal metadata: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, ioError(err, "read object", bucket, key)
	}
	if obj == nil {
		return nil, ErrNotFound{Bucket: bucket, Key: key}
	}
	return obj, nil
}

// Put stores obj, replacing any previous value.
func (s *BoltStore) Put(ctx context.Context, bucket string, obj *Object) error {
	if err := checkBucket(bucket); err != nil {
		return err
	}
	if err := checkKey(obj.Key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	meta, err := json.Marshal(obj.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		mb, err := tx.CreateBucketIfNotExists([]byte(bucket + metaSuffix))
		if err != nil {
			return err
		}
		if err := b.Put([]byte(obj.Key), obj.Data); err != nil {
			return err
		}
		return mb.Put([]byte(obj.Key), meta)
	})
	if err != nil {
		return ioError(err, "write object", bucket, obj.Key)
	}
	return nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
