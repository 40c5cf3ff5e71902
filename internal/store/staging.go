package store

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Staging is a ContentStore that reads through to its source and buffers
// every write until Commit. A run that fails before Commit publishes nothing.
type Staging struct {
	next ContentStore

	mu      sync.Mutex
	pending []StagedOp
}

// StagedOp is one buffered write.
type StagedOp struct {
	// SrcKey is set for copies; Data and Options for uploads.
	SrcKey     string
	DstKey     string
	Data       []byte
	Options    PutOptions
	Visibility Visibility
}

// IsCopy reports whether op replays as a Copy.
func (op StagedOp) IsCopy() bool { return op.SrcKey != "" }

// NewStaging creates a staging layer over next.
func NewStaging(next ContentStore) *Staging {
	return &Staging{next: next}
}

func (s *Staging) List(ctx context.Context, prefix string) (Listing, error) {
	return s.next.List(ctx, prefix)
}

func (s *Staging) Get(ctx context.Context, key string) ([]byte, error) {
	return s.next.Get(ctx, key)
}

func (s *Staging) Copy(ctx context.Context, srcKey, dstKey string, visibility Visibility) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.stage(StagedOp{SrcKey: srcKey, DstKey: dstKey, Visibility: visibility})
	return nil
}

func (s *Staging) Put(ctx context.Context, dstKey string, data []byte, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.stage(StagedOp{DstKey: dstKey, Data: slices.Clone(data), Options: opts})
	return nil
}

func (s *Staging) stage(op StagedOp) {
	s.mu.Lock()
	s.pending = append(s.pending, op)
	s.mu.Unlock()
}

// Len reports the number of buffered writes.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Pending returns a snapshot of the buffered writes.
func (s *Staging) Pending() []StagedOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pending)
}

// Commit replays buffered writes against the underlying store with at most
// limit in flight (unbounded when limit <= 0). The buffer is cleared only
// when every write succeeded.
func (s *Staging) Commit(ctx context.Context, limit int) error {
	ops := s.Pending()
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, op := range ops {
		g.Go(func() error {
			if op.IsCopy() {
				return s.next.Copy(gctx, op.SrcKey, op.DstKey, op.Visibility)
			}
			return s.next.Put(gctx, op.DstKey, op.Data, op.Options)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending = s.pending[len(ops):]
	s.mu.Unlock()
	return nil
}

// Discard drops every buffered write.
func (s *Staging) Discard() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}
