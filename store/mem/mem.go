// Package mem implements an in-memory hoard.BlockStore, useful for tests
// and as a nested store for the logging and cache decorators.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/store"
)

var _ hoard.BlockStore = &Store{}

// Store is a memory-based hoard.BlockStore.
type Store struct {
	mu     sync.Mutex
	blocks map[hoard.Ref][]byte
}

// New produces a new Store.
func New() *Store {
	return &Store{blocks: make(map[hoard.Ref][]byte)}
}

// Read gets the block with digest ref.
func (s *Store) Read(_ context.Context, ref hoard.Ref) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.blocks[ref]; ok {
		return b, nil
	}
	return nil, hoard.ErrNotFound
}

// Write adds a block to the store if it wasn't already present.
func (s *Store) Write(_ context.Context, data []byte) (hoard.Ref, error) {
	if len(data) > hoard.MaxBlockSize {
		return hoard.Zero, hoard.Errorf(hoard.KindIllegalState, nil, "block of %d bytes exceeds maximum of %d", len(data), hoard.MaxBlockSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := hoard.Sum(data)
	if _, ok := s.blocks[ref]; !ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.blocks[ref] = cp
	}
	return ref, nil
}

// Close is a no-op; a Store holds no external resources.
func (s *Store) Close() error { return nil }

// ListRefs produces every block digest in the store, in ascending order,
// starting at the first digest strictly greater than start.
func (s *Store) ListRefs(_ context.Context, start hoard.Ref, f func(hoard.Ref) error) error {
	s.mu.Lock()
	refs := make([]hoard.Ref, 0, len(s.blocks))
	for ref := range s.blocks {
		refs = append(refs, ref)
	}
	s.mu.Unlock()

	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	index := sort.Search(len(refs), func(n int) bool {
		return start.Less(refs[n])
	})

	for i := index; i < len(refs); i++ {
		if err := f(refs[i]); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	store.Register("mem", func(context.Context, map[string]interface{}) (hoard.BlockStore, error) {
		return New(), nil
	})
}
