// Package cache implements a hoard.BlockStore that acts as a
// least-recently-used read cache over a nested store.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/store"
)

var _ hoard.BlockStore = &Store{}

// Store implements a memory-based least-recently-used read cache for a
// nested hoard.BlockStore. Writes pass through to the underlying store and
// populate the cache so an immediate read hits it.
type Store struct {
	c *lru.Cache // hoard.Ref -> []byte
	s hoard.BlockStore
}

// New produces a new Store backed by s, caching up to size blocks.
func New(s hoard.BlockStore, size int) (*Store, error) {
	c, err := lru.New(size)
	return &Store{s: s, c: c}, err
}

// Read gets the block with digest ref, consulting the cache first.
func (s *Store) Read(ctx context.Context, ref hoard.Ref) ([]byte, error) {
	if data, ok := s.c.Get(ref); ok {
		return data.([]byte), nil
	}
	data, err := s.s.Read(ctx, ref)
	if err != nil {
		return nil, err
	}
	s.c.Add(ref, data)
	return data, nil
}

// Write stores data in the nested store and populates the cache with a copy
// of it, so later changes to the caller's slice do not reach the cache.
func (s *Store) Write(ctx context.Context, data []byte) (hoard.Ref, error) {
	ref, err := s.s.Write(ctx, data)
	if err != nil {
		return ref, err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.c.Add(ref, cp)
	return ref, nil
}

// Close closes the nested store. The cache itself holds no resources to
// release.
func (s *Store) Close() error {
	return s.s.Close()
}

func init() {
	store.Register("cache", func(ctx context.Context, conf map[string]interface{}) (hoard.BlockStore, error) {
		sizeFloat, ok := conf["size"].(float64)
		if !ok {
			return nil, errors.New(`missing "size" parameter`)
		}
		nested, ok := conf["nested"].(map[string]interface{})
		if !ok {
			return nil, errors.New(`missing "nested" parameter`)
		}
		nestedType, ok := nested["type"].(string)
		if !ok {
			return nil, errors.New(`"nested" parameter missing "type"`)
		}
		nestedStore, err := store.Create(ctx, nestedType, nested)
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		return New(nestedStore, int(sizeFloat))
	})
}
