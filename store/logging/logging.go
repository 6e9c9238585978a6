// Package logging implements a hoard.BlockStore that delegates everything
// to a nested store, logging operations as they happen.
package logging

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/store"
)

var _ hoard.BlockStore = &Store{}

// Store wraps a nested hoard.BlockStore, logging every Read and Write.
type Store struct {
	s hoard.BlockStore
}

// New returns a Store that logs operations on s as they happen.
func New(s hoard.BlockStore) *Store {
	return &Store{s: s}
}

// Read fetches ref from the nested store, logging the outcome.
func (s *Store) Read(ctx context.Context, ref hoard.Ref) ([]byte, error) {
	data, err := s.s.Read(ctx, ref)
	if err != nil {
		log.Printf("ERROR Read %s: %s", ref, err)
	} else {
		log.Printf("Read %s, %d bytes", ref, len(data))
	}
	return data, err
}

// Write stores data in the nested store, logging the resulting digest.
func (s *Store) Write(ctx context.Context, data []byte) (hoard.Ref, error) {
	ref, err := s.s.Write(ctx, data)
	if err != nil {
		log.Printf("ERROR Write: %s", err)
	} else {
		log.Printf("Write %s, %d bytes", ref, len(data))
	}
	return ref, err
}

// Close closes the nested store.
func (s *Store) Close() error {
	log.Printf("Close")
	return s.s.Close()
}

func init() {
	store.Register("logging", func(ctx context.Context, conf map[string]interface{}) (hoard.BlockStore, error) {
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
		return New(nestedStore), nil
	})
}
