// Package store provides a pluggable-backend registry for hoard.BlockStore
// implementations, and decorators (logging, caching) that wrap one
// BlockStore to produce another.
//
// Grounded on github.com/bobg/bs's store.Register/store.Create, generalized
// from blob+anchor stores to hoard.BlockStore.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mccutchen/hoard"
)

// Factory constructs a hoard.BlockStore from a JSON-decoded configuration
// map. Factories are registered under a backend name (e.g. "mem",
// "packfile-dir", "append", "cache", "logging") by each backend package's
// init function, and looked up by Create with that name and a config map.
type Factory func(ctx context.Context, conf map[string]interface{}) (hoard.BlockStore, error)

var registry = make(map[string]Factory)

// Register makes a backend factory available under key for later use by
// Create. It is meant to be called from a backend package's init
// function.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create builds the backend named key using conf, the factory's
// configuration parameters.
func Create(ctx context.Context, key string, conf map[string]interface{}) (hoard.BlockStore, error) {
	f, ok := registry[key]
	if !ok {
		return nil, errors.Errorf("backend %q is not registered", key)
	}
	return f(ctx, conf)
}
