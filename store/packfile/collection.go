package packfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/store"
)

// Collection unions an ordered sequence of open Readers behind a single
// hoard.BlockStore. Read consults each Reader in turn and returns the first
// hit; later packfiles containing a block already found in an earlier one
// are never consulted for that block.
//
// Grounded on me.lwhitelaw.hoard.PackfileCollection.
type Collection struct {
	mu      sync.RWMutex
	readers []*Reader
	paths   []string
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Add opens path as a packfile and appends it to the collection's search
// order. If path is a directory, Add walks it and opens every regular file
// whose name ends in ".pack", skipping anything that fails to open as a
// valid packfile (matching PackfileCollection's tolerant directory scan).
func (c *Collection) Add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "stating %s", path)
	}
	if !info.IsDir() {
		return c.addFile(path)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".pack") {
			return nil
		}
		if addErr := c.addFile(p); addErr != nil {
			return nil // tolerate unreadable/invalid packfiles in a directory scan
		}
		return nil
	})
}

func (c *Collection) addFile(path string) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.readers = append(c.readers, r)
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	return nil
}

// Read returns the first match for ref across the collection's readers, in
// the order they were added.
func (c *Collection) Read(ctx context.Context, ref hoard.Ref) ([]byte, error) {
	c.mu.RLock()
	readers := make([]*Reader, len(c.readers))
	copy(readers, c.readers)
	c.mu.RUnlock()

	for _, r := range readers {
		data, err := r.Read(ctx, ref)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, hoard.ErrNotFound) {
			return nil, err
		}
	}
	return nil, hoard.ErrNotFound
}

// Write always fails: a Collection is a read-only view over existing
// packfiles.
func (c *Collection) Write(context.Context, []byte) (hoard.Ref, error) {
	return hoard.Zero, hoard.Errorf(hoard.KindIllegalState, nil, "packfile collection is read-only")
}

// Contains reports whether any packfile in the collection holds ref,
// without decoding its payload.
func (c *Collection) Contains(ref hoard.Ref) (bool, error) {
	c.mu.RLock()
	readers := make([]*Reader, len(c.readers))
	copy(readers, c.readers)
	c.mu.RUnlock()

	for _, r := range readers {
		_, ok, err := r.Locate(ref)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Close closes every reader in the collection, returning the first error
// encountered, if any, after attempting to close them all.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.readers = nil
	c.paths = nil
	return firstErr
}

// Paths returns the backing file paths, in search order.
func (c *Collection) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}

var _ hoard.BlockStore = (*Collection)(nil)

func init() {
	store.Register("packfile-dir", func(_ context.Context, conf map[string]interface{}) (hoard.BlockStore, error) {
		dir, ok := conf["dir"].(string)
		if !ok {
			return nil, pkgerrors.New(`missing "dir" parameter`)
		}
		c := NewCollection()
		if err := c.Add(dir); err != nil {
			return nil, pkgerrors.Wrapf(err, "adding packfile directory %s", dir)
		}
		return c, nil
	})
}
