package stream

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/chunk"
)

// Writer chunks a byte stream written to it into leaf blocks and builds the
// pointer levels above them, writing every block through store. A leaf
// flushes once it reaches 65535 bytes, or once it is at least 4096 bytes
// and the chunker reports a boundary.
//
// A Writer is single-threaded; it calls into store synchronously and in
// order.
type Writer struct {
	store hoard.BlockStore

	leaf    []byte
	chunker *chunk.Chunker
	levels  [maxLevels][]hoard.Ref

	nonempty bool
	topFull  bool
	closed   bool
	root     hoard.Ref
}

// NewWriter returns a Writer that persists blocks to store. The chunker
// uses a (10, 12) configuration: a 1024-byte ring buffer, boundary every
// ~4096 bytes on average.
func NewWriter(store hoard.BlockStore) *Writer {
	return &Writer{
		store:   store,
		chunker: chunk.New(10, 12),
	}
}

// Write appends p to the stream, flushing leaves and promoting pointer
// levels as needed.
func (w *Writer) Write(ctx context.Context, p []byte) (int, error) {
	for i, b := range p {
		if err := w.writeByte(ctx, b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (w *Writer) writeByte(ctx context.Context, b byte) error {
	if w.closed {
		return hoard.Errorf(hoard.KindIllegalState, nil, "stream writer is closed")
	}
	if w.topFull {
		return hoard.Errorf(hoard.KindIllegalState, nil, "stream writer has reached its top-level capacity")
	}

	w.leaf = append(w.leaf, b)
	w.chunker.Update(b)
	w.nonempty = true

	if (len(w.leaf) >= minLeafSizeForMarker && w.chunker.IsMarker()) || len(w.leaf) == maxLeafSize {
		return w.flushLeaf(ctx)
	}
	return nil
}

func (w *Writer) flushLeaf(ctx context.Context) error {
	ref, err := w.store.Write(ctx, w.leaf)
	if err != nil {
		return errors.Wrap(err, "writing leaf block")
	}
	w.leaf = w.leaf[:0]
	w.chunker.Reset()
	w.levels[0] = append(w.levels[0], ref)
	return w.promote(ctx)
}

// promote carries level overflow upward: any level that has accumulated
// maxChildren digests is itself written as a superblock, whose digest is
// placed into the level above.
func (w *Writer) promote(ctx context.Context) error {
	level := 0
	for level < maxLevels-1 && len(w.levels[level]) == maxChildren {
		ref, err := w.emitSuperblock(ctx, level, w.levels[level])
		if err != nil {
			return err
		}
		w.levels[level] = w.levels[level][:0]
		w.levels[level+1] = append(w.levels[level+1], ref)
		level++
	}
	if len(w.levels[maxLevels-1]) == maxChildren {
		w.topFull = true
	}
	return nil
}

func (w *Writer) emitSuperblock(ctx context.Context, level int, children []hoard.Ref) (hoard.Ref, error) {
	data := encodeSuperblock(level, children)
	ref, err := w.store.Write(ctx, data)
	if err != nil {
		return hoard.Zero, errors.Wrapf(err, "writing superblock at level %d", level)
	}
	return ref, nil
}

// Close finalizes the stream, flushing any partial leaf and consolidating
// the remaining pointer levels into a single root digest, retrievable
// afterward via Hash.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}

	if len(w.leaf) > 0 {
		if err := w.flushLeaf(ctx); err != nil {
			return err
		}
	}
	if !w.nonempty {
		if err := w.flushLeaf(ctx); err != nil {
			return err
		}
	}

	root, err := w.consolidate(ctx)
	if err != nil {
		return err
	}

	w.root = root
	w.closed = true
	return nil
}

func (w *Writer) consolidate(ctx context.Context) (hoard.Ref, error) {
	maxLevel := -1
	for level := maxLevels - 1; level >= 0; level-- {
		if len(w.levels[level]) > 0 {
			maxLevel = level
			break
		}
	}
	if maxLevel < 0 {
		return hoard.Zero, hoard.Errorf(hoard.KindIllegalState, nil, "stream writer has no data to consolidate")
	}

	if maxLevel == 0 {
		return w.emitSuperblock(ctx, 0, w.levels[0])
	}

	blockCount := 0
	for level := 0; level <= maxLevel; level++ {
		blockCount += len(w.levels[level])
	}
	if blockCount == 1 {
		return w.levels[maxLevel][0], nil
	}

	for level := 0; level < maxLevel; level++ {
		if len(w.levels[level]) == 0 {
			continue
		}
		ref, err := w.emitSuperblock(ctx, level, w.levels[level])
		if err != nil {
			return hoard.Zero, err
		}
		w.levels[level] = nil
		w.levels[level+1] = append(w.levels[level+1], ref)
	}
	return w.emitSuperblock(ctx, maxLevel, w.levels[maxLevel])
}

// Hash returns the root digest of the stream. It is only valid after
// Close has returned successfully.
func (w *Writer) Hash() (hoard.Ref, error) {
	if !w.closed {
		return hoard.Zero, hoard.Errorf(hoard.KindIllegalState, nil, "stream writer has not been closed")
	}
	return w.root, nil
}
