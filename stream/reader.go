package stream

import (
	"context"

	"github.com/mccutchen/hoard"
)

// frame tracks traversal position within one open superblock: its parsed
// children and a cursor into them.
type frame struct {
	level    int
	children []hoard.Ref
	cursor   int
}

func (f *frame) exhausted() bool { return f.cursor >= len(f.children) }

// Reader streams the bytes referenced by a superblock tree, traversing it
// depth-first from the root. A Reader is single-threaded.
type Reader struct {
	store hoard.BlockStore
	root  hoard.Ref

	stack   []*frame
	current []byte
	pos     int
	started bool
	done    bool
}

// NewReader returns a Reader over the tree rooted at root, fetching blocks
// from store.
func NewReader(store hoard.BlockStore, root hoard.Ref) *Reader {
	return &Reader{store: store, root: root}
}

func (r *Reader) fetchSuperblock(ctx context.Context, ref hoard.Ref) (*frame, error) {
	data, err := r.store.Read(ctx, ref)
	if err != nil {
		return nil, hoard.Errorf(hoard.KindMissingBlock, err, "fetching superblock %s", ref)
	}
	level, children, err := decodeSuperblock(data)
	if err != nil {
		return nil, hoard.Errorf(hoard.KindFormat, err, "decoding superblock %s", ref)
	}
	return &frame{level: level, children: children}, nil
}

// advance performs one step of the next-block traversal, leaving
// r.current populated with the next data leaf, or r.done set if the
// stream is exhausted.
func (r *Reader) advance(ctx context.Context) error {
	if !r.started {
		root, err := r.fetchSuperblock(ctx, r.root)
		if err != nil {
			return err
		}
		r.stack = append(r.stack, root)
		r.started = true
	}

	for len(r.stack) > 0 && r.stack[len(r.stack)-1].exhausted() {
		r.stack = r.stack[:len(r.stack)-1]
	}
	if len(r.stack) == 0 {
		r.done = true
		return nil
	}

	for r.stack[len(r.stack)-1].level > 0 {
		top := r.stack[len(r.stack)-1]
		childRef := top.children[top.cursor]
		top.cursor++
		child, err := r.fetchSuperblock(ctx, childRef)
		if err != nil {
			return err
		}
		r.stack = append(r.stack, child)
	}

	top := r.stack[len(r.stack)-1]
	leafRef := top.children[top.cursor]
	top.cursor++

	data, err := r.store.Read(ctx, leafRef)
	if err != nil {
		return hoard.Errorf(hoard.KindMissingBlock, err, "fetching data block %s", leafRef)
	}
	r.current = data
	r.pos = 0
	return nil
}

// Read implements a context-aware analogue of io.Reader: it fills p with
// stream bytes, returning n==0 and a nil error only at true end of stream
// rather than a sentinel io.EOF.
func (r *Reader) Read(ctx context.Context, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if r.pos >= len(r.current) {
			if r.done {
				break
			}
			if err := r.advance(ctx); err != nil {
				return total, err
			}
			if r.done {
				break
			}
		}
		n := copy(p[total:], r.current[r.pos:])
		total += n
		r.pos += n
	}
	return total, nil
}

// ReadAll drains the entire stream into memory. It is a convenience for
// callers that do not need to bound memory use.
func (r *Reader) ReadAll(ctx context.Context) ([]byte, error) {
	var out []byte
	buf := make([]byte, maxLeafSize)
	for {
		n, err := r.Read(ctx, buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, buf[:n]...)
	}
}
