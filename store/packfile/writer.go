package packfile

import (
	"context"
	"encoding/binary"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/compress"
)

// Writer accumulates deduplicated blocks in memory and serializes them to a
// sorted packfile with Dump. A Writer is single-threaded: the caller must
// serialize concurrent Write calls externally.
//
// Grounded on me.lwhitelaw.hoard.PackfileWriter, with the ordered
// insertion-order dedupe map (PackfileWriter's O(n) linear scan is upgraded
// to a map keyed on hoard.Ref, same semantics, no quadratic blowup on large
// packfiles).
type Writer struct {
	seen    map[hoard.Ref]int // digest -> index into entries, for dedupe
	entries []Entry
	data    []byte // concatenation of encoded payloads, in write order
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{seen: make(map[hoard.Ref]int)}
}

// Write computes data's digest, deduplicates against blocks already
// written to this Writer, and otherwise compresses (or falls back to raw)
// and buffers the encoded payload for the eventual Dump. It implements
// hoard.BlockStore's Write method, ignoring ctx (everything here is
// in-memory and synchronous).
func (w *Writer) Write(_ context.Context, data []byte) (hoard.Ref, error) {
	if len(data) > hoard.MaxBlockSize {
		return hoard.Zero, hoard.Errorf(hoard.KindIllegalState, nil, "block of %d bytes exceeds maximum of %d", len(data), hoard.MaxBlockSize)
	}
	ref := hoard.Sum(data)
	if _, ok := w.seen[ref]; ok {
		return ref, nil
	}

	encoded, enc, err := compress.Encode(data)
	if err != nil {
		return hoard.Zero, errors.Wrap(err, "encoding block")
	}

	entry := Entry{
		Digest:        ref,
		RawLength:     int32(len(data)),
		EncodedLength: int32(len(encoded)),
		PayloadOffset: int64(len(w.data)),
	}
	if enc == compress.Zlib {
		entry.encodingRaw = zlibEncodingTag
	} else {
		entry.encodingRaw = rawEncodingTag
	}

	w.seen[ref] = len(w.entries)
	w.entries = append(w.entries, entry)
	w.data = append(w.data, encoded...)
	return ref, nil
}

// Read always reports hoard.ErrNotFound: a Writer is write-only until it is
// Dump-ed and reopened as a Reader.
func (w *Writer) Read(context.Context, hoard.Ref) ([]byte, error) {
	return nil, hoard.ErrNotFound
}

// Close is a no-op; a Writer holds no file handle until Dump.
func (w *Writer) Close() error { return nil }

// Len reports how many distinct blocks have been written so far.
func (w *Writer) Len() int { return len(w.entries) }

// Dump serializes the accumulated blocks to a new file at path. The file
// must not already exist; dump is create-new, via O_EXCL.
func (w *Writer) Dump(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating packfile %s", path)
	}
	defer f.Close()

	sorted := make([]Entry, len(w.entries))
	copy(sorted, w.entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Digest.Less(sorted[j].Digest)
	})

	blocktableStart := roundUp64(HeaderSize + int64(len(w.data)))

	var header [HeaderSize]byte
	copy(header[0:8], Magic[:])
	binary.BigEndian.PutUint64(header[8:16], uint64(blocktableStart))
	binary.BigEndian.PutUint32(header[16:20], uint32(len(sorted)))
	// header[20:64] reserved, left zero.
	if _, err := f.Write(header[:]); err != nil {
		return errors.Wrap(err, "writing header")
	}

	if _, err := f.Write(w.data); err != nil {
		return errors.Wrap(err, "writing data area")
	}
	if pad := blocktableStart - (HeaderSize + int64(len(w.data))); pad > 0 {
		if _, err := f.Write(make([]byte, pad)); err != nil {
			return errors.Wrap(err, "padding data area")
		}
	}

	for _, e := range sorted {
		rec := e.marshal()
		if _, err := f.Write(rec[:]); err != nil {
			return errors.Wrapf(err, "writing block table entry for %s", e.Digest)
		}
	}

	return errors.Wrap(f.Sync(), "syncing packfile")
}

var _ hoard.BlockStore = (*Writer)(nil)
