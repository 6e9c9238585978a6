package packfile

import (
	"context"
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/compress"
)

// cacheSize and cacheMask size the direct-mapped entry cache: 2^16 slots,
// indexed by blocktable index mod 2^16.
const (
	cacheSize = 1 << 16
	cacheMask = cacheSize - 1
)

type cacheSlot struct {
	index int64
	entry Entry
	valid bool
}

// entryCachePool hands out direct-mapped cache arrays for the duration of a
// single lookup. Go has no addressable thread-local storage, so each call
// checks an array out of the pool, uses it exclusively, and returns it when
// done.
var entryCachePool = sync.Pool{
	New: func() interface{} {
		return &[cacheSize]cacheSlot{}
	},
}

// Reader opens a serialized packfile for random-access, concurrency-safe
// reads. All public methods are safe for concurrent use by multiple
// goroutines; the file is accessed purely by positional (pread-style)
// reads, so no shared cursor state is ever mutated.
//
// Grounded on me.lwhitelaw.hoard.PackfileReader.
type Reader struct {
	f               *os.File
	blocktableStart int64
	blocktableLen   int64
	fileSize        int64
}

// Open validates a packfile's header and prepares it for lookups.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hoard.Errorf(hoard.KindNotFound, err, "opening packfile %s", path)
		}
		return nil, hoard.Errorf(hoard.KindIO, err, "opening packfile %s", path)
	}

	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, hoard.Errorf(hoard.KindIO, err, "statting packfile")
	}

	var header [HeaderSize]byte
	if _, err := readFullyAt(f, header[:], 0); err != nil {
		return nil, hoard.Errorf(hoard.KindFormat, err, "reading packfile header")
	}
	if string(header[0:8]) != string(Magic[:]) {
		return nil, hoard.Errorf(hoard.KindFormat, nil, "bad packfile magic")
	}
	blocktableStart := int64(binary.BigEndian.Uint64(header[8:16]))
	blocktableLen := int64(int32(binary.BigEndian.Uint32(header[16:20])))
	if blocktableStart < 0 {
		return nil, hoard.Errorf(hoard.KindFormat, nil, "negative blocktable start %d", blocktableStart)
	}
	if blocktableLen < 0 {
		return nil, hoard.Errorf(hoard.KindFormat, nil, "negative blocktable length %d", blocktableLen)
	}

	return &Reader{
		f:               f,
		blocktableStart: blocktableStart,
		blocktableLen:   blocktableLen,
		fileSize:        info.Size(),
	}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return errors.Wrap(r.f.Close(), "closing packfile")
}

// Len returns the number of entries in the block table.
func (r *Reader) Len() int64 { return r.blocktableLen }

// EntryAt returns the block table entry at index, consulting (and
// populating) the per-call direct-mapped cache.
func (r *Reader) EntryAt(index int64, cache *[cacheSize]cacheSlot) (Entry, error) {
	slot := &cache[index&cacheMask]
	if slot.valid && slot.index == index {
		return slot.entry, nil
	}

	var buf [EntrySize]byte
	pos := r.blocktableStart + index*EntrySize
	if _, err := readFullyAt(r.f, buf[:], pos); err != nil {
		return Entry{}, hoard.Errorf(hoard.KindFormat, err, "reading block table entry %d", index)
	}
	entry, err := unmarshalEntry(buf[:])
	if err != nil {
		return Entry{}, err
	}
	*slot = cacheSlot{index: index, entry: entry, valid: true}
	return entry, nil
}

// Locate performs a classical binary search for ref over the block table,
// returning the entry and true if found.
func (r *Reader) Locate(ref hoard.Ref) (Entry, bool, error) {
	if r.blocktableLen == 0 {
		return Entry{}, false, nil
	}

	cache := entryCachePool.Get().(*[cacheSize]cacheSlot)
	defer func() {
		*cache = [cacheSize]cacheSlot{}
		entryCachePool.Put(cache)
	}()

	low, high := int64(0), r.blocktableLen-1
	for low <= high {
		mid := low + (high-low)/2
		midEntry, err := r.EntryAt(mid, cache)
		if err != nil {
			return Entry{}, false, err
		}
		switch cmp := ref.Compare(midEntry.Digest); {
		case cmp > 0:
			if mid == high {
				return Entry{}, false, nil
			}
			low = mid + 1
		case cmp < 0:
			if mid == low {
				return Entry{}, false, nil
			}
			high = mid - 1
		default:
			return midEntry, true, nil
		}
	}
	return Entry{}, false, nil
}

// payload reads and decodes the payload for entry.
func (r *Reader) payload(entry Entry) ([]byte, error) {
	pos := HeaderSize + entry.PayloadOffset
	if pos+int64(entry.EncodedLength) > r.fileSize {
		return nil, hoard.Errorf(hoard.KindFormat, nil, "payload for %s would exceed file size", entry.Digest)
	}

	encoded := make([]byte, entry.EncodedLength)
	if _, err := readFullyAt(r.f, encoded, pos); err != nil {
		return nil, hoard.Errorf(hoard.KindIO, err, "reading payload for %s", entry.Digest)
	}

	if !entry.isKnownEncoding() {
		return nil, hoard.Errorf(hoard.KindNotDecodable, nil, "unknown encoding for %s", entry.Digest)
	}
	enc := compress.Raw
	if entry.IsZlib() {
		enc = compress.Zlib
	}
	decoded, err := compress.Decode(encoded, enc, int(entry.RawLength))
	if err != nil {
		return nil, hoard.Errorf(hoard.KindNotDecodable, err, "decoding payload for %s", entry.Digest)
	}
	return decoded, nil
}

// Read fetches the block named by ref, implementing hoard.BlockStore.
func (r *Reader) Read(_ context.Context, ref hoard.Ref) ([]byte, error) {
	entry, ok, err := r.Locate(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, hoard.ErrNotFound
	}
	return r.payload(entry)
}

// Write always fails: a Reader is read-only once opened.
func (r *Reader) Write(context.Context, []byte) (hoard.Ref, error) {
	return hoard.Zero, hoard.Errorf(hoard.KindIllegalState, nil, "packfile reader is read-only")
}

// Enumerate calls f for every entry in the block table, in on-disk
// (digest-ascending) order, stopping at the first error f returns.
func (r *Reader) Enumerate(f func(Entry) error) error {
	cache := entryCachePool.Get().(*[cacheSize]cacheSlot)
	defer func() {
		*cache = [cacheSize]cacheSlot{}
		entryCachePool.Put(cache)
	}()

	for i := int64(0); i < r.blocktableLen; i++ {
		entry, err := r.EntryAt(i, cache)
		if err != nil {
			return err
		}
		if err := f(entry); err != nil {
			return err
		}
	}
	return nil
}

func readFullyAt(f *os.File, buf []byte, off int64) (int, error) {
	n, err := f.ReadAt(buf, off)
	if err != nil {
		return n, err
	}
	return n, nil
}

var _ hoard.BlockStore = (*Reader)(nil)
