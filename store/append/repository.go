package append

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/bobg/flock"
	"github.com/pkg/errors"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/compress"
	"github.com/mccutchen/hoard/internal/triedex"
	"github.com/mccutchen/hoard/store"
)

// Repository is an append-only, crash-recoverable block store: a single
// growable file of BLOCKHDR records, periodically terminated by FSYNCEND
// commit markers. A single mutex serializes every public operation;
// there is no parallelism within one Repository instance.
type Repository struct {
	mu sync.Mutex

	path     string
	f        *os.File
	writable bool
	flocker  flock.Locker

	index            *triedex.Trie[indexEntry]
	lastCommitOffset int64
	closed           bool
}

// Open opens the append-only repository at path. In writable mode the file
// is created if missing, an exclusive cross-process lock is taken via
// github.com/bobg/flock, and any uncommitted tail left by a prior crash is
// truncated away. In read-only mode the file must already exist and is
// never modified, even if its tail holds uncommitted records.
func Open(path string, writable bool) (*Repository, error) {
	var flocker flock.Locker

	if writable {
		if err := flocker.Lock(path + ".lock"); err != nil {
			return nil, errors.Wrapf(err, "locking %s", path)
		}
	}

	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if writable {
			flocker.Unlock(path + ".lock")
		}
		return nil, hoard.Errorf(hoard.KindIO, err, "opening repository %s", path)
	}

	idx, lastCommit, err := scanAndRecover(f)
	if err != nil {
		f.Close()
		if writable {
			flocker.Unlock(path + ".lock")
		}
		return nil, err
	}

	if writable {
		if err := f.Truncate(lastCommit); err != nil {
			f.Close()
			flocker.Unlock(path + ".lock")
			return nil, hoard.Errorf(hoard.KindIO, err, "truncating repository %s to last commit", path)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			flocker.Unlock(path + ".lock")
			return nil, hoard.Errorf(hoard.KindIO, err, "syncing repository %s after recovery truncate", path)
		}
	}

	return &Repository{
		path:             path,
		f:                f,
		writable:         writable,
		flocker:          flocker,
		index:            idx,
		lastCommitOffset: lastCommit,
	}, nil
}

// scanAndRecover walks f from offset 0, building an index of committed
// blocks and reporting the file offset just past the last FSYNCEND marker
// seen (0 if there is none).
// It never modifies f; callers in writable mode truncate afterward.
func scanAndRecover(f *os.File) (*triedex.Trie[indexEntry], int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, hoard.Errorf(hoard.KindIO, err, "seeking to end of repository")
	}

	idx := &triedex.Trie[indexEntry]{}

	type pending struct {
		ref   hoard.Ref
		entry indexEntry
	}
	var pendingList []pending

	var pos, lastCommit int64
	for {
		if pos+8 > size {
			break
		}
		var magic [8]byte
		if _, err := f.ReadAt(magic[:], pos); err != nil {
			return nil, 0, hoard.Errorf(hoard.KindIO, err, "reading record magic at %d", pos)
		}

		switch magic {
		case commitMagic:
			for _, p := range pendingList {
				idx.Put(p.ref[:], p.entry)
			}
			pendingList = pendingList[:0]
			pos += CommitRecordSize
			lastCommit = pos

		case blockMagic:
			if pos+BlockHeaderSize > size {
				goto stopScan
			}
			var header [BlockHeaderSize]byte
			if _, err := f.ReadAt(header[:], pos); err != nil {
				return nil, 0, hoard.Errorf(hoard.KindIO, err, "reading block header at %d", pos)
			}

			var digest hoard.Ref
			copy(digest[:], header[8:40])
			var encoding [4]byte
			copy(encoding[:], header[40:44])
			rawLength := binary.BigEndian.Uint16(header[44:46])
			encodedLength := binary.BigEndian.Uint16(header[46:48])

			if rawLength < encodedLength {
				goto stopScan
			}

			payloadStart := pos + BlockHeaderSize
			if payloadStart+int64(encodedLength) > size {
				goto stopScan
			}

			if isKnownEncoding(encoding) {
				pendingList = append(pendingList, pending{
					ref: digest,
					entry: indexEntry{
						payloadOffset: payloadStart,
						rawLength:     rawLength,
						encodedLength: encodedLength,
						encoding:      encoding,
					},
				})
			}

			pos = payloadStart + int64(encodedLength)

		default:
			goto stopScan
		}
	}
stopScan:

	return idx, lastCommit, nil
}

// Write stores data if it is not already present, returning its digest.
// On an I/O failure mid-write the Repository is closed and considered
// indeterminate: the caller must reopen (and let recovery run) before
// trusting its contents again.
func (r *Repository) Write(_ context.Context, data []byte) (hoard.Ref, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return hoard.Zero, hoard.Errorf(hoard.KindIllegalState, nil, "repository is closed")
	}
	if !r.writable {
		return hoard.Zero, hoard.Errorf(hoard.KindIllegalState, nil, "repository is read-only")
	}
	if len(data) > hoard.MaxBlockSize {
		return hoard.Zero, hoard.Errorf(hoard.KindIllegalState, nil, "block of %d bytes exceeds maximum of %d", len(data), hoard.MaxBlockSize)
	}

	ref := hoard.Sum(data)
	if _, ok := r.index.Get(ref[:]); ok {
		return ref, nil
	}

	encoded, enc, err := compress.Encode(data)
	if err != nil {
		return hoard.Zero, errors.Wrap(err, "encoding block")
	}
	encoding := rawEncoding
	if enc == compress.Zlib {
		encoding = zlibEncoding
	}

	pos, err := r.f.Seek(0, io.SeekEnd)
	if err != nil {
		r.forceClose()
		return hoard.Zero, hoard.Errorf(hoard.KindIO, err, "seeking to end of repository")
	}

	var header [BlockHeaderSize]byte
	copy(header[0:8], blockMagic[:])
	copy(header[8:40], ref[:])
	copy(header[40:44], encoding[:])
	binary.BigEndian.PutUint16(header[44:46], uint16(len(data)))
	binary.BigEndian.PutUint16(header[46:48], uint16(len(encoded)))

	if err := writeFully(r.f, header[:]); err != nil {
		r.forceClose()
		return hoard.Zero, hoard.Errorf(hoard.KindIO, err, "writing block header; repository is indeterminate")
	}
	if err := writeFully(r.f, encoded); err != nil {
		r.forceClose()
		return hoard.Zero, hoard.Errorf(hoard.KindIO, err, "writing block payload; repository is indeterminate")
	}

	r.index.Put(ref[:], indexEntry{
		payloadOffset: pos + BlockHeaderSize,
		rawLength:     uint16(len(data)),
		encodedLength: uint16(len(encoded)),
		encoding:      encoding,
	})

	return ref, nil
}

// Sync appends an FSYNCEND marker (unless the file is already positioned
// at the last commit) and forces durability, advancing the repository's
// commit point to the new end of file.
func (r *Repository) Sync(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return hoard.Errorf(hoard.KindIllegalState, nil, "repository is closed")
	}
	if !r.writable {
		return hoard.Errorf(hoard.KindIllegalState, nil, "repository is read-only")
	}

	pos, err := r.f.Seek(0, io.SeekEnd)
	if err != nil {
		r.forceClose()
		return hoard.Errorf(hoard.KindIO, err, "seeking to end of repository")
	}
	if pos == r.lastCommitOffset {
		return nil
	}

	if err := writeFully(r.f, commitMagic[:]); err != nil {
		r.forceClose()
		return hoard.Errorf(hoard.KindIO, err, "writing commit marker; repository is indeterminate")
	}
	if err := r.f.Sync(); err != nil {
		r.forceClose()
		return hoard.Errorf(hoard.KindIO, err, "syncing repository")
	}

	r.lastCommitOffset = pos + CommitRecordSize
	return nil
}

// Read fetches the block named by ref. An unknown or malformed encoding on
// an otherwise-indexed block is a recoverable failure: the repository
// stays open and usable for other operations.
func (r *Repository) Read(_ context.Context, ref hoard.Ref) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, hoard.Errorf(hoard.KindIllegalState, nil, "repository is closed")
	}

	entry, ok := r.index.Get(ref[:])
	if !ok {
		return nil, hoard.ErrNotFound
	}

	encoded := make([]byte, entry.encodedLength)
	if _, err := r.f.ReadAt(encoded, entry.payloadOffset); err != nil {
		return nil, hoard.Errorf(hoard.KindIO, err, "reading payload for %s", ref)
	}

	if !isKnownEncoding(entry.encoding) {
		return nil, hoard.Errorf(hoard.KindNotDecodable, nil, "unknown encoding for %s", ref)
	}
	enc := compress.Raw
	if isZlibEncoding(entry.encoding) {
		enc = compress.Zlib
	}
	data, err := compress.Decode(encoded, enc, int(entry.rawLength))
	if err != nil {
		return nil, hoard.Errorf(hoard.KindNotDecodable, err, "decoding payload for %s", ref)
	}
	return data, nil
}

// Close releases the underlying file handle and, in writable mode, the
// cross-process lock taken by Open.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Repository) closeLocked() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.f.Close()
	if r.writable {
		if unlockErr := r.flocker.Unlock(r.path + ".lock"); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return errors.Wrap(err, "closing repository")
}

// forceClose is called on any write-path I/O failure: the repository
// becomes unusable and must be reopened (letting recovery run again)
// before further operations are trusted. The caller already holds r.mu.
func (r *Repository) forceClose() {
	r.closeLocked()
}

func writeFully(f *os.File, buf []byte) error {
	for len(buf) > 0 {
		n, err := f.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

var _ hoard.BlockStore = (*Repository)(nil)

func init() {
	store.Register("append", func(_ context.Context, conf map[string]interface{}) (hoard.BlockStore, error) {
		path, ok := conf["path"].(string)
		if !ok {
			return nil, errors.New(`missing "path" parameter`)
		}
		writable, _ := conf["writable"].(bool)
		return Open(path, writable)
	})
}
