// Package packfile implements Hoard's packfile format: an immutable file
// bundling deduplicated blocks behind a sorted, binary-searchable index.
//
// Writer accumulates blocks in memory and Dump serializes them; Reader
// opens a serialized packfile for concurrent random-access lookup;
// Collection unions many open Readers behind a single first-hit lookup.
//
// Grounded on me.lwhitelaw.hoard.{Format,PackfileEntry,PackfileWriter,
// PackfileReader,PackfileCollection}, adapted to a fixed 64-byte v1
// header (earlier sources also describe a superseded 12-byte prototype
// header, not used here). Pluggable backend construction goes through
// store.Register/store.Create.
package packfile

import "github.com/mccutchen/hoard"

const (
	// HeaderSize is the size in bytes of the packfile header.
	HeaderSize = 64
	// EntrySize is the size in bytes of one block table entry.
	EntrySize = 64
	// dataAreaAlignment is the byte boundary the data area is padded to
	// before the block table begins.
	dataAreaAlignment = 64
)

// Magic is the 8-byte value that must open every packfile.
var Magic = [8]byte{'H', 'o', 'a', 'r', 'd', ' ', 'v', '1'}

// Encoding tag values, each stored as 8 big-endian bytes in a block table
// entry.
var (
	rawEncodingTag  = [8]byte{}
	zlibEncodingTag = [8]byte{0x00, 0x00, 0x00, 0x00, 'Z', 'L', 'I', 'B'}
)

// Entry is one 64-byte block table record.
type Entry struct {
	Digest        hoard.Ref
	RawLength     int32
	EncodedLength int32
	PayloadOffset int64
	encodingRaw   [8]byte
}

// IsZlib reports whether the entry's payload is ZLIB-encoded; otherwise it
// is raw.
func (e Entry) IsZlib() bool {
	return e.encodingRaw == zlibEncodingTag
}

// isKnownEncoding reports whether the entry's encoding tag is one this
// implementation understands. An entry with an unrecognized tag does not
// make the packfile fail to open; Reader.Read reports a KindNotDecodable
// error for that entry alone.
func (e Entry) isKnownEncoding() bool {
	return e.encodingRaw == rawEncodingTag || e.encodingRaw == zlibEncodingTag
}

// roundUp64 rounds n up to the next multiple of 64.
func roundUp64(n int64) int64 {
	return (n + 63) &^ 63
}
