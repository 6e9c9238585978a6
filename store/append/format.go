// Package append implements Hoard's append-only repository format: a
// single growable file holding BLOCKHDR-prefixed block records terminated
// by FSYNCEND commit markers, with crash recovery by scan-and-truncate.
//
// Grounded on me.lwhitelaw.hoard's append-only store (the alternative to
// packfile.Writer/Reader when random appends and fsync durability, rather
// than immutable bulk dumps, are wanted). internal/triedex supplies the
// in-memory digest index; github.com/bobg/flock guards writable opens
// against other processes.
package append

const (
	// BlockHeaderSize is the size in bytes of a BLOCKHDR record's fixed
	// header, not counting its payload.
	BlockHeaderSize = 48
	// CommitRecordSize is the size in bytes of an FSYNCEND commit marker.
	CommitRecordSize = 8
)

// Magic values for the two record kinds an append-only repository file is
// built from.
var (
	blockMagic  = [8]byte{'B', 'L', 'O', 'C', 'K', 'H', 'D', 'R'}
	commitMagic = [8]byte{'F', 'S', 'Y', 'N', 'C', 'E', 'N', 'D'}
)

// Encoding tag values, stored as 4 big-endian bytes in a block header.
var (
	rawEncoding  = [4]byte{0x00, 0x00, 0x00, 0x00}
	zlibEncoding = [4]byte{0x5A, 0x4C, 0x49, 0x42}
)

func isKnownEncoding(tag [4]byte) bool {
	return tag == rawEncoding || tag == zlibEncoding
}

func isZlibEncoding(tag [4]byte) bool {
	return tag == zlibEncoding
}

// indexEntry is the value a Repository's in-memory index maps a digest to:
// enough to seek directly to and decode a block's payload.
type indexEntry struct {
	payloadOffset int64
	rawLength     uint16
	encodedLength uint16
	encoding      [4]byte
}
