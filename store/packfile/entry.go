package packfile

import (
	"encoding/binary"

	"github.com/mccutchen/hoard"
)

// marshal encodes e into a 64-byte block table record.
func (e Entry) marshal() [EntrySize]byte {
	var buf [EntrySize]byte
	copy(buf[0:32], e.Digest[:])
	copy(buf[32:40], e.encodingRaw[:])
	binary.BigEndian.PutUint32(buf[40:44], uint32(e.RawLength))
	binary.BigEndian.PutUint32(buf[44:48], uint32(e.EncodedLength))
	binary.BigEndian.PutUint64(buf[48:56], uint64(e.PayloadOffset))
	// buf[56:64] reserved, left zero.
	return buf
}

// unmarshalEntry decodes a 64-byte block table record. It validates
// length/offset invariants but does not reject unknown encoding tags —
// Reader.Read reports those as KindNotDecodable when the payload is read.
func unmarshalEntry(buf []byte) (Entry, error) {
	if len(buf) != EntrySize {
		return Entry{}, hoard.Errorf(hoard.KindFormat, nil, "block table entry has wrong length %d", len(buf))
	}
	var e Entry
	copy(e.Digest[:], buf[0:32])
	copy(e.encodingRaw[:], buf[32:40])
	e.RawLength = int32(binary.BigEndian.Uint32(buf[40:44]))
	e.EncodedLength = int32(binary.BigEndian.Uint32(buf[44:48]))
	e.PayloadOffset = int64(binary.BigEndian.Uint64(buf[48:56]))

	if e.EncodedLength > e.RawLength {
		return Entry{}, hoard.Errorf(hoard.KindFormat, nil, "entry %s: encoded length %d exceeds raw length %d", e.Digest, e.EncodedLength, e.RawLength)
	}
	if e.PayloadOffset < 0 {
		return Entry{}, hoard.Errorf(hoard.KindFormat, nil, "entry %s: negative payload offset %d", e.Digest, e.PayloadOffset)
	}
	return e, nil
}
