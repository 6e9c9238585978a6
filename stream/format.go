// Package stream implements Hoard's superblock tree: a content-defined
// chunked hash tree over an arbitrary byte stream, built on top of any
// hoard.BlockStore.
//
// Writer chunks an incoming byte stream into leaf blocks using chunk.Chunker
// and assembles pointer blocks ("superblocks") above them; Reader performs
// the inverse depth-first traversal to recover the original bytes from a
// root digest.
//
// Grounded on me.lwhitelaw.hoard's stream writer/reader over its packfile
// and append-only stores.
package stream

import (
	"encoding/binary"

	"github.com/mccutchen/hoard"
)

const (
	// maxLeafSize is the largest a single data leaf may grow before it is
	// forced to flush regardless of chunk boundaries.
	maxLeafSize = 65535
	// minLeafSizeForMarker is the smallest a leaf may be when a chunk
	// boundary is honored; shorter leaves keep accumulating even past a
	// marker.
	minLeafSizeForMarker = 4096
	// maxLevels is the number of promotable pointer levels (0..23); level
	// 23 reaching capacity halts the writer.
	maxLevels = 24
	// maxChildren is the widest a single superblock record may be.
	maxChildren = 1024
	// superblockHeaderSize is the size in bytes of a superblock's fixed
	// header, not counting its digest list.
	superblockHeaderSize = 12
)

var superblockMagic = [8]byte{'S', 'U', 'P', 'E', 'R', 'B', 'L', 'K'}

// encodeSuperblock serializes a pointer block: header + count*32 bytes of
// child digests.
func encodeSuperblock(level int, children []hoard.Ref) []byte {
	buf := make([]byte, superblockHeaderSize+len(children)*hoard.RefSize)
	copy(buf[0:8], superblockMagic[:])
	buf[8] = byte(level)
	buf[9] = 0
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(children)))
	for i, ref := range children {
		off := superblockHeaderSize + i*hoard.RefSize
		copy(buf[off:off+hoard.RefSize], ref[:])
	}
	return buf
}

// decodeSuperblock parses a pointer block produced by encodeSuperblock.
func decodeSuperblock(data []byte) (level int, children []hoard.Ref, err error) {
	if len(data) < superblockHeaderSize {
		return 0, nil, hoard.Errorf(hoard.KindFormat, nil, "superblock shorter than header")
	}
	if string(data[0:8]) != string(superblockMagic[:]) {
		return 0, nil, hoard.Errorf(hoard.KindFormat, nil, "missing superblock magic")
	}
	level = int(data[8])
	count := int(binary.BigEndian.Uint16(data[10:12]))
	if count > maxChildren {
		return 0, nil, hoard.Errorf(hoard.KindFormat, nil, "superblock child count %d exceeds maximum %d", count, maxChildren)
	}
	want := superblockHeaderSize + count*hoard.RefSize
	if len(data) < want {
		return 0, nil, hoard.Errorf(hoard.KindFormat, nil, "superblock too short for %d children", count)
	}
	children = make([]hoard.Ref, count)
	for i := 0; i < count; i++ {
		off := superblockHeaderSize + i*hoard.RefSize
		children[i] = hoard.RefFromBytes(data[off : off+hoard.RefSize])
	}
	return level, children, nil
}
