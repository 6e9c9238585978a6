// Package hoard implements a content-addressed block store: arbitrary byte
// payloads are persisted under the SHA3-256 digest of their contents and
// retrieved by that digest alone.
//
// The package defines the vocabulary shared by every backend:
// a 32-byte Ref identifying a block, the Block type itself (0 to 65535
// bytes), the BlockStore contract a backend must satisfy, and the error
// taxonomy backends report through.
//
// Two interchangeable backends live under store/: store/packfile builds
// immutable, sorted-index packfiles, and store/append is a single
// append-only file with fsync-marked commit points and crash recovery.
// The stream package layers a content-defined-chunking tree on top of
// either backend so callers can write and read byte streams of unbounded
// length.
package hoard
