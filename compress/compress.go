// Package compress implements Hoard's block payload codec: an order-1
// predictability probe that decides whether compression is worth
// attempting, and a ZLIB encoder/decoder with a guaranteed raw fallback.
//
// Grounded on me.lwhitelaw.hoard.Compression (the probe) and the
// compress/decompress helpers inlined in FileRepository.java; the DEFLATE
// implementation itself is github.com/klauspost/compress/zlib, a
// wire-compatible drop-in for compress/zlib also relied on by the
// cockroachdb-pebble and bureau-foundation-bureau example repos.
package compress

import (
	"bytes"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Threshold is the fraction of order-1-predicted bytes below which input is
// assumed not worth attempting to compress.
const Threshold = 0.20

// Encoding identifies how a block's payload was encoded on disk.
type Encoding int

const (
	// Raw means the payload is stored byte-for-byte.
	Raw Encoding = iota
	// Zlib means the payload was DEFLATE-compressed.
	Zlib
)

// IsLikelyCompressible runs an order-1 context-model probe over data: it
// walks the bytes keeping a 256-entry table of "the byte that last followed
// this byte", scoring a hit each time the table correctly predicts the next
// byte. Data with a hit rate at or above Threshold is worth attempting to
// compress; a false return does not prove data is incompressible, only
// that this cheap heuristic didn't detect an opportunity.
func IsLikelyCompressible(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	var (
		order1  [256]byte
		context byte
		hits    int
	)
	for _, b := range data {
		if order1[context] == b {
			hits++
		}
		order1[context] = b
		context = b
	}
	return float64(hits)/float64(len(data)) >= Threshold
}

// Encode attempts to compress data. It returns the encoded bytes, the
// Encoding actually used, and an error. Encode never fails on ordinary
// input: if the predictability probe says compression is unlikely to help,
// or DEFLATE expands the data, or DEFLATE errors, Encode falls back to
// returning data unchanged with Raw.
func Encode(data []byte) ([]byte, Encoding, error) {
	if !IsLikelyCompressible(data) {
		return data, Raw, nil
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return data, Raw, nil
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return data, Raw, nil
	}
	if err := w.Close(); err != nil {
		return data, Raw, nil
	}

	if buf.Len() >= len(data) {
		// Compression didn't actually shrink it; not worth the decode cost.
		return data, Raw, nil
	}
	return buf.Bytes(), Zlib, nil
}

// Decode reverses Encode given the Encoding it used and the expected
// decoded length (used to size the output buffer; decoded data longer than
// rawLength is an error, since every caller in Hoard knows the exact raw
// length up front from a block-table entry or record header).
func Decode(data []byte, enc Encoding, rawLength int) ([]byte, error) {
	switch enc {
	case Raw:
		return data, nil
	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "opening zlib stream")
		}
		defer r.Close()

		out := make([]byte, 0, rawLength)
		buf := bytes.NewBuffer(out)
		if _, err := buf.ReadFrom(r); err != nil {
			return nil, errors.Wrap(err, "inflating")
		}
		if buf.Len() > rawLength {
			return nil, errors.Errorf("decoded %d bytes, want at most %d", buf.Len(), rawLength)
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.Errorf("unknown encoding %d", enc)
	}
}
