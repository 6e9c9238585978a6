// Package chunk implements a content-defined split-point detector: a
// rolling sum over the last 2^BufferPOT bytes that declares a boundary
// whenever the sum's low ModulusPOT bits are zero.
//
// Grounded on me.lwhitelaw.hoard.util.Chunker. github.com/bobg/hashsplit
// covers similar ground but its rolling checksum is a different algorithm
// with different boundary statistics, so the ring-buffer/running-sum
// algorithm here is reimplemented bit-for-bit rather than delegated: a
// boundary decision depends only on the last 2^BufferPOT bytes.
package chunk

// Chunker detects content-defined chunk boundaries over a byte stream.
type Chunker struct {
	ring    []byte
	bufMask int
	index   int
	sum     int
	mod     int
}

// New constructs a Chunker with a ring buffer of 2^bufferPOT bytes and a
// chunk modulus of 2^modulusPOT. The reference parameters (10, 12) give a
// 1024-byte buffer and chunks averaging 4 KiB.
func New(bufferPOT, modulusPOT uint) *Chunker {
	if bufferPOT < 1 || bufferPOT > 31 {
		panic("chunk: bad buffer size exponent")
	}
	if modulusPOT < 1 || modulusPOT > 31 {
		panic("chunk: bad chunk modulus exponent")
	}
	size := 1 << bufferPOT
	return &Chunker{
		ring:    make([]byte, size),
		bufMask: size - 1,
		mod:     (1 << modulusPOT) - 1,
	}
}

// Reset zeroes the ring buffer and running sum, as if newly constructed.
func (c *Chunker) Reset() {
	for i := range c.ring {
		c.ring[i] = 0
	}
	c.sum = 0
	c.index = 0
}

// Update folds byte b into the rolling sum, evicting the byte that is
// 2^bufferPOT positions behind it.
func (c *Chunker) Update(b byte) {
	evicted := c.ring[c.index]
	c.sum += int(b) - int(evicted)
	c.ring[c.index] = b
	c.index = (c.index + 1) & c.bufMask
}

// IsMarker reports whether the current rolling sum designates a chunk
// boundary: its low ModulusPOT bits, taken from the non-negative
// representation of the sum, are all zero.
func (c *Chunker) IsMarker() bool {
	return (c.sum & 0x7FFFFFFF & c.mod) == 0
}
