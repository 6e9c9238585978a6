package compress

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("a"),
		bytes.Repeat([]byte("abcabcabcabc"), 1000),
		[]byte("Hello, world!"),
	}
	for _, c := range cases {
		encoded, enc, err := Encode(c)
		if err != nil {
			t.Fatalf("Encode(%q): %v", c, err)
		}
		decoded, err := Decode(encoded, enc, len(c))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !bytes.Equal(decoded, c) {
			t.Errorf("round trip mismatch: got %q, want %q", decoded, c)
		}
	}
}

func TestRandomFallsBackToRaw(t *testing.T) {
	data := make([]byte, 16*1024)
	if _, err := rand.Read(data); err != nil {
		t.Fatal(err)
	}
	encoded, enc, err := Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	if enc != Raw {
		t.Errorf("got encoding %v, want Raw", enc)
	}
	if len(encoded) != len(data) {
		t.Errorf("got encoded length %d, want %d", len(encoded), len(data))
	}
}

func TestHighlyRepetitiveCompresses(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 8192)
	encoded, enc, err := Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	if enc != Zlib {
		t.Errorf("got encoding %v, want Zlib", enc)
	}
	if len(encoded) >= len(data) {
		t.Errorf("got encoded length %d, want smaller than %d", len(encoded), len(data))
	}
}

func TestIsLikelyCompressible(t *testing.T) {
	if IsLikelyCompressible(nil) {
		t.Error("empty input should not be compressible")
	}
	repetitive := bytes.Repeat([]byte{0x01}, 100)
	if !IsLikelyCompressible(repetitive) {
		t.Error("highly repetitive input should be compressible")
	}
}
