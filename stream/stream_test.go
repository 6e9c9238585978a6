package stream

import (
	"bytes"
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/mccutchen/hoard/store/packfile"
)

// reopen dumps w to a fresh packfile and opens it for reading: a
// packfile.Writer serves no reads until it has been dumped.
func reopen(t *testing.T, w *packfile.Writer) *packfile.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.pack")
	if err := w.Dump(path); err != nil {
		t.Fatal(err)
	}
	r, err := packfile.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRoundTripSmall(t *testing.T) {
	ctx := context.Background()
	store := packfile.NewWriter()

	w := NewWriter(store)
	input := []byte("the quick brown fox jumps over the lazy dog")
	if _, err := w.Write(ctx, input); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}
	root, err := w.Hash()
	if err != nil {
		t.Fatal(err)
	}

	r := NewReader(reopen(t, store), root)
	got, err := r.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestRoundTripEmpty(t *testing.T) {
	ctx := context.Background()
	store := packfile.NewWriter()

	w := NewWriter(store)
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}
	root, err := w.Hash()
	if err != nil {
		t.Fatal(err)
	}

	r := NewReader(reopen(t, store), root)
	got, err := r.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d bytes, want 0", len(got))
	}
}

func TestRoundTripMultiLeaf(t *testing.T) {
	ctx := context.Background()
	store := packfile.NewWriter()

	rng := rand.New(rand.NewSource(1))
	input := make([]byte, 300000)
	rng.Read(input)

	w := NewWriter(store)
	// Feed the writer in small chunks to exercise the Write(ctx, p) loop
	// across many internal writeByte calls and several leaf flushes.
	for i := 0; i < len(input); i += 777 {
		end := i + 777
		if end > len(input) {
			end = len(input)
		}
		if _, err := w.Write(ctx, input[i:end]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}
	root, err := w.Hash()
	if err != nil {
		t.Fatal(err)
	}

	r := NewReader(reopen(t, store), root)
	got, err := r.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(input))
	}
}

func TestRoundTripManyLeaves(t *testing.T) {
	ctx := context.Background()
	store := packfile.NewWriter()

	// A leaf is at least 4096 bytes and then waits ~4096 more bytes on
	// average for a chunk boundary, so leaves average roughly 8 KiB and
	// 12 MiB of random input produces around 1500 leaves, more than 1024:
	// level 0 promotes into level 1 at least once,
	// leaving a nonempty level 0 behind it at Close. This exercises the
	// total-block-count check in consolidate rather than just the count at
	// the highest nonempty level.
	rng := rand.New(rand.NewSource(2))
	input := make([]byte, 12<<20)
	rng.Read(input)

	w := NewWriter(store)
	const chunkSize = 65536
	for i := 0; i < len(input); i += chunkSize {
		end := i + chunkSize
		if end > len(input) {
			end = len(input)
		}
		if _, err := w.Write(ctx, input[i:end]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}
	root, err := w.Hash()
	if err != nil {
		t.Fatal(err)
	}

	r := NewReader(reopen(t, store), root)
	got, err := r.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(input))
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	ctx := context.Background()
	store := packfile.NewWriter()
	w := NewWriter(store)
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(ctx, []byte("x")); err == nil {
		t.Error("expected write after close to fail")
	}
}

func TestHashBeforeCloseFails(t *testing.T) {
	store := packfile.NewWriter()
	w := NewWriter(store)
	if _, err := w.Hash(); err == nil {
		t.Error("expected Hash before Close to fail")
	}
}
