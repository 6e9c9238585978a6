// Package htest provides reusable hoard.BlockStore and stream conformance
// tests, for use from each backend's own _test.go files.
package htest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/stream"
)

// ReadWrite writes data directly to store and reads it back, checking for
// an exact match. data must not exceed hoard.MaxBlockSize; use RoundTrip
// for larger payloads, which goes through the stream package.
func ReadWrite(ctx context.Context, t *testing.T, store hoard.BlockStore, data []byte) {
	t.Helper()

	ref, err := store.Write(ctx, data)
	if err != nil {
		t.Fatal(err)
	}

	ref2, err := store.Write(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if ref != ref2 {
		t.Errorf("writing the same data twice produced different refs: %s and %s", ref, ref2)
	}

	got, err := store.Read(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %d bytes, want %d bytes; content mismatch", len(got), len(data))
	}
}

// RoundTrip writes data to store through a stream.Writer and reads it back
// through a stream.Reader, checking for an exact match. Unlike ReadWrite,
// data may be arbitrarily large.
func RoundTrip(ctx context.Context, t *testing.T, store hoard.BlockStore, data []byte) {
	t.Helper()

	t1 := time.Now()
	w := stream.NewWriter(store)
	if _, err := w.Write(ctx, data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}
	root, err := w.Hash()
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("wrote %d bytes in %s", len(data), time.Since(t1))

	t2 := time.Now()
	r := stream.NewReader(store, root)
	got, err := r.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("read %d bytes in %s", len(got), time.Since(t2))

	if !bytes.Equal(got, data) {
		t.Fatalf("got %d bytes, want %d bytes; content mismatch", len(got), len(data))
	}
}

// NotFound checks that reading a digest never written to store reports
// hoard.ErrNotFound.
func NotFound(ctx context.Context, t *testing.T, store hoard.BlockStore) {
	t.Helper()

	_, err := store.Read(ctx, hoard.Sum([]byte("htest sentinel that was never written")))
	if err != hoard.ErrNotFound {
		t.Errorf("got %v, want hoard.ErrNotFound", err)
	}
}
