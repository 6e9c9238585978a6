package mem

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/htest"
)

func TestStore(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, 200000)
	rng.Read(data)
	htest.RoundTrip(context.Background(), t, New(), data)
}

func TestReadWrite(t *testing.T) {
	htest.ReadWrite(context.Background(), t, New(), []byte("hello, hoard"))
}

func TestNotFound(t *testing.T) {
	htest.NotFound(context.Background(), t, New())
}

func TestAllRefs(t *testing.T) {
	htest.AllRefs(context.Background(), t, func() htest.Lister { return New() })
}

func TestDedup(t *testing.T) {
	s := New()
	ctx := context.Background()

	r1, err := s.Write(ctx, []byte("dup"))
	if err != nil {
		t.Fatal(err)
	}
	r2, err := s.Write(ctx, []byte("dup"))
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 {
		t.Fatalf("expected equal refs, got %s and %s", r1, r2)
	}

	var n int
	err = s.ListRefs(ctx, hoard.Zero, func(r hoard.Ref) error {
		n++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("got %d refs, want 1", n)
	}
}

func TestWriteThenRead(t *testing.T) {
	s := New()
	ctx := context.Background()
	data := []byte("round trip me")
	ref, err := s.Write(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Read(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}
