package cache

import (
	"context"
	"math/rand"
	"testing"

	"github.com/mccutchen/hoard/htest"
	"github.com/mccutchen/hoard/store/mem"
	"github.com/mccutchen/hoard/store/packfile"
)

func TestStore(t *testing.T) {
	s, err := New(mem.New(), 1000)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(7))
	data := make([]byte, 150000)
	rng.Read(data)
	htest.RoundTrip(context.Background(), t, s, data)
}

func TestReadWrite(t *testing.T) {
	s, err := New(mem.New(), 1000)
	if err != nil {
		t.Fatal(err)
	}
	htest.ReadWrite(context.Background(), t, s, []byte("cached data"))
}

func TestCacheHitAvoidsNestedRead(t *testing.T) {
	// A packfile.Writer accepts writes but never serves reads, so a
	// successful Read below can only have come from the cache.
	nested := packfile.NewWriter()
	s, err := New(nested, 10)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ref, err := s.Write(ctx, []byte("hot"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Read(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hot" {
		t.Fatalf("got %q, want hot", got)
	}
}
