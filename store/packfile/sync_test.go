package packfile

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/mccutchen/hoard"
)

func hashOf(s string) hoard.Ref {
	return hoard.Sum([]byte(s))
}

func TestSyncFillsGaps(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	w1 := NewWriter()
	w1.Write(ctx, []byte("common"))
	w1.Write(ctx, []byte("only in one"))
	path1 := filepath.Join(dir, "one.pack")
	if err := w1.Dump(path1); err != nil {
		t.Fatal(err)
	}

	w2 := NewWriter()
	w2.Write(ctx, []byte("common"))
	w2.Write(ctx, []byte("only in two"))
	path2 := filepath.Join(dir, "two.pack")
	if err := w2.Dump(path2); err != nil {
		t.Fatal(err)
	}

	r1, err := Open(path1)
	if err != nil {
		t.Fatal(err)
	}
	defer r1.Close()
	r2, err := Open(path2)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close()

	dest := NewWriter()
	if err := Sync(ctx, []*Reader{r1, r2}, dest); err != nil {
		t.Fatal(err)
	}

	if dest.Len() != 3 {
		t.Fatalf("got %d distinct blocks in dest, want 3", dest.Len())
	}

	destPath := filepath.Join(dir, "dest.pack")
	if err := dest.Dump(destPath); err != nil {
		t.Fatal(err)
	}
	rd, err := Open(destPath)
	if err != nil {
		t.Fatal(err)
	}
	defer rd.Close()

	for _, want := range []string{"common", "only in one", "only in two"} {
		got, err := rd.Read(ctx, hashOf(want))
		if err != nil {
			t.Errorf("reading %q: %v", want, err)
			continue
		}
		if !bytes.Equal(got, []byte(want)) {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestMergeInto(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	w1 := NewWriter()
	w1.Write(ctx, []byte("a"))
	path1 := filepath.Join(dir, "a.pack")
	if err := w1.Dump(path1); err != nil {
		t.Fatal(err)
	}

	w2 := NewWriter()
	w2.Write(ctx, []byte("a"))
	w2.Write(ctx, []byte("b"))
	path2 := filepath.Join(dir, "b.pack")
	if err := w2.Dump(path2); err != nil {
		t.Fatal(err)
	}

	merged := filepath.Join(dir, "merged.pack")
	if err := MergeInto(merged, path1, path2); err != nil {
		t.Fatal(err)
	}

	r, err := Open(merged)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Len() != 2 {
		t.Fatalf("got %d entries, want 2", r.Len())
	}
	for _, want := range []string{"a", "b"} {
		got, err := r.Read(ctx, hashOf(want))
		if err != nil {
			t.Errorf("reading %q: %v", want, err)
			continue
		}
		if string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}
