package append

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mccutchen/hoard"
)

func TestWriteReadSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repo.bin")
	ctx := context.Background()

	r, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}

	ref1, err := r.Write(ctx, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	ref2, err := r.Write(ctx, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if ref1 != ref2 {
		t.Fatalf("expected dedup, got %s != %s", ref1, ref2)
	}

	got, err := r.Read(ctx, ref1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("got %q, want hello", got)
	}

	if err := r.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReopenAfterSyncPreservesData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repo.bin")
	ctx := context.Background()

	r, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := r.Write(ctx, []byte("persisted"))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	r2, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close()

	got, err := r2.Read(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("persisted")) {
		t.Errorf("got %q, want persisted", got)
	}
}

func TestRecoveryTruncatesUncommittedTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repo.bin")
	ctx := context.Background()

	r, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	committedRef, err := r.Write(ctx, []byte("committed"))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash: write a block but never call Sync, then close the
	// file handle directly (bypassing Repository.Close, which would be
	// unreachable after a real crash).
	uncommittedRef, err := r.Write(ctx, []byte("never synced"))
	if err != nil {
		t.Fatal(err)
	}
	r.f.Close()
	r.flocker.Unlock(path + ".lock")

	sizeBeforeRecovery, err := fileSize(path)
	if err != nil {
		t.Fatal(err)
	}

	r2, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close()

	if _, err := r2.Read(ctx, committedRef); err != nil {
		t.Errorf("committed block should survive recovery: %v", err)
	}
	if _, err := r2.Read(ctx, uncommittedRef); err != hoard.ErrNotFound {
		t.Errorf("uncommitted block should be gone after recovery, got %v", err)
	}

	sizeAfterRecovery, err := fileSize(path)
	if err != nil {
		t.Fatal(err)
	}
	if sizeAfterRecovery >= sizeBeforeRecovery {
		t.Errorf("expected recovery to truncate file: before=%d after=%d", sizeBeforeRecovery, sizeAfterRecovery)
	}
}

func TestReadOnlyOpenNeverTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repo.bin")
	ctx := context.Background()

	r, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Write(ctx, []byte("synced")); err != nil {
		t.Fatal(err)
	}
	if err := r.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Write(ctx, []byte("dangling")); err != nil {
		t.Fatal(err)
	}
	r.f.Close()
	r.flocker.Unlock(path + ".lock")

	sizeBefore, err := fileSize(path)
	if err != nil {
		t.Fatal(err)
	}

	ro, err := Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()

	sizeAfter, err := fileSize(path)
	if err != nil {
		t.Fatal(err)
	}
	if sizeAfter != sizeBefore {
		t.Errorf("read-only open must not truncate: before=%d after=%d", sizeBefore, sizeAfter)
	}

	if _, err := ro.Write(ctx, []byte("nope")); err == nil {
		t.Error("expected write on read-only repository to fail")
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
