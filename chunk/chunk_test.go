package chunk

import (
	"math/rand"
	"testing"
)

func TestMarkerDependsOnlyOnRecentWindow(t *testing.T) {
	const bufferPOT = 6 // 64-byte window, small enough to exercise cheaply
	const modulusPOT = 4

	rng := rand.New(rand.NewSource(1))
	prefixA := make([]byte, 1000)
	prefixB := make([]byte, 2000)
	rng.Read(prefixA)
	rng.Read(prefixB)

	window := make([]byte, 1<<bufferPOT)
	rng.Read(window)

	a := New(bufferPOT, modulusPOT)
	for _, b := range prefixA {
		a.Update(b)
	}
	for _, b := range window {
		a.Update(b)
	}

	b := New(bufferPOT, modulusPOT)
	for _, x := range prefixB {
		b.Update(x)
	}
	for _, x := range window {
		b.Update(x)
	}

	if a.IsMarker() != b.IsMarker() {
		t.Errorf("marker decision differed despite identical trailing window: a=%v b=%v", a.IsMarker(), b.IsMarker())
	}
}

func TestResetZeroesState(t *testing.T) {
	c := New(10, 12)
	for i := 0; i < 5000; i++ {
		c.Update(byte(i))
	}
	c.Reset()
	fresh := New(10, 12)
	if c.IsMarker() != fresh.IsMarker() {
		t.Error("reset chunker should match a freshly constructed one")
	}
}

func TestAveragesNear4KiB(t *testing.T) {
	c := New(10, 12)
	rng := rand.New(rand.NewSource(2))
	const total = 1 << 20
	var (
		boundaries int
		sinceLast  int
	)
	buf := make([]byte, total)
	rng.Read(buf)
	for _, b := range buf {
		c.Update(b)
		sinceLast++
		if sinceLast >= 64 && c.IsMarker() {
			boundaries++
			sinceLast = 0
		}
	}
	if boundaries == 0 {
		t.Fatal("expected at least one boundary over 1 MiB of random data")
	}
	mean := total / boundaries
	if mean < 1024 || mean > 32*1024 {
		t.Errorf("mean chunk size %d far from the expected ~4KiB order of magnitude", mean)
	}
}
