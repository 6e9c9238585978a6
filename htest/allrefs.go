package htest

import (
	"context"
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"

	"github.com/mccutchen/hoard"
)

// Lister is implemented by backends (store/mem, in particular) that can
// enumerate their own contents in digest order.
type Lister interface {
	hoard.BlockStore
	ListRefs(ctx context.Context, start hoard.Ref, f func(hoard.Ref) error) error
}

// block caps testing/quick's generated length so tests run against
// realistic, sub-packfile-sized blocks.
type block []byte

func (block) Generate(r *rand.Rand, size int) reflect.Value {
	n := r.Intn(4096)
	b := make(block, n)
	for i := range b {
		b[i] = byte(r.Intn(256))
	}
	return reflect.ValueOf(b)
}

// AllRefs writes a random set of random blocks to an empty store and
// checks that the right set of digests comes back from ListRefs.
func AllRefs(ctx context.Context, t *testing.T, storeFactory func() Lister) {
	t.Helper()

	f := func(blocks []block) bool {
		s := storeFactory()

		want := make(map[hoard.Ref]bool)
		for _, b := range blocks {
			ref, err := s.Write(ctx, b)
			if err != nil {
				t.Fatal(err)
			}
			want[ref] = true
		}

		var got []hoard.Ref
		err := s.ListRefs(ctx, hoard.Zero, func(r hoard.Ref) error {
			got = append(got, r)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		var wantSlice []hoard.Ref
		for ref := range want {
			wantSlice = append(wantSlice, ref)
		}
		sort.Slice(wantSlice, func(i, j int) bool { return wantSlice[i].Less(wantSlice[j]) })
		sort.Slice(got, func(i, j int) bool { return got[i].Less(got[j]) })

		if diff := cmp.Diff(wantSlice, got); diff != "" {
			t.Logf("mismatch (-want +got):\n%s", diff)
			return false
		}
		return true
	}

	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
