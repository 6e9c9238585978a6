package packfile

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mccutchen/hoard"
)

// Sync reads every entry out of each of sources, in sorted (digest-
// ascending) order, and writes to dest any block not already present there
// under that digest. Sources are read concurrently and merged in digest
// order so that a block common to many sources is fetched once and written
// to dest exactly once.
//
// Grounded on github.com/bobg/bs's store.Sync, adapted from a multi-store
// ListRefs/Put reconciliation (every store can both read and write) to a
// multi-Reader/single-Writer fan-in (packfiles are immutable once dumped,
// so only dest ever receives writes).
func Sync(ctx context.Context, sources []*Reader, dest hoard.BlockStore) error {
	if len(sources) == 0 {
		return nil
	}

	type tuple struct {
		src   *Reader
		ch    <-chan Entry
		entry *Entry
		done  bool
	}

	eg, ctx2 := errgroup.WithContext(ctx)

	tuples := make([]*tuple, 0, len(sources))
	for _, src := range sources {
		src := src
		ch := make(chan Entry)
		eg.Go(func() error {
			defer close(ch)
			return src.Enumerate(func(e Entry) error {
				select {
				case <-ctx2.Done():
					return ctx2.Err()
				case ch <- e:
				}
				return nil
			})
		})
		tuples = append(tuples, &tuple{src: src, ch: ch})
	}

	egErr := make(chan error, 1)
	go func() { egErr <- eg.Wait() }()

	seen := make(map[hoard.Ref]bool)

	for {
		for _, tup := range tuples {
			if tup.entry != nil || tup.done {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case e, ok := <-tup.ch:
				if ok {
					e := e
					tup.entry = &e
				} else {
					tup.done = true
				}
			}
		}

		var pending []*tuple
		for _, tup := range tuples {
			if tup.entry != nil {
				pending = append(pending, tup)
			}
		}
		if len(pending) == 0 {
			break
		}

		sort.Slice(pending, func(i, j int) bool {
			return pending[i].entry.Digest.Less(pending[j].entry.Digest)
		})

		ref := pending[0].entry.Digest
		if !seen[ref] {
			seen[ref] = true
			data, err := pending[0].src.Read(ctx, ref)
			if err != nil {
				return errors.Wrapf(err, "fetching block for %s during sync", ref)
			}
			if _, err := dest.Write(ctx, data); err != nil {
				return errors.Wrapf(err, "writing block %s during sync", ref)
			}
		}

		for _, tup := range pending {
			if tup.entry.Digest == ref {
				tup.entry = nil
			}
		}
	}

	if err := <-egErr; err != nil {
		return err
	}
	return nil
}
