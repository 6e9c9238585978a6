package packfile

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

// MergeInto merges the packfiles named by srcs into a single new packfile
// at dest, deduplicating blocks that appear in more than one source. If any
// source fails to open or read, the merge stops before dest is created. If
// writing dest fails, the partially written dest file is removed; a dest
// that already existed is left untouched.
//
// Grounded on me.lwhitelaw.hoard.util.Packfiles.mergePackfiles.
func MergeInto(dest string, srcs ...string) error {
	w := NewWriter()
	ctx := context.Background()

	readers := make([]*Reader, 0, len(srcs))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	for _, src := range srcs {
		r, err := Open(src)
		if err != nil {
			return errors.Wrapf(err, "opening source packfile %s", src)
		}
		readers = append(readers, r)

		err = r.Enumerate(func(e Entry) error {
			data, err := r.Read(ctx, e.Digest)
			if err != nil {
				return errors.Wrapf(err, "reading block %s from %s", e.Digest, src)
			}
			_, err = w.Write(ctx, data)
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "merging %s", src)
		}
	}

	if err := w.Dump(dest); err != nil {
		if !errors.Is(err, os.ErrExist) {
			os.Remove(dest)
		}
		return errors.Wrapf(err, "writing merged packfile %s", dest)
	}
	return nil
}
