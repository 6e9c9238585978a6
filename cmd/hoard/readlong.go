package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/stream"
)

// readlong reconstructs a superblock tree by its root digest and writes the
// full reassembled content to stdout, or to a second positional output-file
// argument if given.
func (c maincmd) readlong(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(err, "parsing args")
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return pkgerrors.New("usage: readlong <root-digest> [outfile]")
	}

	root, err := hoard.ParseRef(fs.Arg(0))
	if err != nil {
		return pkgerrors.Wrapf(err, "parsing digest %q", fs.Arg(0))
	}

	r := stream.NewReader(c.s, root)

	if fs.NArg() == 2 {
		out, err := os.Create(fs.Arg(1))
		if err != nil {
			return pkgerrors.Wrapf(err, "creating %s", fs.Arg(1))
		}
		defer out.Close()
		if err := copyStream(ctx, out, r); err != nil {
			return err
		}
		return nil
	}

	return copyStream(ctx, os.Stdout, r)
}

func copyStream(ctx context.Context, w io.Writer, r *stream.Reader) error {
	buf := make([]byte, 1<<16)
	for {
		n, err := r.Read(ctx, buf)
		if err != nil {
			if errors.Is(err, hoard.ErrNotFound) {
				return errDataNotFound
			}
			return pkgerrors.Wrap(err, "reading stream")
		}
		if n == 0 {
			return nil
		}
		if _, werr := w.Write(buf[:n]); werr != nil {
			return pkgerrors.Wrap(werr, "writing output")
		}
	}
}
