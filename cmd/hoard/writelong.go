package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/mccutchen/hoard/stream"
)

// writelong streams an arbitrarily large file (or stdin, given "-") through
// a superblock tree and prints its root digest.
func (c maincmd) writelong(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: writelong <file>")
	}

	in, err := openInput(fs.Arg(0))
	if err != nil {
		return err
	}
	defer in.Close()

	w := stream.NewWriter(c.s)
	buf := make([]byte, 1<<16)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if _, werr := w.Write(ctx, buf[:n]); werr != nil {
				return errors.Wrap(werr, "writing stream")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading input")
		}
	}

	if err := w.Close(ctx); err != nil {
		return errors.Wrap(err, "closing stream")
	}
	root, err := w.Hash()
	if err != nil {
		return errors.Wrap(err, "getting root digest")
	}
	fmt.Println(root)
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return f, nil
}
