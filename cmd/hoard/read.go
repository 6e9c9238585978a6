package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"

	"github.com/mccutchen/hoard"
)

// errDataNotFound is returned by read and readlong when the requested
// digest is absent from the store. main maps it to exitNotFound rather
// than exitError.
var errDataNotFound = errors.New("data not found")

// read fetches a single block by its hex digest and writes it to stdout,
// or to a second positional output-file argument if given.
func (c maincmd) read(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return pkgerrors.Wrap(err, "parsing args")
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return pkgerrors.New("usage: read <digest> [outfile]")
	}

	ref, err := hoard.ParseRef(fs.Arg(0))
	if err != nil {
		return pkgerrors.Wrapf(err, "parsing digest %q", fs.Arg(0))
	}

	data, err := c.s.Read(ctx, ref)
	if err != nil {
		if errors.Is(err, hoard.ErrNotFound) {
			return errDataNotFound
		}
		return pkgerrors.Wrapf(err, "reading %s", ref)
	}

	return writeOutput(fs, data)
}

func writeOutput(fs *flag.FlagSet, data []byte) error {
	if fs.NArg() == 2 {
		return pkgerrors.Wrap(os.WriteFile(fs.Arg(1), data, 0644), "writing output file")
	}
	_, err := io.Copy(os.Stdout, bytes.NewReader(data))
	return pkgerrors.Wrap(err, "writing to stdout")
}
