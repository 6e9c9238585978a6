package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/mccutchen/hoard"
)

// write stores a single block from a file (or stdin, given "-") and prints
// its digest. The input must not exceed hoard.MaxBlockSize; larger input
// is a CLI-level error (exit 255), not something write silently splits —
// that's writelong's job.
func (c maincmd) write(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: write <file>")
	}

	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	if len(data) > hoard.MaxBlockSize {
		return errors.Errorf("input is %d bytes, exceeding the %d-byte single-block maximum", len(data), hoard.MaxBlockSize)
	}

	ref, err := c.s.Write(ctx, data)
	if err != nil {
		return errors.Wrap(err, "writing block")
	}
	fmt.Println(ref)
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return io.ReadAll(f)
}
