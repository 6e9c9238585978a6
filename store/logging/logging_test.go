package logging

import (
	"context"
	"testing"

	"github.com/mccutchen/hoard/htest"
	"github.com/mccutchen/hoard/store/mem"
)

func TestStore(t *testing.T) {
	s := New(mem.New())
	htest.ReadWrite(context.Background(), t, s, []byte("logged round trip"))
}

func TestNotFound(t *testing.T) {
	s := New(mem.New())
	htest.NotFound(context.Background(), t, s)
}
