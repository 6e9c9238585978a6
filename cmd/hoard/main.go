// Command hoard is a general purpose CLI interface to Hoard block stores.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/bobg/subcmd"

	"github.com/mccutchen/hoard"
	"github.com/mccutchen/hoard/store"
	_ "github.com/mccutchen/hoard/store/append"
	_ "github.com/mccutchen/hoard/store/cache"
	_ "github.com/mccutchen/hoard/store/logging"
	_ "github.com/mccutchen/hoard/store/mem"
	_ "github.com/mccutchen/hoard/store/packfile"
)

// exit codes.
const (
	exitSuccess  = 0
	exitNotFound = 1
	exitError    = 255
)

type maincmd struct {
	s hoard.BlockStore
}

func main() {
	config := flag.String("config", "hoardconf.json", "path to config file")
	flag.Parse()

	var conf map[string]interface{}
	f, err := os.Open(*config)
	if err != nil {
		log.Printf("opening config file %s: %s", *config, err)
		os.Exit(exitError)
	}
	err = json.NewDecoder(f).Decode(&conf)
	f.Close()
	if err != nil {
		log.Printf("decoding config file %s: %s", *config, err)
		os.Exit(exitError)
	}

	typ, ok := conf["type"].(string)
	if !ok {
		log.Printf("config file %s missing `type` parameter", *config)
		os.Exit(exitError)
	}

	ctx := context.Background()

	s, err := store.Create(ctx, typ, conf)
	if err != nil {
		log.Printf("creating %s-type store: %s", typ, err)
		os.Exit(exitError)
	}
	defer s.Close()

	if err := subcmd.Run(ctx, maincmd{s: s}, flag.Args()); err != nil {
		log.Print(err)
		if errors.Is(err, errDataNotFound) {
			os.Exit(exitNotFound)
		}
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"write":     {F: c.write},
		"writelong": {F: c.writelong},
		"read":      {F: c.read},
		"readlong":  {F: c.readlong},
	}
}
