// Command bloom123 manages Bloom-filter checkpoints kept in blob stores.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/bobg/subcmd"
	"github.com/pkg/errors"

	_ "github.com/DEShawResearch/bloom123/store/bt"
	_ "github.com/DEShawResearch/bloom123/store/file"
	_ "github.com/DEShawResearch/bloom123/store/gcs"
	_ "github.com/DEShawResearch/bloom123/store/logging"
	_ "github.com/DEShawResearch/bloom123/store/lru"
	_ "github.com/DEShawResearch/bloom123/store/mem"
	_ "github.com/DEShawResearch/bloom123/store/pg"
	_ "github.com/DEShawResearch/bloom123/store/replica"
	_ "github.com/DEShawResearch/bloom123/store/sqlite3"
)

type maincmd struct {
	config string
}

func main() {
	config := flag.String("config", "bloomconf.json", "path to store config file")
	flag.Parse()

	if *config == "" {
		log.Fatal("Config value not set")
	}

	ctx := context.Background()

	// The store is built lazily, per subcommand:
	// estimate needs no store at all.
	err := subcmd.Run(ctx, maincmd{config: *config}, flag.Args())
	if err != nil {
		log.Fatal(err)
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"estimate": c.estimate,
		"create":   c.create,
		"add":      c.add,
		"check":    c.check,
		"info":     c.info,
		"get":      c.get,
		"anchors":  c.anchors,
		"refs":     c.refs,
		"sync":     c.sync,
		"gc":       c.gc,
	}
}

var layouts = []string{
	time.RFC3339Nano, time.RFC3339, time.ANSIC, time.UnixDate,
}

func parsetime(s string) (time.Time, error) {
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil { // sic
			return t, nil
		}
	}
	return time.Time{}, errors.New("could not parse time")
}
