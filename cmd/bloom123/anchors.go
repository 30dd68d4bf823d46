package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/store"
)

func (c maincmd) anchors(ctx context.Context, fs *flag.FlagSet, args []string) error {
	start := fs.String("start", "", "start after this anchor name")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	s, err := c.anchorStore(ctx)
	if err != nil {
		return err
	}

	return s.ListAnchors(ctx, *start, func(name string, ref store.Ref, at time.Time) error {
		fmt.Printf("%s %s %s\n", name, ref, at.UTC().Format(time.RFC3339Nano))
		return nil
	})
}
