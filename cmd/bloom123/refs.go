package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/store"
)

func (c maincmd) refs(ctx context.Context, fs *flag.FlagSet, args []string) error {
	start := fs.String("start", "", "start after this ref")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var startRef store.Ref
	if *start != "" {
		startRef, err = store.RefFromHex(*start)
		if err != nil {
			return errors.Wrap(err, "parsing start ref")
		}
	}

	s, err := c.store(ctx)
	if err != nil {
		return err
	}

	return s.ListRefs(ctx, startRef, func(ref store.Ref) error {
		fmt.Printf("%s\n", ref)
		return nil
	})
}
