package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

func (c maincmd) sync(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() == 0 {
		return errors.New("must supply at least one other store config file")
	}

	s, err := c.store(ctx)
	if err != nil {
		return err
	}

	stores := []store.Store{s}
	for _, arg := range fs.Args() {
		other, err := storeFromConfig(ctx, arg)
		if err != nil {
			return errors.Wrapf(err, "reading %s", arg)
		}
		stores = append(stores, other)
	}

	if err = store.Sync(ctx, stores); err != nil {
		return errors.Wrap(err, "syncing blobs")
	}

	// Anchors reconcile across the stores that support them.
	var astores []anchor.Store
	for _, s := range stores {
		if as, ok := s.(anchor.Store); ok {
			astores = append(astores, as)
		}
	}
	return errors.Wrap(anchor.Sync(ctx, astores), "syncing anchors")
}
