package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/pkg/errors"

	bloom "github.com/DEShawResearch/bloom123"
)

func (c maincmd) create(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		a       = fs.String("anchor", "", "anchor name for the new filter's checkpoint")
		n       = fs.Uint64("n", 0, "expected number of entries")
		p       = fs.Float64("p", 0, "desired false-positive probability")
		maxbits = fs.Uint64("maxbits", 0, "cap on the filter's size in bits")
		dosplit = fs.Bool("split", false, "store the checkpoint as a split tree instead of a single blob")
		atstr   = fs.String("at", "", "timestamp for anchor (default: now)")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *a == "" {
		return errors.New("must supply -anchor")
	}

	var opts []bloom.Option
	if *maxbits > 0 {
		opts = append(opts, bloom.MaxBits(*maxbits))
	}
	f, err := bloom.New(*n, *p, opts...)
	if err != nil {
		return err
	}

	s, err := c.anchorStore(ctx)
	if err != nil {
		return err
	}

	at := time.Now()
	if *atstr != "" {
		at, err = parsetime(*atstr)
		if err != nil {
			return errors.Wrap(err, "parsing -at")
		}
	}

	ref, err := saveFilter(ctx, s, f, *a, at, *dosplit)
	if err != nil {
		return err
	}

	log.Printf("ref %s (%d bits, %d hashes)", ref, f.SizeBits(), f.NumHashes())

	return nil
}
