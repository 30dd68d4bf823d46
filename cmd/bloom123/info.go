package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

func (c maincmd) info(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		a       = fs.String("anchor", "", "anchor name of the filter checkpoint")
		dosplit = fs.Bool("split", false, "checkpoint is stored as a split tree instead of a single blob")
		atstr   = fs.String("at", "", "timestamp for anchor (default: now)")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *a == "" {
		return errors.New("must supply -anchor")
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

	f, ref, err := restoreFilter(ctx, s, *a, at, *dosplit)
	if err != nil {
		return err
	}

	fmt.Printf("ref %s\n", ref)
	fmt.Printf("bits %d (%d bytes)\n", f.SizeBits(), f.SizeBytes())
	fmt.Printf("hashes %d\n", f.NumHashes())
	fmt.Printf("entries %d\n", f.NumEntries())
	fmt.Printf("popcount %d\n", f.Popcount())
	fmt.Printf("false-positive probability %g\n", f.FalseProb())

	return nil
}
