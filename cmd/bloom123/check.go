package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

func (c maincmd) check(ctx context.Context, fs *flag.FlagSet, args []string) error {
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

	f, _, err := restoreFilter(ctx, s, *a, at, *dosplit)
	if err != nil {
		return err
	}

	keys, err := keysFrom(fs.Args())
	if err != nil {
		return err
	}

	// "maybe", never "present": the filter can say a key was certainly
	// never added, but a positive answer may be a false positive.
	for _, key := range keys {
		got, err := f.CheckString(key)
		if err != nil {
			return errors.Wrapf(err, "checking %q", key)
		}
		if got {
			fmt.Printf("maybe %s\n", key)
		} else {
			fmt.Printf("absent %s\n", key)
		}
	}

	return nil
}
