package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/pkg/errors"

	bloom "github.com/DEShawResearch/bloom123"
	"github.com/DEShawResearch/bloom123/bits"
	"github.com/DEShawResearch/bloom123/store"
)

func (c maincmd) add(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		a       = fs.String("anchor", "", "anchor name of the filter checkpoint")
		rebuild = fs.Bool("rebuild", false, "replace a missing or unrestorable checkpoint with a fresh filter (requires -n and -p)")
		n       = fs.Uint64("n", 0, "expected number of entries, for -rebuild")
		p       = fs.Float64("p", 0, "desired false-positive probability, for -rebuild")
		maxbits = fs.Uint64("maxbits", 0, "cap on the rebuilt filter's size in bits")
		dosplit = fs.Bool("split", false, "checkpoint is stored as a split tree instead of a single blob")
		atstr   = fs.String("at", "", "timestamp for the new anchor (default: now)")
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

	f, _, err := restoreFilter(ctx, s, *a, time.Now(), *dosplit)
	if err != nil {
		if !*rebuild || !rebuildable(err) {
			return err
		}
		log.Printf("WARNING replacing filter at anchor %s: %s", *a, err)
		var opts []bloom.Option
		if *maxbits > 0 {
			opts = append(opts, bloom.MaxBits(*maxbits))
		}
		f, err = bloom.New(*n, *p, opts...)
		if err != nil {
			return errors.Wrap(err, "building replacement filter")
		}
	}

	keys, err := keysFrom(fs.Args())
	if err != nil {
		return err
	}

	var dups int
	for _, key := range keys {
		dup, err := f.AddString(key)
		if err != nil {
			return errors.Wrapf(err, "adding %q", key)
		}
		if dup {
			dups++
		}
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

	log.Printf("ref %s (added %d keys, %d with all bits already set, %d entries)", ref, len(keys), dups, f.NumEntries())

	return nil
}

// rebuildable tells whether an error is one that -rebuild may paper over:
// no checkpoint at the anchor, or a checkpoint that does not restore.
func rebuildable(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, bits.ErrFormat) ||
		errors.Is(err, bits.ErrIntegrity)
}
