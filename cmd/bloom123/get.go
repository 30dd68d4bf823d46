package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/split"
	"github.com/DEShawResearch/bloom123/store"
)

func (c maincmd) get(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		a       = fs.String("anchor", "", "anchor of checkpoint to get")
		refstr  = fs.String("ref", "", "ref of checkpoint to get")
		dosplit = fs.Bool("split", false, "reassemble a split tree instead of getting a single blob")
		atstr   = fs.String("at", "", "timestamp for anchor (default: now)")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	if (*a == "" && *refstr == "") || (*a != "" && *refstr != "") {
		return errors.New("must supply one of -anchor or -ref")
	}

	s, err := c.store(ctx)
	if err != nil {
		return err
	}

	var ref store.Ref

	if *a != "" {
		as, ok := s.(anchor.Store)
		if !ok {
			return errors.Errorf("%s configures a %T, which is not an anchor.Store", c.config, s)
		}

		at := time.Now()
		if *atstr != "" {
			at, err = parsetime(*atstr)
			if err != nil {
				return errors.Wrap(err, "parsing -at")
			}
		}

		ref, err = as.GetAnchor(ctx, *a, at)
		if err != nil {
			return errors.Wrapf(err, "getting anchor %s at time %s", *a, at)
		}
	} else {
		ref, err = store.RefFromHex(*refstr)
		if err != nil {
			return errors.Wrapf(err, "decoding ref %s", *refstr)
		}
	}

	if *dosplit {
		return split.Read(ctx, s, ref, os.Stdout)
	}

	blob, err := s.Get(ctx, ref)
	if err != nil {
		return errors.Wrapf(err, "getting blob %s", ref)
	}
	_, err = os.Stdout.Write(blob)
	return errors.Wrap(err, "writing blob to stdout")
}
