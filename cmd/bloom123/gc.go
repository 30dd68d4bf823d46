package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/gc"
	"github.com/DEShawResearch/bloom123/split"
	"github.com/DEShawResearch/bloom123/store"
)

func (c maincmd) gc(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		sincestr = fs.String("since", "", "protect anchors at or after this time (default: protect all)")
		dry      = fs.Bool("dry", false, "list what would be deleted without deleting")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	s, err := c.anchorStore(ctx)
	if err != nil {
		return err
	}
	deleter, ok := s.(gc.Store)
	if !ok {
		return fmt.Errorf("%s configures a %T, which does not support deletion", c.config, s)
	}

	// Stores with whole-store locks (the file store has one) keep
	// concurrent collections and writers out for the duration.
	if locker, ok := s.(interface {
		Lock() error
		Unlock() error
	}); ok {
		if err := locker.Lock(); err != nil {
			return errors.Wrap(err, "locking store")
		}
		defer locker.Unlock()
	}

	var since time.Time
	if *sincestr != "" {
		since, err = parsetime(*sincestr)
		if err != nil {
			return errors.Wrap(err, "parsing -since")
		}
	}

	k := gc.NewMemKeep()
	err = gc.ProtectAnchors(ctx, s, k, since, traverse)
	if err != nil {
		return errors.Wrap(err, "protecting anchored refs")
	}

	if *dry {
		var doomed int
		err = s.ListRefs(ctx, store.Ref{}, func(ref store.Ref) error {
			found, err := k.Contains(ctx, ref)
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("%s\n", ref)
				doomed++
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Printf("would delete %d blobs", doomed)
		return nil
	}

	return errors.Wrap(gc.Run(ctx, deleter, k), "collecting garbage")
}

// traverse protects split trees and single checkpoint blobs alike.
// An anchored ref whose blob parses as a tree node is walked with split.Refs;
// any other blob is protected by itself.
// (A checkpoint blob can never parse as a node:
// its leading bit count is followed by a space where a netstring wants a colon,
// and a filter checkpoint opens with a letter.)
func traverse(ctx context.Context, g store.Getter, ref store.Ref, f func(store.Ref) error) error {
	blob, err := g.Get(ctx, ref)
	if err != nil {
		return errors.Wrapf(err, "getting %s", ref)
	}
	if _, err := split.DecodeNode(blob); err != nil {
		return f(ref)
	}
	return split.Refs(ctx, g, ref, f)
}
