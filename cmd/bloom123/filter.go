package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	bloom "github.com/DEShawResearch/bloom123"
	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/split"
	"github.com/DEShawResearch/bloom123/store"
)

// restoreFilter loads the filter whose checkpoint is anchored under name
// as of the given time.
// With dosplit the anchored ref is the root of a split tree
// rather than a single checkpoint blob.
func restoreFilter(ctx context.Context, g anchor.Getter, name string, at time.Time, dosplit bool) (*bloom.Filter, store.Ref, error) {
	var f bloom.Filter

	if !dosplit {
		ref, err := anchor.Restore(ctx, g, name, at, &f)
		if err != nil {
			return nil, store.Zero, err
		}
		return &f, ref, nil
	}

	ref, err := g.GetAnchor(ctx, name, at)
	if err != nil {
		return nil, store.Zero, errors.Wrapf(err, "getting anchor %s", name)
	}

	var buf bytes.Buffer
	if err = split.Read(ctx, g, ref, &buf); err != nil {
		return nil, store.Zero, errors.Wrapf(err, "reassembling checkpoint at %s", ref)
	}
	if _, err = f.ReadFrom(&buf); err != nil {
		return nil, store.Zero, err
	}
	return &f, ref, nil
}

// saveFilter checkpoints f to s and anchors the result under name
// as of the given time.
func saveFilter(ctx context.Context, s anchor.Store, f *bloom.Filter, name string, at time.Time, dosplit bool) (store.Ref, error) {
	if !dosplit {
		return anchor.Save(ctx, s, name, at, f)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return store.Zero, err
	}
	ref, err := split.Write(ctx, s, &buf)
	if err != nil {
		return store.Zero, errors.Wrap(err, "splitting checkpoint to store")
	}
	err = s.PutAnchor(ctx, ref, name, at)
	return ref, errors.Wrapf(err, "anchoring %s at %s", name, ref)
}

// keysFrom returns args if any are present
// and otherwise reads keys from stdin, one per line.
func keysFrom(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	var (
		keys    []string
		scanner = bufio.NewScanner(os.Stdin)
	)
	for scanner.Scan() {
		keys = append(keys, scanner.Text())
	}
	return keys, errors.Wrap(scanner.Err(), "reading keys from stdin")
}
