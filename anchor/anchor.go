// Package anchor defines anchors: named, timestamped pointers to refs in a blob store.
//
// Content addressing gives every blob an immutable name (its ref).
// An anchor adds a mutable, human-readable name on top:
// putting a new ref under an existing anchor name does not erase history,
// it adds a newer (timestamp, ref) pair,
// and reads resolve the name as of any given moment.
package anchor

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/store"
)

// Getter is a read-only anchor store.
type Getter interface {
	store.Getter

	// GetAnchor returns the latest ref associated with the given name
	// at or before the given time.
	// If no such association exists, it returns store.ErrNotFound.
	GetAnchor(context.Context, string, time.Time) (store.Ref, error)

	// ListAnchors calls a function for each anchor,
	// in name order and then in time order within a name,
	// beginning with the first name _after_ the given one.
	//
	// If the callback function returns an error,
	// ListAnchors exits with that error.
	ListAnchors(ctx context.Context, start string, f func(name string, ref store.Ref, at time.Time) error) error
}

// Store is a blob store that additionally stores anchors.
type Store interface {
	store.Store
	Getter

	// PutAnchor associates ref with the given anchor name as of the given time.
	// Putting the exact same (ref, name, time) association again is a no-op.
	PutAnchor(context.Context, store.Ref, string, time.Time) error
}

// TimeRef is a blob-reference / timestamp pair.
// Abstractly, an anchor name maps to one or more TimeRefs.
type TimeRef struct {
	T time.Time
	R store.Ref
}

// Find is a helper for finding the latest blob reference
// in a list of TimeRefs, sorted by time,
// whose timestamp is not later than `at`.
func Find(pairs []TimeRef, at time.Time) (store.Ref, error) {
	index := sort.Search(len(pairs), func(n int) bool {
		return pairs[n].T.After(at)
	})
	if index == 0 {
		return store.Zero, store.ErrNotFound
	}
	return pairs[index-1].R, nil
}

// Save serializes src, puts the result in s as a single blob,
// and anchors the blob's ref under the given name as of the given time.
func Save(ctx context.Context, s Store, name string, at time.Time, src io.WriterTo) (store.Ref, error) {
	ref, err := store.Save(ctx, s, src)
	if err != nil {
		return store.Zero, err
	}
	err = s.PutAnchor(ctx, ref, name, at)
	return ref, errors.Wrapf(err, "anchoring %s at %s", name, ref)
}

// Restore resolves name as of the given time
// and loads the blob it refers to into dest with a single ReadFrom call,
// returning the resolved ref.
// As with store.Restore, errors from ReadFrom are returned unwrapped.
func Restore(ctx context.Context, g Getter, name string, at time.Time, dest io.ReaderFrom) (store.Ref, error) {
	ref, err := g.GetAnchor(ctx, name, at)
	if err != nil {
		return store.Zero, errors.Wrapf(err, "getting anchor %s", name)
	}
	return ref, store.Restore(ctx, g, ref, dest)
}
