package anchor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/DEShawResearch/bloom123/store"
)

// Sync synchronizes the anchors of two or more stores.
// After it returns successfully,
// every store holds every (name, timestamp, ref) association
// that any of the input stores held.
// Blobs are not copied; use store.Sync for that.
func Sync(ctx context.Context, stores []Store) error {
	if len(stores) < 2 {
		return nil
	}

	type line struct {
		name string
		at   string // UTC RFC3339Nano, so equal instants compare equal
		ref  store.Ref
	}

	var (
		mu   sync.Mutex
		all  = make(map[line]time.Time)
		have = make([]map[line]bool, len(stores))
	)

	eg, ctx2 := errgroup.WithContext(ctx)
	for i, s := range stores {
		i, s := i, s
		have[i] = make(map[line]bool)
		eg.Go(func() error {
			return s.ListAnchors(ctx2, "", func(name string, ref store.Ref, at time.Time) error {
				l := line{name: name, at: at.UTC().Format(time.RFC3339Nano), ref: ref}
				mu.Lock()
				all[l] = at
				have[i][l] = true
				mu.Unlock()
				return nil
			})
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "listing anchors")
	}

	for i, s := range stores {
		for l, at := range all {
			if have[i][l] {
				continue
			}
			err := s.PutAnchor(ctx, l.ref, l.name, at)
			if err != nil {
				return errors.Wrapf(err, "storing anchor %s in store %d", l.name, i)
			}
		}
	}
	return nil
}
