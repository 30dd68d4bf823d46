package gc

import (
	"context"
	"sync"
	"time"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

// Keep is a set of refs to protect from garbage collection.
type Keep interface {
	// Add adds a single ref to the Keep.
	// It returns true if it was newly added and false if it was already present.
	Add(context.Context, store.Ref) (bool, error)

	// Contains tells whether a ref is in the Keep.
	Contains(context.Context, store.Ref) (bool, error)
}

// MemKeep is an in-memory Keep.
type MemKeep struct {
	mu sync.Mutex
	m  map[store.Ref]struct{}
}

// NewMemKeep produces a new, empty MemKeep.
func NewMemKeep() *MemKeep {
	return &MemKeep{m: make(map[store.Ref]struct{})}
}

// Add implements Keep.Add.
func (k *MemKeep) Add(_ context.Context, ref store.Ref) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.m[ref]; ok {
		return false, nil
	}
	k.m[ref] = struct{}{}
	return true, nil
}

// Contains implements Keep.Contains.
func (k *MemKeep) Contains(_ context.Context, ref store.Ref) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, ok := k.m[ref]
	return ok, nil
}

type anchorLine struct {
	name string
	ref  store.Ref
	at   time.Time
}

// ProtectAnchors protects the refs of anchors in g at or after time `since`.
//
// An anchor's ref is protected if its timestamp is at or after `since`.
// It is also protected if it has the latest timestamp _before_ `since` for a given name
// (since that anchor was in effect as of time `since`),
// unless there is another one with the same name and a timestamp exactly equal to `since`.
//
// Each protected ref is expanded with Protect and the given traverse function.
func ProtectAnchors(ctx context.Context, g anchor.Getter, k Keep, since time.Time, traverse TraverseFunc) error {
	var last *anchorLine

	err := g.ListAnchors(ctx, "", func(name string, ref store.Ref, at time.Time) error {
		// Maybe protect the anchor from the previous iteration.
		if shouldProtect(last, name, at, since) {
			err := Protect(ctx, g, k, last.ref, traverse)
			if err != nil {
				return err
			}
		}

		last = &anchorLine{name: name, ref: ref, at: at}

		if at.Before(since) {
			return nil
		}

		return Protect(ctx, g, k, ref, traverse)
	})
	if err != nil {
		return err
	}

	if last != nil && last.at.Before(since) {
		return Protect(ctx, g, k, last.ref, traverse)
	}

	return nil
}

func shouldProtect(a *anchorLine, name string, at, since time.Time) bool {
	if a == nil {
		return false
	}

	// Protect it if it was the last one with its name,
	// and it was before `since`.
	if name != a.name && a.at.Before(since) {
		return true
	}

	// Also protect it if it has the same name as the current anchor,
	// and was the last one before `since`
	// (unless this one is at exactly `since`).
	return name == a.name && at.After(since) && a.at.Before(since)
}
