// Package gc implements garbage collection for blob stores.
//
// A garbage collection deletes every blob in a store
// whose ref is not protected by a Keep.
// Callers build up the Keep with Protect and ProtectAnchors
// and then call Run.
package gc

import (
	"context"

	"github.com/DEShawResearch/bloom123/store"
)

// Store is a blob store whose blobs can also be deleted.
type Store interface {
	store.Getter

	// Delete removes the blob with the given ref.
	Delete(context.Context, store.Ref) error
}

// TraverseFunc walks the refs reachable from ref in g,
// calling f on each one, including ref itself.
// split.Refs is a TraverseFunc for hashsplit trees.
type TraverseFunc = func(ctx context.Context, g store.Getter, ref store.Ref, f func(store.Ref) error) error

// Protect adds ref, and everything reachable from it, to k.
// Reachability is defined by traverse;
// a nil traverse protects ref alone.
func Protect(ctx context.Context, g store.Getter, k Keep, ref store.Ref, traverse TraverseFunc) error {
	if traverse == nil {
		_, err := k.Add(ctx, ref)
		return err
	}
	return traverse(ctx, g, ref, func(r store.Ref) error {
		_, err := k.Add(ctx, r)
		return err
	})
}

// Run runs a garbage collection on s,
// deleting every blob whose ref is not in k.
func Run(ctx context.Context, s Store, k Keep) error {
	return s.ListRefs(ctx, store.Ref{}, func(ref store.Ref) error {
		found, err := k.Contains(ctx, ref)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		return s.Delete(ctx, ref)
	})
}
