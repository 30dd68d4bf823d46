// Package mem implements an in-memory blob store.
package mem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

var _ anchor.Store = &Store{}

// Store is a memory-based implementation of a blob store.
type Store struct {
	mu      sync.Mutex
	blobs   map[store.Ref]store.Blob
	anchors map[string][]anchor.TimeRef
}

// New produces a new Store.
func New() *Store {
	return &Store{
		blobs:   make(map[store.Ref]store.Blob),
		anchors: make(map[string][]anchor.TimeRef),
	}
}

// Get gets the blob with hash `ref`.
func (s *Store) Get(_ context.Context, ref store.Ref) (store.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.blobs[ref]; ok {
		return b, nil
	}
	return nil, store.ErrNotFound
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(_ context.Context, b store.Blob) (store.Ref, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added bool

	ref := b.Ref()
	if _, ok := s.blobs[ref]; !ok {
		s.blobs[ref] = b
		added = true
	}

	return ref, added, nil
}

// Delete removes the blob with the given ref.
// It is an error (store.ErrNotFound) if the ref is not present.
func (s *Store) Delete(_ context.Context, ref store.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[ref]; !ok {
		return store.ErrNotFound
	}
	delete(s.blobs, ref)
	return nil
}

// ListRefs produces all blob refs in the store, in lexicographic order.
func (s *Store) ListRefs(ctx context.Context, start store.Ref, f func(store.Ref) error) error {
	s.mu.Lock()
	refs := make([]store.Ref, 0, len(s.blobs))
	for ref := range s.blobs {
		refs = append(refs, ref)
	}
	s.mu.Unlock()

	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	index := sort.Search(len(refs), func(n int) bool {
		return start.Less(refs[n])
	})

	for i := index; i < len(refs); i++ {
		err := f(refs[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// GetAnchor gets the latest blob ref for a given anchor as of a given time.
func (s *Store) GetAnchor(_ context.Context, name string, at time.Time) (store.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return anchor.Find(s.anchors[name], at)
}

// PutAnchor adds a new ref for a given anchor as of a given time.
// Re-putting an existing (ref, name, time) association is a no-op.
func (s *Store) PutAnchor(_ context.Context, ref store.Ref, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tr := range s.anchors[name] {
		if tr.R == ref && tr.T.Equal(at) {
			return nil
		}
	}

	s.anchors[name] = append(s.anchors[name], anchor.TimeRef{T: at, R: ref})
	sort.SliceStable(s.anchors[name], func(i, j int) bool {
		return s.anchors[name][i].T.Before(s.anchors[name][j].T)
	})

	return nil
}

// ListAnchors lists all anchors in the store, in name order and then time order.
func (s *Store) ListAnchors(ctx context.Context, start string, f func(string, store.Ref, time.Time) error) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.anchors))
	for name := range s.anchors {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	index := sort.Search(len(names), func(n int) bool {
		return names[n] > start
	})

	for i := index; i < len(names); i++ {
		name := names[i]
		s.mu.Lock()
		trs := make([]anchor.TimeRef, len(s.anchors[name]))
		copy(trs, s.anchors[name])
		s.mu.Unlock()
		for _, tr := range trs {
			err := f(name, tr.R, tr.T)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func init() {
	store.Register("mem", func(context.Context, map[string]interface{}) (store.Store, error) {
		return New(), nil
	})
}
