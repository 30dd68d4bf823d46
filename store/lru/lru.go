// Package lru implements a blob store that acts as a least-recently-used cache for a nested blob store.
package lru

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

var _ anchor.Store = &Store{}

// Store implements a memory-based least-recently-used cache for a blob store.
// It caches only blobs, not anchors.
// Writes pass through to the underlying blob store.
type Store struct {
	c *lru.Cache // Ref->Blob
	s anchor.Store
}

// New produces a new Store backed by `s` and caching up to `size` blobs.
func New(s anchor.Store, size int) (*Store, error) {
	c, err := lru.New(size)
	return &Store{s: s, c: c}, err
}

// Get gets the blob with hash `ref`.
func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Blob, error) {
	if got, ok := s.c.Get(ref); ok {
		return got.(store.Blob), nil
	}
	blob, err := s.s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	s.c.Add(ref, blob)
	return blob, nil
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(ctx context.Context, b store.Blob) (store.Ref, bool, error) {
	ref, added, err := s.s.Put(ctx, b)
	if err != nil {
		return ref, added, err
	}
	s.c.Add(ref, b)
	return ref, added, nil
}

// Delete removes the blob with hash `ref` from the nested store and from the cache.
func (s *Store) Delete(ctx context.Context, ref store.Ref) error {
	d, ok := s.s.(interface {
		Delete(context.Context, store.Ref) error
	})
	if !ok {
		return errors.Errorf("nested store is a %T and does not support deletion", s.s)
	}
	err := d.Delete(ctx, ref)
	if err != nil {
		return err
	}
	s.c.Remove(ref)
	return nil
}

// ListRefs produces all blob refs in the nested store, in lexicographic order.
func (s *Store) ListRefs(ctx context.Context, start store.Ref, f func(store.Ref) error) error {
	return s.s.ListRefs(ctx, start, f)
}

// GetAnchor passes through to the nested store.
func (s *Store) GetAnchor(ctx context.Context, name string, at time.Time) (store.Ref, error) {
	return s.s.GetAnchor(ctx, name, at)
}

// PutAnchor passes through to the nested store.
func (s *Store) PutAnchor(ctx context.Context, ref store.Ref, name string, at time.Time) error {
	return s.s.PutAnchor(ctx, ref, name, at)
}

// ListAnchors passes through to the nested store.
func (s *Store) ListAnchors(ctx context.Context, start string, f func(string, store.Ref, time.Time) error) error {
	return s.s.ListAnchors(ctx, start, f)
}

func init() {
	store.Register("lru", func(ctx context.Context, conf map[string]interface{}) (store.Store, error) {
		size, err := confInt(conf, "size")
		if err != nil {
			return nil, err
		}
		nested, ok := conf["nested"].(map[string]interface{})
		if !ok {
			return nil, errors.New(`missing "nested" parameter`)
		}
		nestedType, ok := nested["type"].(string)
		if !ok {
			return nil, errors.New(`"nested" parameter missing "type"`)
		}
		nestedStore, err := store.Create(ctx, nestedType, nested)
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		nestedAnchorStore, ok := nestedStore.(anchor.Store)
		if !ok {
			return nil, errors.New(`"nested" store is not an anchor store`)
		}
		return New(nestedAnchorStore, size)
	})
}

// confInt extracts an integer config parameter,
// which a JSON decode may have produced as a json.Number or a float64.
func confInt(conf map[string]interface{}, key string) (int, error) {
	switch v := conf[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return int(n), errors.Wrapf(err, "parsing %q parameter", key)
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, errors.Errorf(`missing or malformed %q parameter`, key)
	}
}
