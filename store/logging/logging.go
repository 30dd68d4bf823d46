// Package logging implements a store that delegates everything to a nested store,
// logging operations as they happen.
package logging

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

var _ anchor.Store = &Store{}

type Store struct {
	s anchor.Store
}

func New(s anchor.Store) *Store {
	return &Store{s: s}
}

func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Blob, error) {
	b, err := s.s.Get(ctx, ref)
	if err != nil {
		log.Printf("ERROR Get %s: %s", ref, err)
	} else {
		log.Printf("Get %s", ref)
	}
	return b, err
}

func (s *Store) ListRefs(ctx context.Context, start store.Ref, f func(store.Ref) error) error {
	log.Printf("ListRefs, start=%s", start)
	return s.s.ListRefs(ctx, start, func(ref store.Ref) error {
		err := f(ref)
		if err != nil {
			log.Printf("  ERROR in ListRefs: %s: %s", ref, err)
		} else {
			log.Printf("  ListRefs: %s", ref)
		}
		return err
	})
}

func (s *Store) Put(ctx context.Context, b store.Blob) (store.Ref, bool, error) {
	ref, added, err := s.s.Put(ctx, b)
	if err != nil {
		log.Printf("ERROR in Put: %s", err)
	} else {
		log.Printf("Put %s, added=%v", ref, added)
	}
	return ref, added, err
}

// Delete delegates to the nested store if that store supports deletion.
func (s *Store) Delete(ctx context.Context, ref store.Ref) error {
	d, ok := s.s.(interface {
		Delete(context.Context, store.Ref) error
	})
	if !ok {
		return errors.Errorf("nested store is a %T and does not support deletion", s.s)
	}
	err := d.Delete(ctx, ref)
	if err != nil {
		log.Printf("ERROR in Delete %s: %s", ref, err)
	} else {
		log.Printf("Delete %s", ref)
	}
	return err
}

func (s *Store) GetAnchor(ctx context.Context, name string, at time.Time) (store.Ref, error) {
	ref, err := s.s.GetAnchor(ctx, name, at)
	if err != nil {
		log.Printf("ERROR in GetAnchor(%s, %s): %s", name, at, err)
	} else {
		log.Printf("GetAnchor(%s, %s): %s", name, at, ref)
	}
	return ref, err
}

func (s *Store) PutAnchor(ctx context.Context, ref store.Ref, name string, at time.Time) error {
	err := s.s.PutAnchor(ctx, ref, name, at)
	if err != nil {
		log.Printf("ERROR in PutAnchor(%s, %s, %s): %s", name, at, ref, err)
	} else {
		log.Printf("PutAnchor(%s, %s, %s)", name, at, ref)
	}
	return err
}

func (s *Store) ListAnchors(ctx context.Context, start string, f func(string, store.Ref, time.Time) error) error {
	log.Printf("ListAnchors, start=%s", start)
	return s.s.ListAnchors(ctx, start, func(name string, ref store.Ref, at time.Time) error {
		err := f(name, ref, at)
		if err != nil {
			log.Printf("  ERROR in ListAnchors at (%s, %s, %s): %s", name, at, ref, err)
		} else {
			log.Printf("  ListAnchors: (%s, %s, %s)", name, at, ref)
		}
		return err
	})
}

func init() {
	store.Register("logging", func(ctx context.Context, conf map[string]interface{}) (store.Store, error) {
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
		if a, ok := nestedStore.(anchor.Store); ok {
			return New(a), nil
		}
		return nil, fmt.Errorf("nested store is a %T and not an anchor.Store", nestedStore)
	})
}
