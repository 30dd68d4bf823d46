// Package replica implements a blob store that mirrors its contents across multiple nested stores.
package replica

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/store"
)

var _ store.Store = (*Store)(nil)

// Store is a blob store that delegates reads and writes to two sets of nested stores.
// One set is synchronous:
// writes to all of these must succeed before a call to Put returns,
// and an error from any will cause Put to fail.
// The other set is asynchronous:
// a call to Put queues writes on these stores but does not wait for them to finish.
// However, if any asynchronous write encounters an error,
// the whole Store is put into an error state and further operations will fail.
type Store struct {
	sync   []store.Store
	async  []asyncChans
	cancel context.CancelFunc

	mu  sync.Mutex // protects err
	err error      // the error from an async goroutine, if any
}

type asyncChans struct {
	blobs chan<- store.Blob
	errs  <-chan error
}

// New produces a new Store.
// The set of synchronous stores must be non-empty.
// The set of asynchronous stores may be empty.
// If there are any asynchronous stores,
// goroutines are launched for them,
// and canceling the given context object causes those to exit,
// placing the Store in an error state.
//
// Normally, writes to asynchronous stores do not block calls to Put,
// but the queue for each nested store has a fixed length given by n,
// which must be 1 or greater.
// If any async store falls too far behind,
// Put will block until all requests can be queued.
func New(ctx context.Context, sync []store.Store, async []store.Store, n int) *Store {
	result := &Store{sync: sync}

	if len(async) > 0 {
		ctx, result.cancel = context.WithCancel(ctx)

		selectCases := make([]reflect.SelectCase, 1+len(async))

		for i, a := range async {
			var (
				blobs = make(chan store.Blob, n)
				errs  = make(chan error, 1)
			)

			result.async = append(result.async, asyncChans{blobs: blobs, errs: errs})

			selectCases[i].Dir = reflect.SelectRecv
			selectCases[i].Chan = reflect.ValueOf(errs)

			a := a
			go runAsync(ctx, a, blobs, errs)
		}

		selectCases[len(async)].Dir = reflect.SelectRecv
		selectCases[len(async)].Chan = reflect.ValueOf(ctx.Done())

		go func() {
			_, errval, ok := reflect.Select(selectCases)
			if ok {
				result.cancel()
				result.mu.Lock()
				result.err = errval.Interface().(error)
				result.mu.Unlock()
			}
		}()
	}

	return result
}

// Runs as a goroutine until ctx is canceled or an error occurs (which it writes to errs).
func runAsync(ctx context.Context, s store.Store, blobs <-chan store.Blob, errs chan<- error) {
	defer close(errs)

	for {
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return

		case blob := <-blobs:
			_, _, err := s.Put(ctx, blob)
			if err != nil {
				errs <- err
				return
			}
		}
	}
}

// Put implements store.Store.Put.
// The blob is stored in all synchronous nested stores.
// An error from any of them causes Put to return an error.
//
// Some nested stores may already have the blob and others may not,
// in which case the value of `added`
// (the boolean return value)
// is indeterminate.
// (It is determined by the first nested store to finish.)
//
// A request to write the blob is queued for any asynchronous nested stores.
// Normally this does not block the call to Put,
// but if any async store falls too far behind,
// Put must wait for space to open in its request queue before proceeding.
// The size of this queue is given by the int passed to New.
func (s *Store) Put(ctx context.Context, blob store.Blob) (store.Ref, bool, error) {
	if err := s.checkErr(); err != nil {
		return store.Zero, false, errors.Wrap(err, "in async-store goroutine")
	}

	type pairType struct {
		ref   store.Ref
		added bool
	}

	g, ctx := errgroup.WithContext(ctx)
	ch := make(chan pairType, len(s.sync))
	for _, store := range s.sync {
		store := store
		g.Go(func() error {
			ref, added, err := store.Put(ctx, blob)
			if err != nil {
				return err
			}
			ch <- pairType{ref: ref, added: added}
			return nil
		})
	}

	for _, a := range s.async {
		select {
		case <-ctx.Done():
			return store.Zero, false, ctx.Err()

		case a.blobs <- blob:
		}
	}

	err := g.Wait()
	if err != nil {
		if s.cancel != nil {
			s.cancel()
		}
		return store.Zero, false, err
	}
	pair := <-ch
	return pair.ref, pair.added, nil
}

// Get implements store.Getter.
// It delegates the request to all of the synchronous stores in s,
// returning the result from the first one to respond without error
// and canceling the request to the others.
// If all synchronous stores respond with an error,
// one of those errors is returned.
func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Blob, error) {
	if err := s.checkErr(); err != nil {
		return nil, errors.Wrap(err, "in async-store goroutine")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group

	ch := make(chan store.Blob)
	for _, store := range s.sync {
		store := store
		g.Go(func() error {
			blob, err := store.Get(ctx, ref)
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ch <- blob:
			}
			return nil
		})
	}

	var (
		blob store.Blob
		ok   bool
		err  error
		done = make(chan struct{}, 2)
	)

	go func() {
		blob, ok = <-ch
		done <- struct{}{}
	}()

	go func() {
		err = g.Wait()
		close(ch)
		done <- struct{}{}
	}()

	<-done
	if ok {
		return blob, nil
	}
	return nil, err
}

// Delete removes the blob with hash `ref` from every synchronous nested store that has it.
// It is an error (store.ErrNotFound) if no synchronous store has it.
func (s *Store) Delete(ctx context.Context, ref store.Ref) error {
	if err := s.checkErr(); err != nil {
		return errors.Wrap(err, "in async-store goroutine")
	}

	var (
		mu    sync.Mutex
		found bool
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, nested := range s.sync {
		d, ok := nested.(interface {
			Delete(context.Context, store.Ref) error
		})
		if !ok {
			return errors.Errorf("nested store is a %T and does not support deletion", nested)
		}
		g.Go(func() error {
			err := d.Delete(ctx, ref)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err == nil {
				mu.Lock()
				found = true
				mu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if !found {
		return store.ErrNotFound
	}
	return nil
}

// ListRefs implements store.Getter.
// It delegates the request to all of the synchronous stores in s
// and synthesizes the result from the union of their refs.
func (s *Store) ListRefs(ctx context.Context, start store.Ref, f func(store.Ref) error) error {
	if err := s.checkErr(); err != nil {
		return errors.Wrap(err, "in async-store goroutine")
	}

	chans := make([]chan store.Ref, len(s.sync))
	for i := 0; i < len(s.sync); i++ {
		chans[i] = make(chan store.Ref, 1)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	for i, nested := range s.sync {
		var (
			i      = i
			nested = nested
		)
		g.Go(func() error {
			defer close(chans[i])
			return nested.ListRefs(ctx, start, func(ref store.Ref) error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case chans[i] <- ref:
					return nil
				}
			})
		})
	}

	// A receive from an exhausted store's channel yields the zero Ref,
	// which no blob can have as its hash.
	last := start
	next := make([]store.Ref, len(s.sync))
	for i, ch := range chans {
		next[i] = <-ch
	}

	for {
		var (
			best      store.Ref
			bestIndex int
		)
		for i, ref := range next {
			if ref == store.Zero {
				continue
			}
			if ref == last {
				ref = <-chans[i]
				next[i] = ref
			}
			if best == store.Zero {
				best, bestIndex = ref, i
				continue
			}
			if ref.Less(best) {
				best, bestIndex = ref, i
			}
		}
		if best == store.Zero {
			break
		}
		err := f(best)
		if err != nil {
			return err
		}
		last = best
		next[bestIndex] = <-chans[bestIndex]
	}

	return g.Wait()
}

func (s *Store) checkErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func init() {
	store.Register("replica", func(ctx context.Context, conf map[string]interface{}) (store.Store, error) {
		nestedStores := func(key string) ([]store.Store, error) {
			items, ok := conf[key].([]interface{})
			if !ok {
				return nil, nil
			}
			var result []store.Store
			for _, item := range items {
				nested, ok := item.(map[string]interface{})
				if !ok {
					return nil, errors.Errorf(`malformed %q item`, key)
				}
				nestedType, ok := nested["type"].(string)
				if !ok {
					return nil, errors.Errorf(`%q item missing "type"`, key)
				}
				nestedStore, err := store.Create(ctx, nestedType, nested)
				if err != nil {
					return nil, errors.Wrapf(err, "creating nested %s store", key)
				}
				result = append(result, nestedStore)
			}
			return result, nil
		}

		syncStores, err := nestedStores("sync")
		if err != nil {
			return nil, err
		}
		if len(syncStores) == 0 {
			return nil, errors.New(`missing "sync" parameter`)
		}
		asyncStores, err := nestedStores("async")
		if err != nil {
			return nil, err
		}

		var queueLen int64
		switch n := conf["queuelen"].(type) {
		case json.Number:
			queueLen, err = n.Int64()
			if err != nil {
				return nil, errors.Wrapf(err, "parsing queue length %v", n)
			}
		case float64:
			queueLen = int64(n)
		default:
			queueLen = 10
		}

		return New(ctx, syncStores, asyncStores, int(queueLen)), nil
	})
}
