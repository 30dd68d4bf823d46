package store_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/bits"
	"github.com/DEShawResearch/bloom123/store"
	"github.com/DEShawResearch/bloom123/store/mem"
)

func TestSaveRestore(t *testing.T) {
	ctx := context.Background()
	s := mem.New()

	v := bits.New(300)
	for i := uint64(58); i < 66; i++ {
		v.Set(i)
	}

	ref, err := store.Save(ctx, s, v)
	if err != nil {
		t.Fatal(err)
	}

	// Saving unchanged content is a no-op that yields the same ref.
	ref2, err := store.Save(ctx, s, v)
	if err != nil {
		t.Fatal(err)
	}
	if ref2 != ref {
		t.Errorf("second save gave ref %s, want %s", ref2, ref)
	}

	got := bits.New(0)
	if err = store.Restore(ctx, s, ref, got); err != nil {
		t.Fatal(err)
	}
	if !got.Equal(v) {
		t.Error("restored vector differs from the saved one")
	}

	// A blob that isn't a checkpoint surfaces the codec's error kind.
	junkRef, _, err := s.Put(ctx, store.Blob("not a checkpoint"))
	if err != nil {
		t.Fatal(err)
	}
	err = store.Restore(ctx, s, junkRef, got)
	if !errors.Is(err, bits.ErrFormat) {
		t.Errorf("got %v, want %v", err, bits.ErrFormat)
	}

	// A ref that was never stored surfaces ErrNotFound.
	err = store.Restore(ctx, s, store.Ref{15: 1}, got)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want %v", err, store.ErrNotFound)
	}
}
