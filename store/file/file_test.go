package file

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/store"
	"github.com/DEShawResearch/bloom123/testutil"
)

func TestStore(t *testing.T) {
	testutil.ReadWrite(context.Background(), t, New(t.TempDir()), testutil.Data(32768))
}

func TestAnchors(t *testing.T) {
	testutil.Anchors(context.Background(), t, New(t.TempDir()))
}

func TestAllRefs(t *testing.T) {
	testutil.AllRefs(context.Background(), t, func() store.Store { return New(t.TempDir()) })
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	ref, _, err := s.Put(ctx, store.Blob("short-lived"))
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Delete(ctx, ref); err != nil {
		t.Fatal(err)
	}
	if _, err = s.Get(ctx, ref); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v after delete, want %v", err, store.ErrNotFound)
	}
	if err = s.Delete(ctx, ref); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v deleting a missing ref, want %v", err, store.ErrNotFound)
	}
}

func TestLock(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Lock(); err != nil {
		t.Fatal(err)
	}
	if err := s.Unlock(); err != nil {
		t.Fatal(err)
	}
}
