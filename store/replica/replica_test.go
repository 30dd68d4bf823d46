package replica

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/store"
	"github.com/DEShawResearch/bloom123/store/mem"
	"github.com/DEShawResearch/bloom123/testutil"
)

func TestReplicaSets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		m1 = mem.New()
		m2 = mem.New()
		s  = New(ctx, []store.Store{m1, m2}, nil, 1)
	)

	ref1, _, err := m1.Put(ctx, store.Blob("foo"))
	if err != nil {
		t.Fatal(err)
	}
	ref2, _, err := m2.Put(ctx, store.Blob("bar"))
	if err != nil {
		t.Fatal(err)
	}
	ref3, _, err := s.Put(ctx, store.Blob("baz"))
	if err != nil {
		t.Fatal(err)
	}

	checkReplica(ctx, t, "m1", m1, ref1, ref3)
	checkReplica(ctx, t, "m2", m2, ref2, ref3)
	checkReplica(ctx, t, "replica", s, ref1, ref2, ref3)
}

func checkReplica(ctx context.Context, t *testing.T, name string, s store.Getter, want ...store.Ref) {
	t.Run(name, func(t *testing.T) {
		var got []store.Ref
		err := s.ListRefs(ctx, store.Zero, func(r store.Ref) error {
			got = append(got, r)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		sort.Slice(want, func(i, j int) bool { return want[i].Less(want[j]) })
		sort.Slice(got, func(i, j int) bool { return got[i].Less(got[j]) })
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestAllRefs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	testutil.AllRefs(ctx, t, func() store.Store {
		var (
			m1 = mem.New()
			m2 = mem.New()
		)
		return New(ctx, []store.Store{m1, m2}, nil, 1)
	})
}

func TestReadWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		m1 = mem.New()
		m2 = mem.New()
		s  = New(ctx, []store.Store{m1, m2}, nil, 1)
	)

	testutil.ReadWrite(ctx, t, s, testutil.Data(32768))
}

func TestDelete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		m1 = mem.New()
		m2 = mem.New()
		s  = New(ctx, []store.Store{m1, m2}, nil, 1)
	)

	// A blob in only one replica is still deleted.
	ref, _, err := m1.Put(ctx, store.Blob("lopsided"))
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Delete(ctx, ref); err != nil {
		t.Fatal(err)
	}
	if _, err = s.Get(ctx, ref); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("after delete: got %v, want %v", err, store.ErrNotFound)
	}

	if err = s.Delete(ctx, ref); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleting absent blob: got %v, want %v", err, store.ErrNotFound)
	}
}
