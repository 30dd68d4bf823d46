package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	. "github.com/DEShawResearch/bloom123/store"
	"github.com/DEShawResearch/bloom123/store/mem"
)

func TestSync(t *testing.T) {
	const text = `abc def ghi jkl mno pqr stu`

	var (
		ctx    = context.Background()
		words  = strings.Fields(text)
		stores = make([]Store, 0, len(words))
	)
	for i := range words {
		s := mem.New()
		stores = append(stores, s)
		for j, word := range words {
			if i == j {
				continue
			}

			_, _, err := s.Put(ctx, Blob(word))
			if err != nil {
				t.Fatal(err)
			}
		}
	}

	err := Sync(ctx, stores)
	if err != nil {
		t.Fatal(err)
	}

	var refs []Ref
	err = stores[0].ListRefs(ctx, Ref{}, func(ref Ref) error {
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != len(words) {
		t.Errorf("got %d refs in store 0, want %d", len(refs), len(words))
	}

	for i := 1; i < len(stores); i++ {
		s := stores[i]
		var refs2 []Ref
		err = s.ListRefs(ctx, Ref{}, func(ref Ref) error {
			refs2 = append(refs2, ref)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(refs2, refs); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	}
}
