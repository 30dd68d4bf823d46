package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

// Anchors exercises the anchor operations of an anchor.Store implementation.
// All timestamps involved are whole seconds,
// so stores that round sub-second precision still pass.
func Anchors(ctx context.Context, t *testing.T, s anchor.Store) {
	var (
		a1 = "anchor1"
		a2 = "anchor2"
		a3 = "anchor3"

		r1a = store.Ref{0x1a}
		r1b = store.Ref{0x1b}
		r2  = store.Ref{0x2}

		t1 = time.Date(1977, 8, 5, 12, 0, 0, 0, time.FixedZone("UTC-4", -4*60*60))
		t2 = t1.Add(time.Hour)
	)

	err := s.PutAnchor(ctx, r1a, a1, t1)
	if err != nil {
		t.Fatal(err)
	}
	err = s.PutAnchor(ctx, r1b, a1, t2)
	if err != nil {
		t.Fatal(err)
	}
	err = s.PutAnchor(ctx, r2, a2, t1)
	if err != nil {
		t.Fatal(err)
	}

	// Re-putting an existing association must be a no-op.
	err = s.PutAnchor(ctx, r1a, a1, t1)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		a       string
		tm      time.Time
		want    store.Ref
		wantErr error
	}{
		{a: a1, tm: t1, want: r1a},
		{a: a1, tm: t1.Add(time.Minute), want: r1a},
		{a: a1, tm: t2, want: r1b},
		{a: a1, tm: t2.Add(time.Minute), want: r1b},
		{a: a1, tm: t1.Add(-time.Minute), wantErr: store.ErrNotFound},
		{a: a1, tm: t2.Add(-time.Minute), want: r1a},

		{a: a2, tm: t1, want: r2},
		{a: a2, tm: t1.Add(time.Minute), want: r2},
		{a: a2, tm: t1.Add(-time.Minute), wantErr: store.ErrNotFound},

		{a: a3, tm: t2, wantErr: store.ErrNotFound},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%02d", i+1), func(t *testing.T) {
			got, err := s.GetAnchor(ctx, c.a, c.tm)
			if c.wantErr != nil {
				if !errors.Is(err, c.wantErr) {
					t.Fatalf("got error %v, want %v", err, c.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Fatalf("got %s, want %s", got, c.want)
			}
		})
	}

	type line struct {
		Name string
		Ref  store.Ref
	}

	var lines []line
	err = s.ListAnchors(ctx, "", func(name string, ref store.Ref, at time.Time) error {
		lines = append(lines, line{Name: name, Ref: ref})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	wantLines := []line{
		{Name: a1, Ref: r1a},
		{Name: a1, Ref: r1b},
		{Name: a2, Ref: r2},
	}
	if diff := cmp.Diff(wantLines, lines); diff != "" {
		t.Errorf("anchors mismatch (-want +got):\n%s", diff)
	}

	// Starting after a name skips all of its associations.
	lines = nil
	err = s.ListAnchors(ctx, a1, func(name string, ref store.Ref, at time.Time) error {
		lines = append(lines, line{Name: name, Ref: ref})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]line{{Name: a2, Ref: r2}}, lines); diff != "" {
		t.Errorf("anchors after %s mismatch (-want +got):\n%s", a1, diff)
	}
}
