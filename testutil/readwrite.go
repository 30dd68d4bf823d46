// Package testutil has utilities for testing blob store implementations.
package testutil

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/DEShawResearch/bloom123/split"
	"github.com/DEShawResearch/bloom123/store"
)

// Data produces n bytes of deterministic pseudo-random test data.
func Data(n int) []byte {
	out := make([]byte, n)
	rng := rand.New(rand.NewSource(int64(n)))
	rng.Read(out)
	return out
}

// ReadWrite permits testing a Store implementation
// by split-writing some data to it,
// then reading it back out to make sure it's the same.
// Small chunks are forced so that even modest inputs produce real trees.
func ReadWrite(ctx context.Context, t *testing.T, s store.Store, data []byte) {
	t1 := time.Now()
	ref, err := split.Write(ctx, s, bytes.NewReader(data), split.MinSize(64), split.Bits(8))
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("wrote %d bytes in %s", len(data), time.Since(t1))

	buf := new(bytes.Buffer)
	t2 := time.Now()
	err = split.Read(ctx, s, ref, buf)
	if err != nil {
		t.Fatal(err)
	}
	got := buf.Bytes()
	t.Logf("read %d bytes in %s", len(got), time.Since(t2))

	if len(got) != len(data) {
		t.Errorf("got length %d, want %d", len(got), len(data))
	} else {
		for i := 0; i < len(got); i++ {
			if got[i] != data[i] {
				t.Fatalf("mismatch at position %d (of %d)", i, len(got))
			}
		}
	}
}
