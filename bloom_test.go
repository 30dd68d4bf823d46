package bloom

import (
	"fmt"
	"io"
	"testing"

	"github.com/pkg/errors"
)

func TestFilter(t *testing.T) {
	f, err := New(10, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.SizeBits(); got != 96 {
		t.Errorf("got %d bits, want 96", got)
	}
	if got := f.NumHashes(); got != 7 {
		t.Errorf("got %d hashes, want 7", got)
	}
	if got := f.SizeBytes(); got != 16 {
		t.Errorf("got %d bytes, want 16", got)
	}
	if got := f.NumEntries(); got != 0 {
		t.Errorf("got %d entries in a fresh filter, want 0", got)
	}
	if got := f.Popcount(); got != 0 {
		t.Errorf("got popcount %d in a fresh filter, want 0", got)
	}
	if got := f.FalseProb(); got != 0 {
		t.Errorf("got false-positive probability %g in a fresh filter, want 0", got)
	}

	keys := []string{"hello", "world", ""}

	dup, err := f.AddString(keys[0])
	if err != nil {
		t.Fatal(err)
	}
	if dup {
		t.Error("first add to an empty filter reported its bits already set")
	}
	for _, key := range keys[1:] {
		if _, err = f.AddString(key); err != nil {
			t.Fatal(err)
		}
	}
	for _, key := range keys {
		got, err := f.CheckString(key)
		if err != nil {
			t.Fatal(err)
		}
		if !got {
			t.Errorf("added key %q not found", key)
		}
	}
	if got := f.NumEntries(); got != 3 {
		t.Errorf("got %d entries, want 3", got)
	}

	// Adding a key again finds all its bits set and still counts as an entry.
	for _, key := range keys {
		dup, err = f.AddString(key)
		if err != nil {
			t.Fatal(err)
		}
		if !dup {
			t.Errorf("re-adding %q did not report its bits already set", key)
		}
	}
	if got := f.NumEntries(); got != 6 {
		t.Errorf("got %d entries after re-adds, want 6", got)
	}

	// Three distinct keys at seven hashes each set at most 21 bits,
	// and re-adds set none.
	if got := f.Popcount(); got < 1 || got > 21 {
		t.Errorf("got popcount %d, want between 1 and 21", got)
	}
	if got := f.FalseProb(); got <= 0 || got >= 1 {
		t.Errorf("got false-positive probability %g, want in (0, 1)", got)
	}

	// Exact false-positive counts depend on the hash function, so
	// bound them loosely instead of pinning them.
	var fps int
	for _, key := range keys {
		for i := 0; i < 1000; i++ {
			got, err := f.CheckString(fmt.Sprintf("%s#%d", key, i))
			if err != nil {
				t.Fatal(err)
			}
			if got {
				fps++
			}
		}
	}
	if fps > 25 {
		t.Errorf("got %d false positives in 3000 probes of a 1%% filter", fps)
	}
}

func TestFilterUsage(t *testing.T) {
	var f Filter
	if _, err := f.AddString("x"); !errors.Is(err, ErrUsage) {
		t.Errorf("adding to an uninitialized filter: got error %v, want ErrUsage", err)
	}
	if _, err := f.Add([]byte("x")); !errors.Is(err, ErrUsage) {
		t.Errorf("adding to an uninitialized filter: got error %v, want ErrUsage", err)
	}
	if _, err := f.CheckString("x"); !errors.Is(err, ErrUsage) {
		t.Errorf("checking an uninitialized filter: got error %v, want ErrUsage", err)
	}
	if _, err := f.Check([]byte("x")); !errors.Is(err, ErrUsage) {
		t.Errorf("checking an uninitialized filter: got error %v, want ErrUsage", err)
	}
	if _, err := f.WriteTo(io.Discard); !errors.Is(err, ErrUsage) {
		t.Errorf("serializing an uninitialized filter: got error %v, want ErrUsage", err)
	}
}

func TestFilterConstruction(t *testing.T) {
	cases := []struct {
		name  string
		nvals uint64
		fprob float64
		opts  []Option
	}{
		{name: "zero entries", nvals: 0, fprob: 0.01},
		{name: "zero fprob", nvals: 10, fprob: 0},
		{name: "fprob over 1", nvals: 10, fprob: 1.5},
		{name: "degenerate fprob", nvals: 10, fprob: 0.99},
		{name: "over the bit cap", nvals: 100, fprob: 1e-5, opts: []Option{MaxBits(1000)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.nvals, tc.fprob, tc.opts...); !errors.Is(err, ErrConstruction) {
				t.Errorf("got error %v, want ErrConstruction", err)
			}
		})
	}

	f, err := New(100, 1e-5, MaxBits(4096))
	if err != nil {
		t.Fatal(err)
	}
	if got := f.SizeBits(); got != 2397 {
		t.Errorf("got %d bits, want 2397", got)
	}
}

func TestFilterInit(t *testing.T) {
	f, err := New(10, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = f.AddString("hello"); err != nil {
		t.Fatal(err)
	}

	// Reinitializing discards the old contents.
	if err = f.Init(10, 0.01); err != nil {
		t.Fatal(err)
	}
	if got := f.NumEntries(); got != 0 {
		t.Errorf("got %d entries after reinit, want 0", got)
	}
	if got := f.Popcount(); got != 0 {
		t.Errorf("got popcount %d after reinit, want 0", got)
	}
	got, err := f.CheckString("hello")
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("reinitialized filter still reports a key from before")
	}
}

func TestFilterEqual(t *testing.T) {
	f, err := New(10, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	g, err := New(10, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"hello", "world"} {
		if _, err = f.AddString(key); err != nil {
			t.Fatal(err)
		}
		if _, err = g.AddString(key); err != nil {
			t.Fatal(err)
		}
	}
	if !f.Equal(g) {
		t.Error("identically built filters are not Equal")
	}
	if _, err = g.AddString("xxx"); err != nil {
		t.Fatal(err)
	}
	if f.Equal(g) {
		t.Error("filters with different contents are Equal")
	}

	h, err := New(100, 1e-5)
	if err != nil {
		t.Fatal(err)
	}
	if f.Equal(h) {
		t.Error("filters with different geometry are Equal")
	}
}
