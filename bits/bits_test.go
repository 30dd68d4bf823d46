package bits

import (
	"bytes"
	"testing"
)

// ranges of bits exercised by the workout tests, [lo, hi)
var testRanges = [][2]uint64{{0, 5}, {58, 66}, {296, 300}}

func inRanges(ranges [][2]uint64, i uint64) bool {
	for _, r := range ranges {
		if i >= r[0] && i < r[1] {
			return true
		}
	}
	return false
}

func TestVectorRanges(t *testing.T) {
	const nbits = 300

	v := New(nbits)
	if got := v.SizeBits(); got != nbits {
		t.Fatalf("got SizeBits %d, want %d", got, nbits)
	}
	if got, want := v.Words(), uint64(5); got != want {
		t.Fatalf("got Words %d, want %d", got, want)
	}
	if got, want := v.SizeBytes(), uint64(40); got != want {
		t.Fatalf("got SizeBytes %d, want %d", got, want)
	}
	for i := uint64(0); i < nbits; i++ {
		if v.Get(i) {
			t.Fatalf("new vector has bit %d set", i)
		}
	}
	if got := v.Popcount(); got != 0 {
		t.Fatalf("new vector has popcount %d", got)
	}

	var want uint64
	for _, r := range testRanges {
		for i := r[0]; i < r[1]; i++ {
			if v.Set(i) {
				t.Errorf("first Set(%d) reported the bit already set", i)
			}
			want++
		}
	}
	for i := uint64(0); i < nbits; i++ {
		if got := v.Get(i); got != inRanges(testRanges, i) {
			t.Errorf("after set, Get(%d) = %v", i, got)
		}
	}
	if got := v.Popcount(); got != want {
		t.Errorf("got popcount %d, want %d", got, want)
	}

	// setting again reports the prior value
	for _, r := range testRanges {
		for i := r[0]; i < r[1]; i++ {
			if !v.Set(i) {
				t.Errorf("second Set(%d) reported the bit clear", i)
			}
		}
	}

	// unset the middle range and nothing else
	mid := testRanges[1]
	for i := mid[0]; i < mid[1]; i++ {
		if !v.Unset(i) {
			t.Errorf("Unset(%d) reported the bit clear", i)
		}
		want--
	}
	for i := mid[0]; i < mid[1]; i++ {
		if v.Unset(i) {
			t.Errorf("second Unset(%d) reported the bit set", i)
		}
	}
	for i := uint64(0); i < nbits; i++ {
		wantBit := inRanges(testRanges, i) && !inRanges([][2]uint64{mid}, i)
		if got := v.Get(i); got != wantBit {
			t.Errorf("after unset, Get(%d) = %v, want %v", i, got, wantBit)
		}
	}
	if got := v.Popcount(); got != want {
		t.Errorf("got popcount %d, want %d", got, want)
	}

	// a cleared vector is indistinguishable from a fresh one,
	// checkpoint bytes included
	v.Clear()
	if got := v.Popcount(); got != 0 {
		t.Errorf("got popcount %d after Clear", got)
	}
	var cleared, fresh bytes.Buffer
	if _, err := v.WriteTo(&cleared); err != nil {
		t.Fatal(err)
	}
	if _, err := New(nbits).WriteTo(&fresh); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cleared.Bytes(), fresh.Bytes()) {
		t.Error("cleared vector and fresh vector produce different checkpoints")
	}
}

func TestVectorWordSizing(t *testing.T) {
	cases := []struct {
		nbits, words uint64
	}{
		{nbits: 0, words: 0},
		{nbits: 1, words: 1},
		{nbits: 63, words: 1},
		{nbits: 64, words: 1},
		{nbits: 65, words: 2},
		{nbits: 128, words: 2},
		{nbits: 129, words: 3},
		{nbits: 300, words: 5},
	}
	for _, c := range cases {
		v := New(c.nbits)
		if got := v.Words(); got != c.words {
			t.Errorf("New(%d).Words() = %d, want %d", c.nbits, got, c.words)
		}
		if got, want := v.SizeBytes(), c.words*8; got != want {
			t.Errorf("New(%d).SizeBytes() = %d, want %d", c.nbits, got, want)
		}
	}
}

func TestVectorCheckedPanics(t *testing.T) {
	v := New(300)

	cases := []struct {
		name string
		f    func()
	}{
		{name: "Get", f: func() { v.Get(300) }},
		{name: "Set", f: func() { v.Set(300) }},
		{name: "Unset", f: func() { v.Unset(1 << 40) }},
		{name: "GetEmpty", f: func() { New(0).Get(0) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("out-of-range access did not panic")
				}
			}()
			c.f()
		})
	}
}

func TestVectorUnchecked(t *testing.T) {
	v := New(100)
	if v.SetUnchecked(99) {
		t.Error("first SetUnchecked(99) reported the bit already set")
	}
	if !v.GetUnchecked(99) {
		t.Error("GetUnchecked(99) = false after set")
	}
	if !v.UnsetUnchecked(99) {
		t.Error("UnsetUnchecked(99) reported the bit clear")
	}
	if v.GetUnchecked(99) {
		t.Error("GetUnchecked(99) = true after unset")
	}
}

func TestVectorClone(t *testing.T) {
	v := New(130)
	v.Set(0)
	v.Set(129)

	w := v.Clone()
	if !v.Equal(w) {
		t.Fatal("clone differs from original")
	}

	w.Set(64)
	if v.Get(64) {
		t.Error("mutating the clone mutated the original")
	}
	v.Unset(0)
	if !w.Get(0) {
		t.Error("mutating the original mutated the clone")
	}
}

func TestVectorEqual(t *testing.T) {
	a := New(100)
	b := New(100)
	if !a.Equal(b) {
		t.Error("fresh same-length vectors are unequal")
	}
	b.Set(50)
	if a.Equal(b) {
		t.Error("vectors with different bits are equal")
	}
	if a.Equal(New(101)) {
		t.Error("vectors with different lengths are equal")
	}

	// padding beyond SizeBits does not count
	if !New(65).Equal(New(65)) {
		t.Error("fresh 65-bit vectors are unequal")
	}
}

func TestVectorInit(t *testing.T) {
	v := New(100)
	v.Set(3)
	v.Init(10)
	if got := v.SizeBits(); got != 10 {
		t.Fatalf("got SizeBits %d after Init, want 10", got)
	}
	if got := v.Popcount(); got != 0 {
		t.Errorf("got popcount %d after Init, want 0", got)
	}
}

func TestVectorZeroLength(t *testing.T) {
	var v Vector // the zero Vector is a valid zero-length vector
	if got := v.SizeBits(); got != 0 {
		t.Fatalf("got SizeBits %d, want 0", got)
	}
	if got := v.Popcount(); got != 0 {
		t.Fatalf("got popcount %d, want 0", got)
	}
	if !v.Equal(New(0)) {
		t.Error("zero Vector differs from New(0)")
	}
}
