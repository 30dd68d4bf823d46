// Package bits implements a packed vector of bits
// with a self-describing, integrity-checked checkpoint format.
//
// A Vector's checkpoint renders its storage in the machine's native
// byte order; see Vector.WriteTo for the portability consequences.
package bits

import (
	"fmt"
	mathbits "math/bits"
)

const wordBits = 64

// Vector is a packed vector of bits, stored 64 to a word.
//
// Methods are on *Vector and share the underlying storage;
// copying a Vector value aliases that storage.
// Use Clone for an independent copy.
// The zero Vector is a valid zero-length vector.
type Vector struct {
	nbits uint64
	words []uint64
}

// New produces a new Vector of nbits bits, all clear.
func New(nbits uint64) *Vector {
	v := new(Vector)
	v.Init(nbits)
	return v
}

// Init reinitializes v to nbits bits, all clear,
// discarding its previous contents.
func (v *Vector) Init(nbits uint64) {
	v.nbits = nbits
	v.words = make([]uint64, nwords(nbits))
}

func nwords(nbits uint64) uint64 {
	return (nbits + wordBits - 1) / wordBits
}

// SizeBits returns the number of bits in v.
//
// The size accessors are named for their units
// because an unqualified "length" invites bit/byte/word confusion.
func (v *Vector) SizeBits() uint64 { return v.nbits }

// SizeBytes returns the number of bytes in v's storage, eight per word.
// Up to 63 of the corresponding bits are padding past SizeBits.
func (v *Vector) SizeBytes() uint64 { return uint64(len(v.words)) * 8 }

// Words returns the number of 64-bit words in v's storage.
func (v *Vector) Words() uint64 { return uint64(len(v.words)) }

func locate(i uint64) (word, mask uint64) {
	return i / wordBits, 1 << (i % wordBits)
}

func (v *Vector) check(i uint64) {
	if i >= v.nbits {
		panic(fmt.Sprintf("bits: index %d out of range in %d-bit vector", i, v.nbits))
	}
}

// Get reports whether bit i is set.
// Like a slice index, it panics if i is out of range.
func (v *Vector) Get(i uint64) bool {
	v.check(i)
	return v.GetUnchecked(i)
}

// GetUnchecked is Get without the range check.
// The caller must ensure i < SizeBits().
func (v *Vector) GetUnchecked(i uint64) bool {
	w, mask := locate(i)
	return v.words[w]&mask != 0
}

// Set sets bit i, reporting whether it was set beforehand.
// Like a slice index, it panics if i is out of range.
func (v *Vector) Set(i uint64) bool {
	v.check(i)
	return v.SetUnchecked(i)
}

// SetUnchecked is Set without the range check.
// The caller must ensure i < SizeBits().
func (v *Vector) SetUnchecked(i uint64) bool {
	w, mask := locate(i)
	prior := v.words[w]&mask != 0
	v.words[w] |= mask
	return prior
}

// Unset clears bit i, reporting whether it was set beforehand.
// Like a slice index, it panics if i is out of range.
func (v *Vector) Unset(i uint64) bool {
	v.check(i)
	return v.UnsetUnchecked(i)
}

// UnsetUnchecked is Unset without the range check.
// The caller must ensure i < SizeBits().
func (v *Vector) UnsetUnchecked(i uint64) bool {
	w, mask := locate(i)
	prior := v.words[w]&mask != 0
	v.words[w] &^= mask
	return prior
}

// Popcount returns the number of set bits.
func (v *Vector) Popcount() uint64 {
	var n int
	for _, w := range v.words {
		n += mathbits.OnesCount64(w)
	}
	return uint64(n)
}

// Clear clears every bit, preserving the length.
func (v *Vector) Clear() {
	for i := range v.words {
		v.words[i] = 0
	}
}

// Clone returns an independent copy of v.
func (v *Vector) Clone() *Vector {
	w := &Vector{nbits: v.nbits, words: make([]uint64, len(v.words))}
	copy(w.words, v.words)
	return w
}

// Equal reports whether v and w have the same length and the same bits.
func (v *Vector) Equal(w *Vector) bool {
	if v.nbits != w.nbits {
		return false
	}
	for i, x := range v.words {
		if x != w.words[i] {
			return false
		}
	}
	return true
}
