package bloom

import (
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/DEShawResearch/bloom123/bits"
)

// ErrUsage is the error for Add, Check, or WriteTo on a Filter that
// has not been initialized by New, Init, or ReadFrom.
var ErrUsage = errors.New("filter not initialized")

// Filter is a Bloom filter over byte-string keys.
//
// A Filter must be sized for its expected load with New or Init,
// or restored from a checkpoint with ReadFrom, before use;
// Add and Check on the zero Filter return ErrUsage.
//
// Methods are on *Filter and share the underlying bit vector;
// copying a Filter value aliases it.
//
// A Filter does no internal locking. Concurrent Checks are safe;
// an Add concurrent with anything else needs external mutual exclusion.
type Filter struct {
	bits     bits.Vector
	nhashes  uint64
	nentries uint64
}

// Option is a construction option for New and Init.
type Option func(*options)

type options struct {
	maxBits uint64
}

// MaxBits caps the number of bits a filter may be sized to.
// New and Init fail with ErrConstruction when the requested load
// needs a bigger filter than the cap allows,
// rather than quietly building a filter that cannot deliver
// its false-positive probability.
func MaxBits(limit uint64) Option {
	return func(o *options) {
		o.maxBits = limit
	}
}

// New produces a Filter sized for nvals entries
// at target false-positive probability fprob.
func New(nvals uint64, fprob float64, opts ...Option) (*Filter, error) {
	f := new(Filter)
	err := f.Init(nvals, fprob, opts...)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Init sizes f for nvals entries at target false-positive probability
// fprob, discarding any previous contents and zeroing the entry count.
func (f *Filter) Init(nvals uint64, fprob float64, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m, err := EstimateBits(nvals, fprob)
	if err != nil {
		return err
	}
	if o.maxBits != 0 && m > o.maxBits {
		return errors.Wrapf(ErrConstruction,
			"%d entries at false-positive probability %v need %d bits, over the cap of %d",
			nvals, fprob, m, o.maxBits)
	}
	k, err := EstimateHashes(m, nvals)
	if err != nil {
		return err
	}
	if m == 0 || k == 0 {
		// Happens only for fprob near 1, where the estimators round to
		// a filter with nothing to probe.
		return errors.Wrapf(ErrConstruction,
			"false-positive probability %v estimates a degenerate filter (%d bits, %d hashes)",
			fprob, m, k)
	}

	f.bits.Init(m)
	f.nhashes = k
	f.nentries = 0
	return nil
}

// probes derives the filter's probe sequence for a key from the two
// 64-bit lanes of its xxh3 hash: index i is (lo + i·hi) mod SizeBits,
// with wraparound arithmetic. Double hashing approximates nhashes
// independent hash functions at the cost of one.
type probes struct {
	lo, hi, m uint64
}

func (f *Filter) probes(data []byte) probes {
	h := xxh3.Hash128(data)
	return probes{lo: h.Lo, hi: h.Hi, m: f.bits.SizeBits()}
}

func (p *probes) next() uint64 {
	i := p.lo % p.m
	p.lo += p.hi
	return i
}

// Add inserts data as a key, growing the entry count by one whether or
// not an equal key was added before (entries are counted, not
// deduplicated).
//
// The returned bool reports whether every probed bit was already set,
// that is, whether data looked like a duplicate on the way in. It is a
// byproduct of the insertion and NOT a membership test: the filter
// mutates regardless of its value, and it is exactly as prone to false
// positives as Check. Use Check to query.
func (f *Filter) Add(data []byte) (bool, error) {
	if f.bits.SizeBits() == 0 {
		return false, errors.Wrap(ErrUsage, "adding to filter")
	}

	var (
		p   = f.probes(data)
		dup = true
	)
	for n := uint64(0); n < f.nhashes; n++ {
		if !f.bits.SetUnchecked(p.next()) {
			dup = false
		}
	}
	f.nentries++
	return dup, nil
}

// AddString is Add for a string key.
func (f *Filter) AddString(s string) (bool, error) {
	return f.Add([]byte(s))
}

// Check reports whether data was possibly added before: false means
// definitely not, true means probably, with false positives at
// roughly the FalseProb rate. It never mutates the filter.
func (f *Filter) Check(data []byte) (bool, error) {
	if f.bits.SizeBits() == 0 {
		return false, errors.Wrap(ErrUsage, "checking filter")
	}

	p := f.probes(data)
	for n := uint64(0); n < f.nhashes; n++ {
		if !f.bits.GetUnchecked(p.next()) {
			return false, nil
		}
	}
	return true, nil
}

// CheckString is Check for a string key.
func (f *Filter) CheckString(s string) (bool, error) {
	return f.Check([]byte(s))
}

// NumHashes returns the number of bits probed per key.
func (f *Filter) NumHashes() uint64 { return f.nhashes }

// NumEntries returns the number of Add calls recorded, duplicates included.
func (f *Filter) NumEntries() uint64 { return f.nentries }

// SizeBits returns the size of the filter's bit vector in bits.
func (f *Filter) SizeBits() uint64 { return f.bits.SizeBits() }

// SizeBytes returns the size of the filter's bit vector in bytes.
func (f *Filter) SizeBytes() uint64 { return f.bits.SizeBytes() }

// Popcount returns the number of set bits in the filter.
func (f *Filter) Popcount() uint64 { return f.bits.Popcount() }

// FalseProb returns the estimated false-positive probability of Check
// at the current entry count.
func (f *Filter) FalseProb() float64 {
	return FalseProb(f.bits.SizeBits(), f.nhashes, f.nentries)
}

// Equal reports whether f and g have the same hash count, entry count,
// and bit-for-bit contents.
func (f *Filter) Equal(g *Filter) bool {
	return f.nhashes == g.nhashes &&
		f.nentries == g.nentries &&
		f.bits.Equal(&g.bits)
}
