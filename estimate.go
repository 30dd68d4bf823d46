package bloom

import (
	"math"

	"github.com/pkg/errors"
)

// ErrConstruction is the error for filter parameters that cannot
// produce a usable filter: a zero expected-entry count, a
// false-positive probability outside its domain, or a bit-count
// estimate over the caller's cap.
var ErrConstruction = errors.New("invalid filter construction")

// The estimators below are the standard closed forms relating a Bloom
// filter's size m (bits), hash count k, entry count n, and
// false-positive probability p. They are pure functions; New and Init
// apply EstimateBits and EstimateHashes to size a filter.

// EstimateBits returns the optimal number of bits for a filter
// expecting n entries at target false-positive probability p,
// ceil(n·ln p / ln(1/2^ln 2)).
func EstimateBits(n uint64, p float64) (uint64, error) {
	if n == 0 {
		return 0, errors.Wrap(ErrConstruction, "estimating bits for zero entries")
	}
	if p <= 0 || p > 1 {
		return 0, errors.Wrapf(ErrConstruction, "false-positive probability %v outside (0, 1]", p)
	}
	return uint64(math.Ceil(float64(n) * math.Log(p) / math.Log(1/math.Pow(2, math.Ln2)))), nil
}

// EstimateHashes returns the optimal number of hashes for a filter of
// m bits expecting n entries, round((m/n)·ln 2).
func EstimateHashes(m, n uint64) (uint64, error) {
	if n == 0 {
		return 0, errors.Wrap(ErrConstruction, "estimating hashes for zero entries")
	}
	return uint64(math.Round(float64(m) / float64(n) * math.Ln2)), nil
}

// EstimateEntries returns how many entries a filter of m bits and k
// hashes can hold before its false-positive probability exceeds p.
func EstimateEntries(m, k uint64, p float64) (uint64, error) {
	if k == 0 {
		return 0, errors.Wrap(ErrConstruction, "estimating entries for zero hashes")
	}
	if p <= 0 || p >= 1 {
		return 0, errors.Wrapf(ErrConstruction, "false-positive probability %v outside (0, 1)", p)
	}
	return uint64(math.Ceil(float64(m) / -(float64(k) / math.Log(1-math.Exp(math.Log(p)/float64(k)))))), nil
}

// FalseProb returns the false-positive probability of a filter of m
// bits and k hashes after n entries, (1 - e^(-k·n/m))^k. The estimate
// assumes independent, uniformly distributed insertions; it is not the
// empirical rate once duplicate or correlated keys are inserted.
func FalseProb(m, k, n uint64) float64 {
	return math.Pow(1-math.Exp(-float64(k)/(float64(m)/float64(n))), float64(k))
}
