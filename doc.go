// Package bloom implements a Bloom filter:
// a probabilistic set that answers membership queries
// with no false negatives
// and a tunable rate of false positives.
//
// A filter is sized up front from two numbers:
// how many entries it expects to hold,
// and what false-positive probability it should deliver at that load.
// The closed-form estimators relating
// bit count, hash count, entry count, and error rate
// are exported for capacity planning.
//
// Adding a key never fails,
// and a negative answer from Check is always right.
// A positive answer is only probably right:
// each Check probes a handful of bits chosen by double hashing,
// and a filter near its design load
// has all of some absent key's bits set
// about as often as the false-positive probability promises.
// FalseProb reports the current estimate as the filter fills.
//
// Filters and their underlying bit vectors checkpoint themselves
// to ordinary byte streams in a self-describing,
// integrity-checked format
// (see the bits subpackage),
// so a long-running process can snapshot its filter periodically
// and restore it after a restart.
// Restoring is strictly a replacement,
// never a merge:
// reading a checkpoint into a populated filter
// silently discards the prior entries.
//
// The store, anchor, and split subpackages persist checkpoints
// as content-addressed blobs with named, timestamped histories,
// in memory, on the filesystem, in SQLite or PostgreSQL,
// or in Google Cloud Storage or Bigtable.
//
// One hash function serves the whole module:
// 128-bit xxh3,
// whose two 64-bit lanes drive the filter's probe sequence,
// whose hex digest guards checkpoint payloads,
// and whose value addresses checkpoint blobs in a store.
package bloom
