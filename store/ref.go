// Package store describes a content-addressable blob store.
package store

import (
	"bytes"
	"database/sql/driver"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

type (
	// Blob is the type of a blob.
	Blob []byte

	// Ref is the ref of a blob: its 128-bit xxh3 hash.
	Ref [RefLen]byte
)

// RefLen is the length of a Ref in bytes.
const RefLen = 16

// Ref computes the Ref of a blob.
func (b Blob) Ref() Ref {
	return Ref(xxh3.Hash128(b).Bytes())
}

// Zero is the zero value of a Ref.
var Zero Ref

func (r Ref) String() string {
	return hex.EncodeToString(r[:])
}

func (r Ref) Less(other Ref) bool {
	return bytes.Compare(r[:], other[:]) < 0
}

func (r *Ref) FromHex(s string) error {
	if len(s) != 2*RefLen {
		return errors.New("wrong length")
	}
	_, err := hex.Decode(r[:], []byte(s))
	return errors.Wrap(err, "decoding hex")
}

// Value implements driver.Valuer, so refs can be used directly in SQL queries.
func (r Ref) Value() (driver.Value, error) {
	return r[:], nil
}

// Scan implements sql.Scanner, so refs can be scanned directly from SQL queries.
func (r *Ref) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		if len(src) != RefLen {
			return errors.Errorf("scanning ref: got %d bytes, want %d", len(src), RefLen)
		}
		copy(r[:], src)
		return nil
	case string:
		return r.FromHex(src)
	default:
		return errors.Errorf("scanning ref: unexpected type %T", src)
	}
}

func RefFromBytes(b []byte) Ref {
	var out Ref
	copy(out[:], b)
	return out
}

func RefFromHex(s string) (Ref, error) {
	var out Ref
	err := out.FromHex(s)
	return out, err
}
