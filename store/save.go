package store

import (
	"bytes"
	"context"
	"io"

	"github.com/pkg/errors"
)

// Save serializes src and puts the result in s as a single blob,
// returning the blob's ref.
// Anything implementing io.WriterTo works as a source;
// in this module that is a bits.Vector or a bloom.Filter.
func Save(ctx context.Context, s Store, src io.WriterTo) (Ref, error) {
	buf := new(bytes.Buffer)
	if _, err := src.WriteTo(buf); err != nil {
		return Ref{}, errors.Wrap(err, "serializing")
	}
	ref, _, err := s.Put(ctx, buf.Bytes())
	return ref, errors.Wrap(err, "storing blob")
}

// Restore gets the blob with the given ref from g
// and loads it into dest with a single ReadFrom call.
// Errors from ReadFrom are returned unwrapped,
// so callers can test them against the codec's error kinds
// (such as bits.ErrFormat and bits.ErrIntegrity).
func Restore(ctx context.Context, g Getter, ref Ref, dest io.ReaderFrom) error {
	b, err := g.Get(ctx, ref)
	if err != nil {
		return errors.Wrapf(err, "getting blob %s", ref)
	}
	_, err = dest.ReadFrom(bytes.NewReader(b))
	return err
}
