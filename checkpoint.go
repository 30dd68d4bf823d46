package bloom

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/bits"
	"github.com/DEShawResearch/bloom123/netstring"
)

// A filter checkpoint is the literal tag, the decimal hash count, the
// decimal entry count, and the embedded vector's checkpoint, separated
// by single spaces. Errors reuse the vector codec's taxonomy:
// bits.ErrFormat for grammar trouble, bits.ErrIntegrity for a payload
// that fails its checks.
const filterTag = "desres_bloom"

// WriteTo writes f's checkpoint to w,
// returning the number of bytes written.
// Like the vector checkpoint it embeds, the stream restores only on
// machines with this machine's byte order.
//
// The zero Filter has no representable checkpoint; WriteTo on it
// returns ErrUsage.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	if f.nhashes == 0 {
		return 0, errors.Wrap(ErrUsage, "serializing filter")
	}

	var total int64

	n, err := fmt.Fprintf(w, "%s %d %d ", filterTag, f.nhashes, f.nentries)
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "writing filter header")
	}

	n64, err := f.bits.WriteTo(w)
	total += n64
	return total, err
}

// ReadFrom restores f from the checkpoint in r,
// replacing f's hash count, entry count, and bits entirely;
// a restore never merges, so restoring into a populated filter
// silently discards its prior entries.
// It returns the number of checkpoint bytes consumed.
//
// Like the vector restore it embeds, it is transactional:
// on any error f is left exactly as it was.
//
// A checkpoint that names a zero hash count does not describe a
// usable filter and fails with bits.ErrFormat.
//
// If r does not implement io.ByteReader, ReadFrom wraps it in a
// bufio.Reader and may buffer past the end of the checkpoint;
// pass a bufio.Reader yourself when trailing stream data matters.
func (f *Filter) ReadFrom(r io.Reader) (int64, error) {
	nr, ok := r.(netstring.Reader)
	if !ok {
		nr = bufio.NewReader(r)
	}
	cr := &countingReader{r: nr}

	if err := readTag(cr); err != nil {
		return cr.n, err
	}
	nhashes, err := readDecimal(cr, "hash count")
	if err != nil {
		return cr.n, err
	}
	if nhashes == 0 {
		return cr.n, errors.Wrap(bits.ErrFormat, "hash count is zero")
	}
	nentries, err := readDecimal(cr, "entry count")
	if err != nil {
		return cr.n, err
	}

	var v bits.Vector
	if _, err := v.ReadFrom(cr); err != nil {
		return cr.n, err
	}

	f.nhashes = nhashes
	f.nentries = nentries
	f.bits = v
	return cr.n, nil
}

// readTag consumes the filter tag and the single space after it.
func readTag(r netstring.Reader) error {
	const want = filterTag + " "
	for i := 0; i < len(want); i++ {
		c, err := r.ReadByte()
		if err != nil {
			return errors.Wrapf(bits.ErrFormat, "reading filter tag: %v", err)
		}
		if c != want[i] {
			return errors.Wrapf(bits.ErrFormat, "filter tag mismatch at byte %d (%q)", i, c)
		}
	}
	return nil
}

// readDecimal scans a decimal field and the single space after it.
func readDecimal(r netstring.Reader, what string) (uint64, error) {
	c, err := r.ReadByte()
	if err != nil {
		return 0, errors.Wrapf(bits.ErrFormat, "reading %s: %v", what, err)
	}
	if c < '0' || c > '9' {
		return 0, errors.Wrapf(bits.ErrFormat, "%s begins with %q, want digit", what, c)
	}

	var n uint64
	for {
		if c == ' ' {
			return n, nil
		}
		if c < '0' || c > '9' {
			return 0, errors.Wrapf(bits.ErrFormat, "unexpected byte %q in %s", c, what)
		}
		d := uint64(c - '0')
		if n > (math.MaxUint64-d)/10 {
			return 0, errors.Wrapf(bits.ErrFormat, "%s overflows uint64", what)
		}
		n = n*10 + d

		c, err = r.ReadByte()
		if err != nil {
			return 0, errors.Wrapf(bits.ErrFormat, "reading %s: %v", what, err)
		}
	}
}

type countingReader struct {
	r netstring.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

func (cr *countingReader) ReadByte() (byte, error) {
	c, err := cr.r.ReadByte()
	if err == nil {
		cr.n++
	}
	return c, err
}
