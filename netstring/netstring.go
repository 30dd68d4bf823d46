// Package netstring implements netstring framing for byte strings:
// the payload's decimal length, a colon, the payload bytes, a comma.
// For example, "hello" frames as "5:hello," and the empty string as "0:,".
package netstring

import (
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// ErrSyntax is the error for malformed netstring input.
// Errors returned by the Read functions wrap it.
var ErrSyntax = errors.New("netstring syntax error")

// Reader is the input type for Read, ReadLen, and ReadClose.
// A bufio.Reader satisfies it.
type Reader interface {
	io.Reader
	io.ByteReader
}

var comma = []byte{','}

// Append appends the netstring framing of payload to dst,
// extending it as needed, and returns the result.
func Append(dst, payload []byte) []byte {
	dst = strconv.AppendUint(dst, uint64(len(payload)), 10)
	dst = append(dst, ':')
	dst = append(dst, payload...)
	return append(dst, ',')
}

// Write writes the netstring framing of payload to w.
// It returns the number of bytes written.
func Write(w io.Writer, payload []byte) (int, error) {
	hdr := strconv.AppendUint(make([]byte, 0, 24), uint64(len(payload)), 10)
	hdr = append(hdr, ':')

	n, err := w.Write(hdr)
	if err != nil {
		return n, errors.Wrap(err, "writing length prefix")
	}

	n2, err := w.Write(payload)
	n += n2
	if err != nil {
		return n, errors.Wrap(err, "writing payload")
	}

	n2, err = w.Write(comma)
	n += n2
	return n, errors.Wrap(err, "writing terminator")
}

// Read reads one netstring from r and returns its payload.
// An empty input produces io.EOF;
// input that ends partway through a netstring,
// or that is not a netstring,
// produces an error wrapping ErrSyntax.
//
// Read allocates the payload from the untrusted length prefix.
// Callers that know how long the payload must be should instead use
// ReadLen, check the length, read the payload themselves,
// and finish with ReadClose.
func Read(r Reader) ([]byte, error) {
	size, err := ReadLen(r)
	if err != nil {
		return nil, err
	}
	if size > math.MaxInt {
		return nil, errors.Wrapf(ErrSyntax, "payload length %d too large", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrapf(ErrSyntax, "reading %d-byte payload: %v", size, err)
	}
	if err := ReadClose(r); err != nil {
		return nil, err
	}
	return payload, nil
}

// ReadLen reads a netstring's length prefix from r,
// consuming input through the colon,
// and returns the payload length.
// If r is already at end of input, the error is io.EOF.
func ReadLen(r Reader) (uint64, error) {
	c, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if c < '0' || c > '9' {
		return 0, errors.Wrapf(ErrSyntax, "length begins with %q, want digit", c)
	}

	var size uint64
	for {
		if c == ':' {
			return size, nil
		}
		if c < '0' || c > '9' {
			return 0, errors.Wrapf(ErrSyntax, "unexpected byte %q in length", c)
		}
		d := uint64(c - '0')
		if size > (math.MaxUint64-d)/10 {
			return 0, errors.Wrap(ErrSyntax, "length overflows uint64")
		}
		size = size*10 + d

		c, err = r.ReadByte()
		if err != nil {
			return 0, errors.Wrapf(ErrSyntax, "reading length: %v", err)
		}
	}
}

// ReadClose consumes a netstring's trailing comma from r.
func ReadClose(r Reader) error {
	c, err := r.ReadByte()
	if err != nil {
		return errors.Wrapf(ErrSyntax, "reading terminator: %v", err)
	}
	if c != ',' {
		return errors.Wrapf(ErrSyntax, "got %q for terminator, want ','", c)
	}
	return nil
}
