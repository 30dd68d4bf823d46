package bits

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/DEShawResearch/bloom123/netstring"
)

// A checkpoint is the decimal bit length, one space, and then three
// netstrings: an eight-byte magic tag, the word array as raw bytes,
// and the 32-char lowercase hex digest (128-bit xxh3) of those bytes.
//
// The magic tag is the word 0x7a6f594e382d4567 in the writer's native
// byte order ("gE-8NYoz" when little-endian), and the word array is
// rendered in that same order. Byte-order mismatches between writer
// and reader are detected, not corrected: the reader's magic check
// fails rather than letting the payload restore scrambled.

const (
	magicWord = 0x7a6f594e382d4567
	magicLen  = 8
	digestLen = 32

	// words staged per read/write syscall
	scratchWords = 4096
)

var (
	// ErrFormat means a checkpoint stream did not match the checkpoint grammar.
	ErrFormat = errors.New("bad checkpoint format")

	// ErrIntegrity means a well-formed checkpoint failed its magic or
	// digest check: the stream was written on a machine with a foreign
	// byte order, is not a checkpoint at all, or has been corrupted.
	ErrIntegrity = errors.New("checkpoint integrity check failed")
)

func magicBytes() [magicLen]byte {
	var b [magicLen]byte
	binary.NativeEndian.PutUint64(b[:], magicWord)
	return b
}

func hexDigest(sum xxh3.Uint128) []byte {
	b := sum.Bytes()
	dst := make([]byte, digestLen)
	hex.Encode(dst, b[:])
	return dst
}

// WriteTo writes v's checkpoint to w,
// returning the number of bytes written.
// The stream restores only on machines with this machine's byte order;
// ReadFrom detects the mismatch elsewhere via the magic tag.
func (v *Vector) WriteTo(w io.Writer) (int64, error) {
	var total int64

	n, err := fmt.Fprintf(w, "%d ", v.nbits)
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "writing bit length")
	}

	magic := magicBytes()
	n, err = netstring.Write(w, magic[:])
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "writing magic")
	}

	// The payload netstring is framed by hand so the words can stream
	// through a fixed-size buffer instead of a full-size copy.
	n, err = fmt.Fprintf(w, "%d:", v.SizeBytes())
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "writing payload length")
	}

	var (
		h       = xxh3.New()
		scratch [scratchWords * 8]byte
	)
	for off := 0; off < len(v.words); {
		cw := len(v.words) - off
		if cw > scratchWords {
			cw = scratchWords
		}
		bb := scratch[:8*cw]
		for i, word := range v.words[off : off+cw] {
			binary.NativeEndian.PutUint64(bb[8*i:], word)
		}
		h.Write(bb)
		n, err = w.Write(bb)
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "writing payload")
		}
		off += cw
	}

	n, err = io.WriteString(w, ",")
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "closing payload")
	}

	n, err = netstring.Write(w, hexDigest(h.Sum128()))
	total += int64(n)
	return total, errors.Wrap(err, "writing digest")
}

// ReadFrom restores v from the checkpoint in r,
// replacing v's contents entirely; a restore never merges.
// It returns the number of checkpoint bytes consumed.
//
// The restore is transactional: v changes only after the whole
// checkpoint parses and passes its magic and digest checks,
// so a failed restore leaves v exactly as it was.
//
// Errors wrap ErrFormat when the stream does not match the checkpoint
// grammar and ErrIntegrity when the magic or digest check fails.
//
// The payload is read with a single allocation, sized from the
// checkpoint's (validated) lengths.
//
// If r does not implement io.ByteReader, ReadFrom wraps it in a
// bufio.Reader and may buffer past the end of the checkpoint;
// pass a bufio.Reader yourself when trailing stream data matters.
func (v *Vector) ReadFrom(r io.Reader) (int64, error) {
	nr, ok := r.(netstring.Reader)
	if !ok {
		nr = bufio.NewReader(r)
	}
	cr := &countingReader{r: nr}

	nbits, words, err := readCheckpoint(cr)
	if err != nil {
		return cr.n, err
	}

	v.nbits = nbits
	v.words = words
	return cr.n, nil
}

func readCheckpoint(r netstring.Reader) (uint64, []uint64, error) {
	nbits, err := readBitLength(r)
	if err != nil {
		return 0, nil, err
	}
	if nbits > math.MaxUint64-63 || nwords(nbits) > math.MaxInt/8 {
		return 0, nil, errors.Wrapf(ErrFormat, "implausible bit length %d", nbits)
	}

	magicNS, err := netstring.Read(r)
	if err != nil {
		return 0, nil, errors.Wrapf(ErrFormat, "reading magic: %v", err)
	}
	magic := magicBytes()
	if !bytes.Equal(magicNS, magic[:]) {
		return 0, nil, errors.Wrapf(ErrIntegrity,
			"bad magic %q, want %q (foreign byte order, or not a checkpoint)", magicNS, magic[:])
	}

	payloadLen, err := netstring.ReadLen(r)
	if err != nil {
		return 0, nil, errors.Wrapf(ErrFormat, "reading payload length: %v", err)
	}
	if want := nwords(nbits) * 8; payloadLen != want {
		return 0, nil, errors.Wrapf(ErrFormat,
			"payload is %d bytes, want %d for %d bits", payloadLen, want, nbits)
	}

	var (
		words   = make([]uint64, nwords(nbits))
		h       = xxh3.New()
		scratch [scratchWords * 8]byte
	)
	for off := 0; off < len(words); {
		cw := len(words) - off
		if cw > scratchWords {
			cw = scratchWords
		}
		bb := scratch[:8*cw]
		if _, err := io.ReadFull(r, bb); err != nil {
			return 0, nil, errors.Wrapf(ErrFormat, "reading %d-byte payload: %v", payloadLen, err)
		}
		h.Write(bb)
		for i := 0; i < cw; i++ {
			words[off+i] = binary.NativeEndian.Uint64(bb[8*i:])
		}
		off += cw
	}
	if err := netstring.ReadClose(r); err != nil {
		return 0, nil, errors.Wrapf(ErrFormat, "closing payload: %v", err)
	}

	digest, err := netstring.Read(r)
	if err != nil {
		return 0, nil, errors.Wrapf(ErrFormat, "reading digest: %v", err)
	}
	if want := hexDigest(h.Sum128()); !bytes.Equal(digest, want) {
		return 0, nil, errors.Wrapf(ErrIntegrity,
			"digest mismatch: stream says %q, payload hashes to %q", digest, want)
	}

	return nbits, words, nil
}

// readBitLength scans the decimal bit length and the single space after it.
func readBitLength(r netstring.Reader) (uint64, error) {
	c, err := r.ReadByte()
	if err != nil {
		return 0, errors.Wrapf(ErrFormat, "reading bit length: %v", err)
	}
	if c < '0' || c > '9' {
		return 0, errors.Wrapf(ErrFormat, "bit length begins with %q, want digit", c)
	}

	var nbits uint64
	for {
		if c == ' ' {
			return nbits, nil
		}
		if c < '0' || c > '9' {
			return 0, errors.Wrapf(ErrFormat, "unexpected byte %q in bit length", c)
		}
		d := uint64(c - '0')
		if nbits > (math.MaxUint64-d)/10 {
			return 0, errors.Wrap(ErrFormat, "bit length overflows uint64")
		}
		nbits = nbits*10 + d

		c, err = r.ReadByte()
		if err != nil {
			return 0, errors.Wrapf(ErrFormat, "reading bit length: %v", err)
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
