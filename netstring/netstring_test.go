package netstring

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestWrite(t *testing.T) {
	cases := []struct {
		payload string
		want    string
	}{
		{payload: "", want: "0:,"},
		{payload: "hello", want: "5:hello,"},
		{payload: "hello world", want: "11:hello world,"},
		{payload: "\x00\xff\x00", want: "3:\x00\xff\x00,"},
		{payload: strings.Repeat("x", 100), want: "100:" + strings.Repeat("x", 100) + ","},
	}

	for _, c := range cases {
		buf := new(bytes.Buffer)
		n, err := Write(buf, []byte(c.payload))
		if err != nil {
			t.Fatal(err)
		}
		if got := buf.String(); got != c.want {
			t.Errorf("Write(%q) wrote %q, want %q", c.payload, got, c.want)
		}
		if n != len(c.want) {
			t.Errorf("Write(%q) reported %d bytes, want %d", c.payload, n, len(c.want))
		}

		if got := Append(nil, []byte(c.payload)); string(got) != c.want {
			t.Errorf("Append(nil, %q) = %q, want %q", c.payload, got, c.want)
		}
	}
}

func TestAppendExtends(t *testing.T) {
	got := Append([]byte("prefix "), []byte("ab"))
	if string(got) != "prefix 2:ab," {
		t.Errorf("got %q, want %q", got, "prefix 2:ab,")
	}
}

func TestRead(t *testing.T) {
	cases := []struct {
		inp  string
		want string
		rest string
	}{
		{inp: "0:,", want: ""},
		{inp: "5:hello,", want: "hello"},
		{inp: "5:hello,trailing", want: "hello", rest: "trailing"},
		{inp: "005:hello,", want: "hello"}, // leading zeros are harmless
		{inp: "2:,,,", want: ",,"},
		{inp: "3:\x00\xff\x00,", want: "\x00\xff\x00"},
	}

	for _, c := range cases {
		r := bufio.NewReader(strings.NewReader(c.inp))
		got, err := Read(r)
		if err != nil {
			t.Fatalf("Read(%q): %v", c.inp, err)
		}
		if string(got) != c.want {
			t.Errorf("Read(%q) = %q, want %q", c.inp, got, c.want)
		}
		rest, _ := io.ReadAll(r)
		if string(rest) != c.rest {
			t.Errorf("Read(%q) left %q unread, want %q", c.inp, rest, c.rest)
		}
	}
}

func TestReadErrors(t *testing.T) {
	cases := []struct {
		inp     string
		wantErr error
	}{
		{inp: "", wantErr: io.EOF},
		{inp: "5", wantErr: ErrSyntax},       // input ends in the length
		{inp: "5:hel", wantErr: ErrSyntax},   // input ends in the payload
		{inp: "5:hello", wantErr: ErrSyntax}, // no terminator
		{inp: "5:hello;", wantErr: ErrSyntax},
		{inp: ":hello,", wantErr: ErrSyntax},
		{inp: "hello", wantErr: ErrSyntax},
		{inp: "5x:hello,", wantErr: ErrSyntax},
		{inp: "-5:hello,", wantErr: ErrSyntax},
		{inp: "99999999999999999999:x,", wantErr: ErrSyntax}, // length overflows uint64
	}

	for _, c := range cases {
		r := bufio.NewReader(strings.NewReader(c.inp))
		_, err := Read(r)
		if !errors.Is(err, c.wantErr) {
			t.Errorf("Read(%q) = error %v, want %v", c.inp, err, c.wantErr)
		}
	}
}

func TestReadRoundTrip(t *testing.T) {
	payloads := []string{"", "a", "hello world", strings.Repeat("zyx", 5000)}

	buf := new(bytes.Buffer)
	for _, p := range payloads {
		if _, err := Write(buf, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}

	r := bufio.NewReader(buf)
	for _, p := range payloads {
		got, err := Read(r)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != p {
			t.Errorf("got %q, want %q", got, p)
		}
	}
	if _, err := Read(r); !errors.Is(err, io.EOF) {
		t.Errorf("got %v after last netstring, want io.EOF", err)
	}
}

func TestReadLenAndClose(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("11:hello world,"))
	size, err := ReadLen(r)
	if err != nil {
		t.Fatal(err)
	}
	if size != 11 {
		t.Fatalf("got length %d, want 11", size)
	}
	payload := make([]byte, size)
	if _, err = io.ReadFull(r, payload); err != nil {
		t.Fatal(err)
	}
	if string(payload) != "hello world" {
		t.Errorf("got payload %q", payload)
	}
	if err = ReadClose(r); err != nil {
		t.Error(err)
	}
}
