// Package gcs implements a blob store on Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/hex"
	stderrs "errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

var _ anchor.Store = &Store{}

// Store is a Google Cloud Storage-based implementation of a blob store.
//
// A blob with ref R is stored in an object named "b:" + R's hex encoding.
// An anchor (NAME, REF, AT) is stored in an object named
// "a:" + NAME's hex encoding + ":" + a thirty-digit inverted timestamp,
// whose content is REF's bytes.
// Inverting the timestamps makes anchor objects list in reverse chronological order,
// since the latest anchor is usually the one wanted.
type Store struct {
	bucket *storage.BucketHandle
}

// New produces a new Store.
func New(bucket *storage.BucketHandle) *Store {
	return &Store{bucket: bucket}
}

// Get gets the blob with hash `ref`.
func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Blob, error) {
	name := blobObjName(ref)
	obj := s.bucket.Object(name)
	r, err := obj.NewReader(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading info of object %s", name)
	}
	defer r.Close()

	b := make([]byte, r.Attrs.Size)
	_, err = io.ReadFull(r, b)
	return b, errors.Wrapf(err, "reading contents of object %s", name)
}

// Put adds a blob to the store if it wasn't already present.
// The write is conditional on the object not existing,
// so concurrent writers of the same blob do no harm.
func (s *Store) Put(ctx context.Context, b store.Blob) (store.Ref, bool, error) {
	var (
		ref  = b.Ref()
		name = blobObjName(ref)
		obj  = s.bucket.Object(name).If(storage.Conditions{DoesNotExist: true})
		w    = obj.NewWriter(ctx)
	)
	_, err := w.Write(b)
	if err == nil {
		// The precondition failure for small objects surfaces at Close,
		// not Write.
		err = w.Close()
	} else {
		w.Close()
	}
	if isPreconditionFailed(err) {
		return ref, false, nil
	}
	if err != nil {
		return ref, false, errors.Wrapf(err, "writing object %s", name)
	}
	return ref, true, nil
}

func isPreconditionFailed(err error) bool {
	var e *googleapi.Error
	return stderrs.As(err, &e) && e.Code == http.StatusPreconditionFailed
}

// Delete removes the blob with hash `ref` from the store.
// It is an error (store.ErrNotFound) if the blob is not present.
func (s *Store) Delete(ctx context.Context, ref store.Ref) error {
	name := blobObjName(ref)
	err := s.bucket.Object(name).Delete(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return store.ErrNotFound
	}
	return errors.Wrapf(err, "deleting object %s", name)
}

// ListRefs produces all blob refs in the store, in lexicographic order.
func (s *Store) ListRefs(ctx context.Context, start store.Ref, f func(store.Ref) error) error {
	// Google Cloud Storage iterators have no API for starting in the middle of a bucket.
	// But they can filter by object-name prefix.
	// So we take (the hex encoding of) `start` and repeatedly compute prefixes for the objects we want.
	// If `start` is e67a, for example, the sequence of generated prefixes is:
	//   e67b e67c e67d e67e e67f
	//   e68 e69 e6a e6b e6c e6d e6e e6f
	//   e7 e8 e9 ea eb ec ed ee ef
	//   f
	return eachHexPrefix(start.String(), false, func(prefix string) error {
		return s.listRefs(ctx, prefix, f)
	})
}

func (s *Store) listRefs(ctx context.Context, prefix string, f func(store.Ref) error) error {
	iter := s.bucket.Objects(ctx, &storage.Query{Prefix: "b:" + prefix})
	for {
		obj, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		ref, err := refFromBlobObjName(obj.Name)
		if err != nil {
			return err
		}
		err = f(ref)
		if err != nil {
			return err
		}
	}
}

// GetAnchor returns the latest ref associated with the given anchor name
// at or before the given time.
// If no such ref exists, it returns store.ErrNotFound.
func (s *Store) GetAnchor(ctx context.Context, name string, when time.Time) (store.Ref, error) {
	var (
		prefix = anchorPrefix(name)
		iter   = s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	)

	// Anchors come back in reverse chronological order
	// (since we usually want the latest one).
	// Find the first one whose timestamp is `when` or earlier.
	for {
		attrs, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			return store.Ref{}, store.ErrNotFound
		}
		if err != nil {
			return store.Ref{}, errors.Wrap(err, "iterating over anchor objects")
		}
		_, atime, err := anchorTimeFromObjName(attrs.Name)
		if err != nil {
			return store.Ref{}, errors.Wrapf(err, "decoding object name %s", attrs.Name)
		}
		if atime.After(when) {
			continue
		}

		ref, err := s.getAnchorRef(ctx, attrs.Name)
		return ref, errors.Wrapf(err, "reading object %s", attrs.Name)
	}
}

// PutAnchor associates the given ref with the given anchor name as of the given time.
// Putting the same association twice overwrites an identical object and is a no-op.
func (s *Store) PutAnchor(ctx context.Context, ref store.Ref, name string, at time.Time) error {
	var (
		objName = anchorObjName(name, at)
		obj     = s.bucket.Object(objName)
		w       = obj.NewWriter(ctx)
	)
	_, err := w.Write(ref[:])
	if err != nil {
		w.Close()
		return errors.Wrapf(err, "writing object %s", objName)
	}
	return errors.Wrapf(w.Close(), "closing object %s", objName)
}

// ListAnchors calls f for all anchors with names lexically greater than `start`,
// in order of name, then time.
func (s *Store) ListAnchors(ctx context.Context, start string, f func(string, store.Ref, time.Time) error) error {
	iter := s.bucket.Objects(ctx, &storage.Query{Prefix: "a:"})

	type line struct {
		ref store.Ref
		at  time.Time
	}

	var (
		curName string
		pending []line
	)

	// Objects arrive newest-first within each name; emit them oldest-first.
	flush := func() error {
		for i := len(pending) - 1; i >= 0; i-- {
			if err := f(curName, pending[i].ref, pending[i].at); err != nil {
				return err
			}
		}
		pending = pending[:0]
		return nil
	}

	for {
		attrs, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "iterating over anchor objects")
		}
		name, at, err := anchorTimeFromObjName(attrs.Name)
		if err != nil {
			// not an anchor object
			continue
		}
		if name <= start {
			continue
		}
		if name != curName {
			if err := flush(); err != nil {
				return err
			}
			curName = name
		}
		ref, err := s.getAnchorRef(ctx, attrs.Name)
		if err != nil {
			return errors.Wrapf(err, "reading object %s", attrs.Name)
		}
		pending = append(pending, line{ref: ref, at: at})
	}
	return flush()
}

func eachHexPrefix(prefix string, incl bool, f func(string) error) error {
	prefix = strings.ToLower(prefix)
	for len(prefix) > 0 {
		end := hexval(prefix[len(prefix)-1:][0])
		if !incl {
			end++
		}
		prefix = prefix[:len(prefix)-1]
		for c := end; c < 16; c++ {
			err := f(prefix + string(hexdigit(c)))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func hexval(b byte) int {
	switch {
	case '0' <= b && b <= '9':
		return int(b - '0')
	case 'a' <= b && b <= 'f':
		return int(10 + b - 'a')
	case 'A' <= b && b <= 'F':
		return int(10 + b - 'A')
	}
	return 0
}

func hexdigit(n int) byte {
	if n < 10 {
		return byte(n + '0')
	}
	return byte(n - 10 + 'a')
}

func blobObjName(ref store.Ref) string {
	return "b:" + ref.String()
}

func refFromBlobObjName(name string) (store.Ref, error) {
	return store.RefFromHex(name[2:])
}

func (s *Store) getAnchorRef(ctx context.Context, objName string) (store.Ref, error) {
	obj := s.bucket.Object(objName)
	r, err := obj.NewReader(ctx)
	if err != nil {
		return store.Ref{}, errors.Wrapf(err, "reading info of object %s", objName)
	}
	defer r.Close()

	var ref store.Ref
	if r.Attrs.Size != int64(len(ref)) {
		return store.Ref{}, errors.Errorf("object %s has wrong size %d (want %d)", objName, r.Attrs.Size, len(ref))
	}

	_, err = io.ReadFull(r, ref[:])
	return ref, errors.Wrapf(err, "reading contents of object %s", objName)
}

func anchorPrefix(name string) string {
	return "a:" + hex.EncodeToString([]byte(name)) + ":"
}

func anchorObjName(name string, when time.Time) string {
	return anchorPrefix(name) + nanosToStr(timeToInvNanos(when))
}

var anchorNameRegex = regexp.MustCompile(`^a:([0-9a-f]*):(\d{30})$`)

func anchorTimeFromObjName(objName string) (string, time.Time, error) {
	m := anchorNameRegex.FindStringSubmatch(objName)
	if len(m) < 3 {
		return "", time.Time{}, errors.New("malformed name")
	}
	name, err := hex.DecodeString(m[1])
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "hex-decoding anchor name")
	}
	return string(name), invNanosToTime(strToNanos(m[2])).UTC(), nil
}

func init() {
	store.Register("gcs", func(ctx context.Context, conf map[string]interface{}) (store.Store, error) {
		var options []option.ClientOption
		creds, ok := conf["creds"].(string)
		if !ok {
			return nil, errors.New(`missing "creds" parameter`)
		}
		bucketName, ok := conf["bucket"].(string)
		if !ok {
			return nil, errors.New(`missing "bucket" parameter`)
		}
		options = append(options, option.WithCredentialsFile(creds))
		c, err := storage.NewClient(ctx, options...)
		if err != nil {
			return nil, errors.Wrap(err, "creating cloud storage client")
		}
		return New(c.Bucket(bucketName)), nil
	})
}
