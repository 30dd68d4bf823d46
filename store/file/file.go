// Package file implements a blob store as a file hierarchy.
package file

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bobg/flock"
	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

var _ anchor.Store = &Store{}

// Store is a file-based implementation of a blob store.
//
// Blobs live at root/blobs/xx/xxxx/xxxx..., sharded by hex-ref prefix.
// Anchors live at root/anchors/HEXNAME/TTTT.REF,
// one file per association, named by fixed-width decimal
// Unix nanoseconds plus the hex ref, and containing the ref bytes.
type Store struct {
	root    string
	flocker flock.Locker
}

// New produces a new Store storing data beneath `root`.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) blobroot() string {
	return filepath.Join(s.root, "blobs")
}

func (s *Store) blobpath(ref store.Ref) string {
	h := ref.String()
	return filepath.Join(s.blobroot(), h[:2], h[:4], h)
}

func (s *Store) anchorroot() string {
	return filepath.Join(s.root, "anchors")
}

func (s *Store) anchorpath(name string) string {
	return filepath.Join(s.anchorroot(), hex.EncodeToString([]byte(name)))
}

func (s *Store) lockfile() string {
	return filepath.Join(s.root, "lock")
}

// Lock takes an exclusive advisory lock on the store,
// keeping cooperating processes (such as concurrent garbage collections) out.
func (s *Store) Lock() error {
	return s.flocker.Lock(s.lockfile())
}

// Unlock releases the lock taken by Lock.
func (s *Store) Unlock() error {
	return s.flocker.Unlock(s.lockfile())
}

// Get gets the blob with hash `ref`.
func (s *Store) Get(_ context.Context, ref store.Ref) (store.Blob, error) {
	path := s.blobpath(ref)
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, store.ErrNotFound
	}
	return blob, errors.Wrapf(err, "opening %s", path)
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(_ context.Context, b store.Blob) (store.Ref, bool, error) {
	var (
		ref  = b.Ref()
		path = s.blobpath(ref)
		dir  = filepath.Dir(path)
	)

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return ref, false, errors.Wrapf(err, "ensuring path %s exists", dir)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return ref, false, nil
	}
	if err != nil {
		return store.Zero, false, errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	_, err = f.Write(b)
	if err != nil {
		return store.Zero, false, errors.Wrapf(err, "writing data to %s", path)
	}

	return ref, true, nil
}

// Delete removes the blob with the given ref.
// It is an error (store.ErrNotFound) if the ref is not present.
func (s *Store) Delete(_ context.Context, ref store.Ref) error {
	path := s.blobpath(ref)
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return store.ErrNotFound
	}
	return errors.Wrapf(err, "removing %s", path)
}

// ListRefs produces all blob refs in the store, in lexicographic order.
func (s *Store) ListRefs(ctx context.Context, start store.Ref, f func(store.Ref) error) error {
	err := os.MkdirAll(s.blobroot(), 0755)
	if err != nil {
		return errors.Wrapf(err, "ensuring %s exists", s.blobroot())
	}

	topLevel, err := os.ReadDir(s.blobroot())
	if err != nil {
		return errors.Wrapf(err, "reading dir %s", s.blobroot())
	}

	startHex := start.String()
	topIndex := sort.Search(len(topLevel), func(n int) bool {
		return topLevel[n].Name() >= startHex[:2]
	})
	for i := topIndex; i < len(topLevel); i++ {
		topInfo := topLevel[i]
		if !topInfo.IsDir() {
			continue
		}
		topName := topInfo.Name()
		if len(topName) != 2 {
			continue
		}
		if _, err = strconv.ParseInt(topName, 16, 64); err != nil {
			continue
		}

		midLevel, err := os.ReadDir(filepath.Join(s.blobroot(), topName))
		if err != nil {
			return errors.Wrapf(err, "reading dir %s/%s", s.blobroot(), topName)
		}
		midIndex := sort.Search(len(midLevel), func(n int) bool {
			return midLevel[n].Name() >= startHex[:4]
		})
		for j := midIndex; j < len(midLevel); j++ {
			midInfo := midLevel[j]
			if !midInfo.IsDir() {
				continue
			}
			midName := midInfo.Name()
			if len(midName) != 4 {
				continue
			}
			if _, err = strconv.ParseInt(midName, 16, 64); err != nil {
				continue
			}

			blobInfos, err := os.ReadDir(filepath.Join(s.blobroot(), topName, midName))
			if err != nil {
				return errors.Wrapf(err, "reading dir %s/%s/%s", s.blobroot(), topName, midName)
			}

			index := sort.Search(len(blobInfos), func(n int) bool {
				return blobInfos[n].Name() > startHex
			})
			for k := index; k < len(blobInfos); k++ {
				blobInfo := blobInfos[k]
				if blobInfo.IsDir() {
					continue
				}

				ref, err := store.RefFromHex(blobInfo.Name())
				if err != nil {
					continue
				}

				err = f(ref)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// GetAnchor gets the latest blob ref for a given anchor as of a given time.
func (s *Store) GetAnchor(_ context.Context, name string, at time.Time) (store.Ref, error) {
	dir := s.anchorpath(name)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return store.Zero, store.ErrNotFound
	}
	if err != nil {
		return store.Zero, errors.Wrapf(err, "reading dir %s", dir)
	}

	var pairs []anchor.TimeRef
	for _, entry := range entries {
		tr, err := readAnchorFile(dir, entry.Name())
		if err != nil {
			continue
		}
		pairs = append(pairs, tr)
	}
	return anchor.Find(pairs, at)
}

// PutAnchor adds a new ref for a given anchor as of a given time.
// Re-putting an existing (ref, name, time) association is a no-op.
// Times before the Unix epoch are not supported.
func (s *Store) PutAnchor(_ context.Context, ref store.Ref, name string, at time.Time) error {
	dir := s.anchorpath(name)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return errors.Wrapf(err, "ensuring path %s exists", dir)
	}

	// Write through a temp file so readers never see a partial anchor.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpname := tmp.Name()
	if _, err = tmp.Write(ref[:]); err != nil {
		tmp.Close()
		os.Remove(tmpname)
		return errors.Wrapf(err, "writing %s", tmpname)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpname)
		return errors.Wrapf(err, "closing %s", tmpname)
	}

	path := filepath.Join(dir, anchorFileName(ref, at))
	return errors.Wrapf(os.Rename(tmpname, path), "renaming %s to %s", tmpname, path)
}

// ListAnchors lists all anchors in the store, in name order and then time order.
func (s *Store) ListAnchors(_ context.Context, start string, f func(string, store.Ref, time.Time) error) error {
	root := s.anchorroot()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading dir %s", root)
	}

	// Hex encoding preserves byte order, so the sorted directory
	// listing yields anchor names in order too.
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		nameBytes, err := hex.DecodeString(entry.Name())
		if err != nil {
			continue
		}
		name := string(nameBytes)
		if name <= start {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		sub, err := os.ReadDir(dir)
		if err != nil {
			return errors.Wrapf(err, "reading dir %s", dir)
		}
		for _, e := range sub {
			tr, err := readAnchorFile(dir, e.Name())
			if err != nil {
				continue
			}
			if err = f(name, tr.R, tr.T); err != nil {
				return err
			}
		}
	}
	return nil
}

func anchorFileName(ref store.Ref, at time.Time) string {
	return fmt.Sprintf("%020d.%s", at.UnixNano(), ref)
}

func readAnchorFile(dir, name string) (anchor.TimeRef, error) {
	nanosStr, _, ok := strings.Cut(name, ".")
	if !ok {
		return anchor.TimeRef{}, errors.Errorf("malformed anchor file name %s", name)
	}
	nanos, err := strconv.ParseInt(nanosStr, 10, 64)
	if err != nil {
		return anchor.TimeRef{}, errors.Wrapf(err, "parsing anchor file name %s", name)
	}

	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return anchor.TimeRef{}, errors.Wrapf(err, "reading anchor file %s", name)
	}
	if len(b) != store.RefLen {
		return anchor.TimeRef{}, errors.Errorf("anchor file %s holds %d bytes, want %d", name, len(b), store.RefLen)
	}

	return anchor.TimeRef{T: time.Unix(0, nanos).UTC(), R: store.RefFromBytes(b)}, nil
}

func init() {
	store.Register("file", func(_ context.Context, conf map[string]interface{}) (store.Store, error) {
		root, ok := conf["root"].(string)
		if !ok {
			return nil, errors.New(`missing "root" parameter`)
		}
		return New(root), nil
	})
}
