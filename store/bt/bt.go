// Package bt implements a blob store on Google Cloud Bigtable.
package bt

import (
	"context"
	"encoding/hex"
	"regexp"
	"time"

	"cloud.google.com/go/bigtable"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

// Store is a Google Cloud Bigtable-backed blob store.
//
// A blob with ref R lives in the row "b:" + R's hex encoding,
// as a single cell in the blob column family.
// An anchor (name, ref, at) lives in the row
// "a:" + hex(name) + ":" + invtime(at),
// whose single cell in the anchor column family holds the ref's bytes.
// invtime is the timestamp subtracted from the maximum representable time,
// in decimal nanoseconds zero-padded to 30 digits,
// so the lexical (which is to say Bigtable's) row order
// is reverse chronological within a name.
// The timestamp lives in the row key rather than in the cell timestamp
// because Bigtable cell timestamps hold only microseconds.
type Store struct {
	t *bigtable.Table
}

const (
	blobfam   = "blob"
	blobcol   = "blob"
	anchorfam = "anchor"
	anchorcol = "anchor"
)

var _ anchor.Store = &Store{}

// New produces a new Store writing to the given table.
// The table must already exist
// and have the column families "blob" and "anchor".
func New(t *bigtable.Table) *Store {
	return &Store{t: t}
}

// Get gets the blob with hash ref.
func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Blob, error) {
	row, err := s.t.ReadRow(ctx, blobKey(ref), bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return nil, errors.Wrapf(err, "reading row for %s", ref)
	}
	items := row[blobfam]
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	return store.Blob(items[0].Value), nil
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(ctx context.Context, b store.Blob) (store.Ref, bool, error) {
	mut := bigtable.NewMutation()
	mut.Set(blobfam, blobcol, bigtable.Now(), b)

	// Write only when the row has no cells yet.
	cmut := bigtable.NewCondMutation(bigtable.LatestNFilter(1), nil, mut)

	var present bool
	ref := b.Ref()
	err := s.t.Apply(ctx, blobKey(ref), cmut, bigtable.GetCondMutationResult(&present))
	return ref, !present, errors.Wrapf(err, "storing blob %s", ref)
}

// Delete removes the blob with the given ref,
// returning store.ErrNotFound if it was not present.
func (s *Store) Delete(ctx context.Context, ref store.Ref) error {
	mut := bigtable.NewMutation()
	mut.DeleteRow()

	cmut := bigtable.NewCondMutation(bigtable.LatestNFilter(1), mut, nil)

	var present bool
	err := s.t.Apply(ctx, blobKey(ref), cmut, bigtable.GetCondMutationResult(&present))
	if err != nil {
		return errors.Wrapf(err, "deleting %s", ref)
	}
	if !present {
		return store.ErrNotFound
	}
	return nil
}

// ListRefs calls f for each blob ref in the store,
// in lexicographic order,
// beginning after start.
func (s *Store) ListRefs(ctx context.Context, start store.Ref, f func(store.Ref) error) error {
	var innerErr error
	rowFn := func(row bigtable.Row) bool {
		ref, err := refFromKey(row.Key())
		if err != nil {
			innerErr = errors.Wrapf(err, "parsing ref from key %s", row.Key())
			return false
		}
		err = f(ref)
		if err != nil {
			innerErr = err
			return false
		}
		return true
	}

	// Appending a byte to the key makes the range exclusive of start itself.
	startKey := blobKey(start) + "0"
	filter := bigtable.RowKeyFilter("^b:") // blob rows only
	err := s.t.ReadRows(ctx, bigtable.InfiniteRange(startKey), rowFn, bigtable.RowFilter(filter))
	if err != nil {
		return err
	}
	return innerErr
}

// GetAnchor returns the latest ref associated with the given name
// at or before the given time.
func (s *Store) GetAnchor(ctx context.Context, name string, when time.Time) (store.Ref, error) {
	var (
		found    *store.Ref
		innerErr error
	)

	// Rows come back in reverse chronological order,
	// so the first one at or before `when` is the winner.
	rowFn := func(row bigtable.Row) bool {
		_, atime, err := anchorTimeFromKey(row.Key())
		if err != nil {
			innerErr = errors.Wrapf(err, "parsing anchor row key %s", row.Key())
			return false
		}
		if atime.After(when) {
			return true
		}
		ref, err := anchorRowRef(row)
		if err != nil {
			innerErr = err
			return false
		}
		found = &ref
		return false
	}

	err := s.t.ReadRows(ctx, bigtable.PrefixRange(anchorPrefix(name)), rowFn,
		bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return store.Zero, errors.Wrapf(err, "iterating over anchor rows for %s", name)
	}
	if innerErr != nil {
		return store.Zero, innerErr
	}
	if found == nil {
		return store.Zero, store.ErrNotFound
	}
	return *found, nil
}

// PutAnchor associates ref with the given anchor name as of the given time.
func (s *Store) PutAnchor(ctx context.Context, ref store.Ref, name string, when time.Time) error {
	mut := bigtable.NewMutation()
	mut.Set(anchorfam, anchorcol, bigtable.Time(when), ref[:])
	err := s.t.Apply(ctx, anchorKey(name, when), mut)
	return errors.Wrapf(err, "storing anchor %s", name)
}

// ListAnchors calls f for each anchor,
// in name order and then in time order within a name,
// beginning with the first name after start.
func (s *Store) ListAnchors(ctx context.Context, start string, f func(string, store.Ref, time.Time) error) error {
	var (
		lastName string
		pairs    []anchor.TimeRef
		innerErr error
	)

	// Rows arrive newest-first within a name;
	// flush reverses them so callers see oldest-first.
	flush := func() error {
		for i := len(pairs) - 1; i >= 0; i-- {
			if err := f(lastName, pairs[i].R, pairs[i].T); err != nil {
				return err
			}
		}
		pairs = nil
		return nil
	}

	rowFn := func(row bigtable.Row) bool {
		name, atime, err := anchorTimeFromKey(row.Key())
		if err != nil {
			// not an anchor row
			return true
		}
		if name <= start {
			return true
		}
		if name != lastName {
			if innerErr = flush(); innerErr != nil {
				return false
			}
			lastName = name
		}
		ref, err := anchorRowRef(row)
		if err != nil {
			innerErr = err
			return false
		}
		pairs = append(pairs, anchor.TimeRef{T: atime, R: ref})
		return true
	}

	err := s.t.ReadRows(ctx, bigtable.PrefixRange("a:"), rowFn,
		bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return err
	}
	if innerErr != nil {
		return innerErr
	}
	return flush()
}

func anchorRowRef(row bigtable.Row) (store.Ref, error) {
	items := row[anchorfam]
	if len(items) == 0 {
		return store.Zero, errors.Errorf("anchor row %s has no cells", row.Key())
	}
	if len(items[0].Value) != store.RefLen {
		return store.Zero, errors.Errorf("anchor row %s holds %d bytes, want %d", row.Key(), len(items[0].Value), store.RefLen)
	}
	return store.RefFromBytes(items[0].Value), nil
}

func blobKey(ref store.Ref) string {
	return "b:" + ref.String()
}

func refFromKey(key string) (store.Ref, error) {
	return store.RefFromHex(key[2:])
}

func anchorPrefix(name string) string {
	return "a:" + hex.EncodeToString([]byte(name)) + ":"
}

func anchorKey(name string, when time.Time) string {
	return anchorPrefix(name) + nanosToStr(timeToInvNanos(when))
}

var anchorKeyRegex = regexp.MustCompile(`^a:([0-9a-f]*):(\d{30})$`)

func anchorTimeFromKey(key string) (string, time.Time, error) {
	m := anchorKeyRegex.FindStringSubmatch(key)
	if len(m) < 3 {
		return "", time.Time{}, errors.New("malformed key")
	}
	name, err := hex.DecodeString(m[1])
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "hex-decoding anchor name")
	}
	return string(name), invNanosToTime(strToNanos(m[2])).UTC(), nil
}

func init() {
	store.Register("bt", func(ctx context.Context, conf map[string]interface{}) (store.Store, error) {
		project, ok := conf["project"].(string)
		if !ok {
			return nil, errors.New(`missing "project" parameter`)
		}
		instance, ok := conf["instance"].(string)
		if !ok {
			return nil, errors.New(`missing "instance" parameter`)
		}
		table, ok := conf["table"].(string)
		if !ok {
			return nil, errors.New(`missing "table" parameter`)
		}

		// Credentials are optional so that emulator configs
		// (BIGTABLE_EMULATOR_HOST) work without a key file.
		var options []option.ClientOption
		if creds, ok := conf["creds"].(string); ok {
			options = append(options, option.WithCredentialsFile(creds))
		}

		c, err := bigtable.NewClient(ctx, project, instance, options...)
		if err != nil {
			return nil, errors.Wrap(err, "creating bigtable client")
		}
		return New(c.Open(table)), nil
	})
}
