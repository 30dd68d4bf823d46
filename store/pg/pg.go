// Package pg implements a blob store in a Postgresql relational database schema.
package pg

import (
	"context"
	"database/sql"
	stderrs "errors"
	"time"

	"github.com/bobg/sqlutil"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/DEShawResearch/bloom123/anchor"
	"github.com/DEShawResearch/bloom123/store"
)

var _ anchor.Store = &Store{}

// Store is a Postgresql-based blob store.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `blobs` and `anchors` tables if they do not exist.
// (If they do exist, they must have the columns, constraints, and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS blobs (
  ref BYTEA PRIMARY KEY NOT NULL,
  data BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS anchors (
  name TEXT NOT NULL,
  ref BYTEA NOT NULL,
  at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS anchors_name_at_ref ON anchors (name, at, ref);
`

// New produces a new Store using `db` for storage.
// It expects to create tables `blobs` and `anchors`,
// or for those tables already to exist with the correct schema.
// (See variable Schema.)
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, err
}

// Get gets the blob with hash `ref`.
func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Blob, error) {
	const q = `SELECT data FROM blobs WHERE ref = $1`

	var result store.Blob
	err := s.db.QueryRowContext(ctx, q, ref).Scan(&result)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return result, errors.Wrapf(err, "getting %s", ref)
}

// Put adds a blob to the store if it wasn't already present.
func (s *Store) Put(ctx context.Context, b store.Blob) (store.Ref, bool, error) {
	const q = `INSERT INTO blobs (ref, data) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	ref := b.Ref()
	res, err := s.db.ExecContext(ctx, q, ref, []byte(b))
	if err != nil {
		return store.Ref{}, false, errors.Wrapf(err, "inserting %s", ref)
	}

	aff, err := res.RowsAffected()
	return ref, aff > 0, err
}

// Delete removes the blob with hash `ref` from the store.
// It is an error (store.ErrNotFound) if the blob is not present.
func (s *Store) Delete(ctx context.Context, ref store.Ref) error {
	const q = `DELETE FROM blobs WHERE ref = $1`

	res, err := s.db.ExecContext(ctx, q, ref)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", ref)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListRefs produces all blob refs in the store, in lexical order.
func (s *Store) ListRefs(ctx context.Context, start store.Ref, f func(store.Ref) error) error {
	const q = `SELECT ref FROM blobs WHERE ref > $1 ORDER BY ref`
	return sqlutil.ForQueryRows(ctx, s.db, q, start, f)
}

// GetAnchor returns the latest ref associated with the given anchor name
// at or before the given time.
// If no such ref exists, it returns store.ErrNotFound.
func (s *Store) GetAnchor(ctx context.Context, name string, at time.Time) (store.Ref, error) {
	const q = `SELECT ref FROM anchors WHERE name = $1 AND at <= $2 ORDER BY at DESC LIMIT 1`

	var result store.Ref
	err := s.db.QueryRowContext(ctx, q, name, at).Scan(&result)
	if stderrs.Is(err, sql.ErrNoRows) {
		return store.Ref{}, store.ErrNotFound
	}
	return result, errors.Wrapf(err, "getting anchor %s", name)
}

// PutAnchor associates the given ref with the given anchor name as of the given time.
// Putting the same association twice is a no-op.
func (s *Store) PutAnchor(ctx context.Context, ref store.Ref, name string, at time.Time) error {
	const q = `INSERT INTO anchors (name, ref, at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`

	_, err := s.db.ExecContext(ctx, q, name, ref, at)
	return errors.Wrapf(err, "inserting anchor %s", name)
}

// ListAnchors calls f for all anchors with names lexically greater than `start`,
// in order of name, then time, then ref.
func (s *Store) ListAnchors(ctx context.Context, start string, f func(string, store.Ref, time.Time) error) error {
	const q = `SELECT name, ref, at FROM anchors WHERE name > $1 ORDER BY name, at, ref`
	return sqlutil.ForQueryRows(ctx, s.db, q, start, func(name string, ref store.Ref, at time.Time) error {
		return f(name, ref, at.UTC())
	})
}

func init() {
	store.Register("pg", func(ctx context.Context, conf map[string]interface{}) (store.Store, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
