// Package storage persists encoded stub trees in a bbolt database, one record
// per source file. Index entries are never stored; they are rebuilt from the
// trees on load.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"stubtree/internal/project"
)

var (
	bucketFiles = []byte("files")
	bucketMeta  = []byte("meta")
)

// ErrCorrupt marks a record that cannot be unpacked.
var ErrCorrupt = errors.New("corrupt snapshot record")

// Record is the persisted state of one source file.
type Record struct {
	Digest project.Digest `msgpack:"digest"` // source content hash
	Blob   []byte         `msgpack:"blob"`   // elements.EncodeTree output
	Kinds  []string       `msgpack:"kinds"`  // stub kinds present in Blob
	Nodes  int            `msgpack:"nodes"`
}

// Entry is one record as seen by ForEach. Err is set, wrapping ErrCorrupt,
// when the record could not be unpacked.
type Entry struct {
	Path   string
	Record Record
	Err    error
}

// Store is a snapshot database. Safe for concurrent use.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketFiles, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bbolt init %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

// Put writes a batch of records in one transaction.
func (s *Store) Put(batch map[string]Record) error {
	return s.write(batch, false)
}

// Replace writes a batch and drops every record not in it, atomically. A
// reader sees either the previous snapshot or the new one.
func (s *Store) Replace(batch map[string]Record) error {
	return s.write(batch, true)
}

func (s *Store) write(batch map[string]Record, prune bool) error {
	packed := make(map[string][]byte, len(batch))
	for path, rec := range batch {
		data, err := msgpack.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("pack %s: %w", path, err)
		}
		packed[path] = data
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		if prune {
			var stale [][]byte
			err := b.ForEach(func(k, _ []byte) error {
				if _, keep := packed[string(k)]; !keep {
					stale = append(stale, slices.Clone(k))
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		for path, data := range packed {
			if err := b.Put([]byte(path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the record for path.
func (s *Store) Get(path string) (Record, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// bbolt slices are only valid inside the transaction
		if v := tx.Bucket(bucketFiles).Get([]byte(path)); v != nil {
			raw = slices.Clone(v)
		}
		return nil
	})
	if err != nil || raw == nil {
		return Record{}, false, err
	}
	rec, err := unpack(path, raw)
	if err != nil {
		return Record{}, true, err
	}
	return rec, true, nil
}

// Delete removes the records of paths; missing ones are ignored.
func (s *Store) Delete(paths ...string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		for _, p := range paths {
			if err := b.Delete([]byte(p)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ForEach calls fn for every record in path order. Corrupt records are
// reported through Entry.Err rather than aborting the scan; an error from fn
// stops it.
func (s *Store) ForEach(fn func(Entry) error) error {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			path := string(k)
			rec, err := unpack(path, slices.Clone(v))
			entries = append(entries, Entry{Path: path, Record: rec, Err: err})
			return nil
		})
	})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Paths lists the stored file paths in order.
func (s *Store) Paths() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

// Len reports the number of stored records.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketFiles).Stats().KeyN
		return nil
	})
	return n, err
}

// SetMeta stores a snapshot-wide value such as the schema salt.
func (s *Store) SetMeta(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), value)
	})
}

// Meta reads a value written by SetMeta.
func (s *Store) Meta(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get([]byte(key)); v != nil {
			out = slices.Clone(v)
		}
		return nil
	})
	return out, out != nil, err
}

func unpack(path string, raw []byte) (Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("%s: %w: %w", path, ErrCorrupt, err)
	}
	return rec, nil
}
