// Package epochstore persists epoch records in a key-value database. Records
// keep the schema version they were written in, so the store can serve epochs
// written before the selection parameters were part of the record.
package epochstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-rrsc/inter/iepoch"
)

var (
	// ErrNotFound is returned when no record exists for an epoch index.
	ErrNotFound = errors.New("epoch not found")
	// ErrNotContiguous is returned when an epoch leaves a gap or an overlap
	// next to a stored neighbour.
	ErrNotContiguous = errors.New("epoch not contiguous with stored neighbour")
)

// epochPrefix + index (uint64 big endian) -> RLP(iepoch.Versioned)
var epochPrefix = []byte("e")

func epochKey(index uint64) []byte {
	key := make([]byte, len(epochPrefix)+8)
	copy(key, epochPrefix)
	binary.BigEndian.PutUint64(key[len(epochPrefix):], index)
	return key
}

// Store reads and writes versioned epoch records.
type Store struct {
	db  ethdb.KeyValueStore
	log logrus.FieldLogger
}

// New wraps db. The store does not own db and never closes it.
func New(db ethdb.KeyValueStore, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, log: log}
}

// Put writes a record under its epoch index, replacing any previous one.
func (s *Store) Put(v iepoch.Versioned) error {
	index, err := v.EpochIndex()
	if err != nil {
		return err
	}
	data, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	return s.db.Put(epochKey(index), data)
}

// Has reports whether a record exists for index.
func (s *Store) Has(index uint64) (bool, error) {
	return s.db.Has(epochKey(index))
}

// Get returns the record of an epoch as it was written.
func (s *Store) Get(index uint64) (iepoch.Versioned, error) {
	key := epochKey(index)
	ok, err := s.db.Has(key)
	if err != nil {
		return iepoch.Versioned{}, err
	}
	if !ok {
		return iepoch.Versioned{}, fmt.Errorf("%w: %d", ErrNotFound, index)
	}
	data, err := s.db.Get(key)
	if err != nil {
		return iepoch.Versioned{}, err
	}
	var v iepoch.Versioned
	if err := v.UnmarshalBinary(data); err != nil {
		return iepoch.Versioned{}, fmt.Errorf("epoch %d: %w", index, err)
	}
	return v, nil
}

// CheckContiguous verifies that e starts where the stored epoch before it
// ends, and ends where the stored epoch after it starts. Neighbours that are
// not stored are not checked.
func (s *Store) CheckContiguous(e *iepoch.Epoch) error {
	if e.EpochIndex > 0 {
		ok, err := s.Has(e.EpochIndex - 1)
		if err != nil {
			return err
		}
		if ok {
			prev, err := s.Get(e.EpochIndex - 1)
			if err != nil {
				return err
			}
			expected, err := prev.Increment(iepoch.NextEpochDescriptor{Authorities: e.Authorities, Randomness: e.Randomness})
			if err != nil {
				return err
			}
			start, _, err := expected.Range()
			if err != nil {
				return err
			}
			if start != e.StartSlot {
				return fmt.Errorf("%w: epoch %d starts at slot %d, epoch %d ends at slot %d",
					ErrNotContiguous, e.EpochIndex, e.StartSlot, e.EpochIndex-1, start)
			}
		}
	}

	if e.EpochIndex == math.MaxUint64 {
		return nil
	}
	ok, err := s.Has(e.EpochIndex + 1)
	if err != nil || !ok {
		return err
	}
	next, err := s.Get(e.EpochIndex + 1)
	if err != nil {
		return err
	}
	start, _, err := next.Range()
	if err != nil {
		return err
	}
	if start != e.EndSlot() {
		return fmt.Errorf("%w: epoch %d ends at slot %d, epoch %d starts at slot %d",
			ErrNotContiguous, e.EpochIndex, e.EndSlot(), e.EpochIndex+1, start)
	}
	return nil
}

// Resolve returns the epoch in the current schema. Legacy records are
// migrated with cfg, which must be the selection parameters that were in
// force when the record was written. The result is validated.
func (s *Store) Resolve(index uint64, cfg iepoch.EpochConfiguration) (*iepoch.Epoch, error) {
	v, err := s.Get(index)
	if err != nil {
		return nil, err
	}
	if v.Version != iepoch.CurrentEpochVersion {
		s.log.WithFields(logrus.Fields{"epoch": index, "version": v.Version}).Debug("Upgrading legacy epoch record")
	}
	epoch, err := v.Upgrade(cfg)
	if err != nil {
		return nil, err
	}
	if err := epoch.Validate(); err != nil {
		return nil, err
	}
	return &epoch, nil
}

// ForEach calls fn for every record in ascending epoch order. Iteration
// stops at the first error.
func (s *Store) ForEach(fn func(index uint64, v iepoch.Versioned) error) error {
	it := s.db.NewIterator(epochPrefix, nil)
	defer it.Release()
	for it.Next() {
		key := it.Key()
		if len(key) != len(epochPrefix)+8 {
			continue
		}
		index := binary.BigEndian.Uint64(key[len(epochPrefix):])
		var v iepoch.Versioned
		if err := v.UnmarshalBinary(it.Value()); err != nil {
			return fmt.Errorf("epoch %d: %w", index, err)
		}
		if err := fn(index, v); err != nil {
			return err
		}
	}
	return it.Error()
}

// Migrate rewrites every legacy record in the current schema using cfg and
// returns how many records were rewritten. Records are validated before
// anything is written; an invalid record aborts the whole migration.
func (s *Store) Migrate(cfg iepoch.EpochConfiguration) (int, error) {
	batch := s.db.NewBatch()
	migrated := 0
	err := s.ForEach(func(index uint64, v iepoch.Versioned) error {
		if v.Version == iepoch.CurrentEpochVersion {
			return nil
		}
		epoch, err := v.Upgrade(cfg)
		if err != nil {
			return err
		}
		if err := epoch.Validate(); err != nil {
			return err
		}
		data, err := iepoch.WrapCurrent(epoch).MarshalBinary()
		if err != nil {
			return err
		}
		migrated++
		return batch.Put(epochKey(index), data)
	})
	if err != nil {
		return 0, err
	}
	if err := batch.Write(); err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"records": migrated, "c": cfg.C, "allowed": cfg.AllowedSlots}).Info("Epoch records migrated")
	return migrated, nil
}
