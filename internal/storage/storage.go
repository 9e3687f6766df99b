package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"ValRoster/internal/registry"
)

var (
	// recordPrefix namespaces validator record rows; the owner id follows.
	recordPrefix = []byte("r/")
	// counterKey holds the commit counter as a little-endian uint64.
	counterKey = []byte("m/counter")
	// ownerKey holds the registry owner identity.
	ownerKey = []byte("m/owner")
)

// Store persists registry records and the commit counter in Pebble.
// Every change is applied as one synced batch: the registry mutates at
// human rates, so write-through durability is cheap and restarts never
// lose an acknowledged operation.
type Store struct {
	db *pebble.DB
}

// New opens (or creates) a store at the given path.
func New(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(8 << 20), // 8 MB cache
		MemTableSize:                4 << 20,                  // 4 MB memtable
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s:\n%w", path, err)
	}

	return &Store{db: db}, nil
}

// Apply writes a registry change atomically: record upserts, record
// deletions and the counter land together or not at all.
func (s *Store) Apply(change registry.Change) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, rec := range change.Puts {
		if err := batch.Set(recordKey(rec.Owner), registry.EncodeRecord(rec), nil); err != nil {
			return err
		}
	}

	for _, owner := range change.Deletes {
		if err := batch.Delete(recordKey(owner), nil); err != nil {
			return err
		}
	}

	if change.Counter != nil {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], *change.Counter)
		if err := batch.Set(counterKey, buf[:], nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.Sync)
}

// LoadState reads the full registry state back from disk. A fresh store
// yields a zero counter and no records.
func (s *Store) LoadState() (registry.State, error) {
	state := registry.State{}

	counter, err := s.loadCounter()
	if err != nil {
		return registry.State{}, err
	}
	state.Counter = counter

	err = s.iterateRecords(func(owner registry.OwnerID, data []byte) error {
		rec, err := registry.DecodeRecord(owner, data)
		if err != nil {
			return fmt.Errorf("decode record %x:\n%w", owner[:4], err)
		}

		state.Records = append(state.Records, rec)
		return nil
	})
	if err != nil {
		return registry.State{}, err
	}

	return state, nil
}

// SaveAll replaces every persisted record and the counter with the given
// state in one synced batch. Used after a snapshot import.
func (s *Store) SaveAll(state registry.State) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.DeleteRange(recordPrefix, prefixUpperBound(recordPrefix), nil); err != nil {
		return err
	}

	for _, rec := range state.Records {
		if err := batch.Set(recordKey(rec.Owner), registry.EncodeRecord(rec), nil); err != nil {
			return err
		}
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], state.Counter)
	if err := batch.Set(counterKey, buf[:], nil); err != nil {
		return err
	}

	return batch.Commit(pebble.Sync)
}

// GetRecord reads a single record row. The second return is false when
// the owner has no row.
func (s *Store) GetRecord(owner registry.OwnerID) (registry.Record, bool, error) {
	value, closer, err := s.db.Get(recordKey(owner))
	if err == pebble.ErrNotFound {
		return registry.Record{}, false, nil
	}
	if err != nil {
		return registry.Record{}, false, err
	}
	defer closer.Close()

	// Copy the value since it's invalid after closer.Close()
	data := make([]byte, len(value))
	copy(data, value)

	rec, err := registry.DecodeRecord(owner, data)
	if err != nil {
		return registry.Record{}, false, err
	}

	return rec, true, nil
}

// SaveOwner persists the registry owner identity. Written once at
// genesis so restarts rebuild the authorizer without the genesis file.
func (s *Store) SaveOwner(owner registry.OwnerID) error {
	if err := s.db.Set(ownerKey, owner[:], pebble.Sync); err != nil {
		return fmt.Errorf("save registry owner:\n%w", err)
	}

	return nil
}

// LoadOwner returns the stored registry owner. ok is false on a fresh
// store that has never been through genesis.
func (s *Store) LoadOwner() (registry.OwnerID, bool, error) {
	value, closer, err := s.db.Get(ownerKey)
	if err == pebble.ErrNotFound {
		return registry.OwnerID{}, false, nil
	}
	if err != nil {
		return registry.OwnerID{}, false, err
	}
	defer closer.Close()

	if len(value) != registry.OwnerIDSize {
		return registry.OwnerID{}, false, fmt.Errorf("invalid stored owner size: got %d, want %d", len(value), registry.OwnerIDSize)
	}

	var owner registry.OwnerID
	copy(owner[:], value)

	return owner, true, nil
}

// Close syncs and closes the database.
func (s *Store) Close() error {
	if err := s.db.LogData(nil, pebble.Sync); err != nil {
		return err
	}

	return s.db.Close()
}

// recordKey builds the row key for an owner id.
func recordKey(owner registry.OwnerID) []byte {
	key := make([]byte, 0, len(recordPrefix)+len(owner))
	key = append(key, recordPrefix...)
	key = append(key, owner[:]...)

	return key
}

// loadCounter reads the persisted commit counter, zero when absent.
func (s *Store) loadCounter() (uint64, error) {
	value, closer, err := s.db.Get(counterKey)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	if len(value) != 8 {
		return 0, fmt.Errorf("invalid counter size: got %d, want 8", len(value))
	}

	return binary.LittleEndian.Uint64(value), nil
}

// iterateRecords calls fn for each record row in key order.
func (s *Store) iterateRecords(fn func(owner registry.OwnerID, data []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: recordPrefix,
		UpperBound: prefixUpperBound(recordPrefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(recordPrefix)+registry.OwnerIDSize {
			return fmt.Errorf("invalid record key length %d", len(key))
		}

		var owner registry.OwnerID
		copy(owner[:], key[len(recordPrefix):])

		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(owner, value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper
		}
	}

	return nil // all 0xFF → unbounded
}
