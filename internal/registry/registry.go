package registry

import (
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
)

// Authorizer answers whether a caller holds the registry-owner role.
// The record-owner half of the authorization rules is intrinsic (caller
// equals the record's owner id) and not delegated.
type Authorizer interface {
	IsRegistryOwner(caller OwnerID) bool
}

// StaticAuthorizer authorizes a single fixed registry owner.
type StaticAuthorizer struct {
	Owner OwnerID // Owner is the registry owner's id
}

// IsRegistryOwner reports whether caller is the configured owner.
func (a StaticAuthorizer) IsRegistryOwner(caller OwnerID) bool {
	return caller == a.Owner
}

// KeyHasher derives the uniqueness-index key for a public key.
type KeyHasher interface {
	HashKey(key PubKey) KeyHash
}

// Blake3KeyHasher hashes public keys with BLAKE3.
type Blake3KeyHasher struct{}

// HashKey returns blake3(key).
func (Blake3KeyHasher) HashKey(key PubKey) KeyHash {
	return blake3.Sum256(key[:])
}

// Change describes the durable effects of one registry operation:
// records written, records deleted, and the commit counter if it advanced.
type Change struct {
	Puts    []Record  // Puts holds records created or updated
	Deletes []OwnerID // Deletes holds owners of physically deleted records
	Counter *uint64   // Counter is the new commit counter, if advanced
}

// Persister applies registry state changes to durable storage. Each call
// carries the complete effects of one operation and must be applied
// atomically.
type Persister interface {
	Apply(change Change) error
}

// Registry tracks validator records under a global commit counter.
// Mutations accumulate in each record's latest slot and become readable
// as a batch when Commit advances the counter. All methods are safe for
// concurrent use; reads never mutate.
type Registry struct {
	mu sync.RWMutex

	auth   Authorizer
	hasher KeyHasher

	owners   []OwnerID           // dense owner list; order changes on swap-delete
	records  map[OwnerID]*record // records keyed by owner
	keyIndex map[KeyHash]OwnerID // pubkey-hash uniqueness index over latest keys
	counter  uint64              // global commit counter

	persister Persister
	onEvent   func(Event)
}

// Option configures the registry during creation.
type Option func(*Registry)

// WithKeyHasher replaces the default BLAKE3 key hasher.
func WithKeyHasher(h KeyHasher) Option {
	return func(r *Registry) {
		r.hasher = h
	}
}

// WithPersister attaches a durable store. Every successful mutation is
// written through before it is applied in memory; a persist failure
// rejects the operation with no state change.
func WithPersister(p Persister) Option {
	return func(r *Registry) {
		r.persister = p
	}
}

// WithEventHandler attaches an event callback. The handler runs
// synchronously inside the mutating call and must not call back into
// the registry.
func WithEventHandler(fn func(Event)) Option {
	return func(r *Registry) {
		r.onEvent = fn
	}
}

// New creates an empty registry with the given authorizer.
func New(auth Authorizer, opts ...Option) *Registry {
	r := &Registry{
		auth:     auth,
		hasher:   Blake3KeyHasher{},
		records:  make(map[OwnerID]*record),
		keyIndex: make(map[KeyHash]OwnerID),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Counter returns the current commit counter.
func (r *Registry) Counter() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.counter
}

// Count returns the number of physically present records, including
// records flagged for deletion that have not been touched yet.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.owners)
}

// Committee returns the readable attribute set of every active,
// non-removed record, in owner-list order. The order is not stable
// across deletions.
func (r *Registry) Committee() []CommitteeMember {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]CommitteeMember, 0, len(r.owners))

	for _, owner := range r.owners {
		attrs := r.records[owner].attrs.Get(r.counter)
		if attrs.Active && !attrs.Removed {
			members = append(members, CommitteeMember{
				Owner:  owner,
				Weight: attrs.Weight,
				PubKey: attrs.PubKey,
				Proof:  attrs.Proof,
			})
		}
	}

	return members
}

// Get returns the record for owner, or false if no record is physically
// present.
func (r *Registry) Get(owner OwnerID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[owner]
	if !ok {
		return Record{}, false
	}

	return rec.view(owner), true
}

// Records returns all records in owner-list order.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.recordsLocked()
}

// recordsLocked builds the record list. Callers hold at least the read lock.
func (r *Registry) recordsLocked() []Record {
	out := make([]Record, len(r.owners))
	for i, owner := range r.owners {
		out[i] = r.records[owner].view(owner)
	}

	return out
}

// State returns a full copy of the registry's contents.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return State{
		Counter: r.counter,
		Records: r.recordsLocked(),
	}
}

// Restore replaces the in-memory state with the given one, rebuilding the
// owner list and the pubkey index and validating their invariants. It does
// not write to the persister; callers that need the restored state on disk
// write it through their own store.
func (r *Registry) Restore(state State) error {
	owners := make([]OwnerID, len(state.Records))
	records := make(map[OwnerID]*record, len(state.Records))
	keyIndex := make(map[KeyHash]OwnerID, len(state.Records))

	for _, rec := range state.Records {
		if rec.Owner == zeroOwner {
			return fmt.Errorf("restore: zero owner id")
		}

		if int(rec.OwnerIndex) >= len(state.Records) {
			return fmt.Errorf("restore: owner index %d out of range for %d records", rec.OwnerIndex, len(state.Records))
		}

		if owners[rec.OwnerIndex] != zeroOwner {
			return fmt.Errorf("restore: duplicate owner index %d", rec.OwnerIndex)
		}

		if _, dup := records[rec.Owner]; dup {
			return fmt.Errorf("restore: duplicate owner %x", rec.Owner[:4])
		}

		hash := r.hasher.HashKey(rec.Latest.PubKey)
		if taken, dup := keyIndex[hash]; dup {
			return fmt.Errorf("restore: pubkey hash collision between %x and %x", taken[:4], rec.Owner[:4])
		}

		owners[rec.OwnerIndex] = rec.Owner
		records[rec.Owner] = fromView(rec)
		keyIndex[hash] = rec.Owner
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.owners = owners
	r.records = records
	r.keyIndex = keyIndex
	r.counter = state.Counter

	return nil
}

// persist writes a change through the persister, if one is attached.
func (r *Registry) persist(change Change) error {
	if r.persister == nil {
		return nil
	}

	if err := r.persister.Apply(change); err != nil {
		return fmt.Errorf("persist change:\n%w", err)
	}

	return nil
}

// emit delivers an event to the handler, if one is attached.
func (r *Registry) emit(event Event) {
	if r.onEvent != nil {
		r.onEvent(event)
	}
}
