package registry

// Operation bodies follow a fixed order: role check, input validation,
// record lookup, lazy-delete check, operation-specific preconditions, then
// snapshot-and-mutate. All checks run before any state changes, so a
// failed call leaves the registry untouched. When a persister is attached
// the change is written through before the in-memory install.

// Add registers a new validator record. Registry-owner only. The record
// is readable immediately: additions carry no epoch delay. A record
// pending lazy deletion still occupies its owner id and public key, so
// re-adding either fails with ErrAlreadyExists until a mutating touch
// completes the deletion.
func (r *Registry) Add(caller, owner OwnerID, weight uint32, key PubKey, proof ProofOfPossession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRegistryOwner(caller); err != nil {
		return err
	}

	if owner == zeroOwner || key == zeroKey || proof == zeroProof {
		return ErrInvalidInput
	}

	if _, exists := r.records[owner]; exists {
		return ErrAlreadyExists
	}

	hash := r.hasher.HashKey(key)
	if _, taken := r.keyIndex[hash]; taken {
		return ErrAlreadyExists
	}

	rec := &record{
		index: uint32(len(r.owners)),
		attrs: NewVersioned(Attributes{
			Active: true,
			Weight: weight,
			PubKey: key,
			Proof:  proof,
		}, r.counter),
	}

	if err := r.persist(Change{Puts: []Record{rec.view(owner)}}); err != nil {
		return err
	}

	r.owners = append(r.owners, owner)
	r.records[owner] = rec
	r.keyIndex[hash] = owner

	r.emit(Event{Kind: EventAdded, Owner: owner, Weight: weight, PubKey: key, Proof: proof})

	return nil
}

// Activate marks a validator active. Record-owner or registry-owner.
// Touching a record pending deletion completes the deletion and returns
// success without activating anything.
func (r *Registry) Activate(caller, owner OwnerID) error {
	return r.setActive(caller, owner, true, EventActivated)
}

// Deactivate marks a validator inactive, excluding it from the committee
// at the next commit. Record-owner or registry-owner.
func (r *Registry) Deactivate(caller, owner OwnerID) error {
	return r.setActive(caller, owner, false, EventDeactivated)
}

// setActive implements Activate and Deactivate.
func (r *Registry) setActive(caller, owner OwnerID, active bool, kind EventKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireOwnerOrRegistryOwner(caller, owner); err != nil {
		return err
	}

	if owner == zeroOwner {
		return ErrInvalidInput
	}

	rec, deleted, err := r.touch(owner)
	if err != nil || deleted {
		return err
	}

	next := *rec
	attrs := next.attrs.Latest()
	attrs.Active = active
	next.attrs.Set(attrs, r.counter)

	if err := r.persist(Change{Puts: []Record{next.view(owner)}}); err != nil {
		return err
	}

	*rec = next
	r.emit(Event{Kind: kind, Owner: owner})

	return nil
}

// Remove flags a validator for deletion. Registry-owner only. The flag
// becomes readable at the next commit; the record is physically deleted
// by the first mutating touch that reads it. Removing an already-flagged
// record within the same epoch sets the flag again and is harmless.
func (r *Registry) Remove(caller, owner OwnerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRegistryOwner(caller); err != nil {
		return err
	}

	if owner == zeroOwner {
		return ErrInvalidInput
	}

	rec, deleted, err := r.touch(owner)
	if err != nil || deleted {
		return err
	}

	next := *rec
	attrs := next.attrs.Latest()
	attrs.Removed = true
	next.attrs.Set(attrs, r.counter)

	if err := r.persist(Change{Puts: []Record{next.view(owner)}}); err != nil {
		return err
	}

	*rec = next
	r.emit(Event{Kind: EventRemoved, Owner: owner})

	return nil
}

// ChangeWeight sets a validator's voting weight. Registry-owner only.
// Weight zero is legal.
func (r *Registry) ChangeWeight(caller, owner OwnerID, weight uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRegistryOwner(caller); err != nil {
		return err
	}

	if owner == zeroOwner {
		return ErrInvalidInput
	}

	rec, deleted, err := r.touch(owner)
	if err != nil || deleted {
		return err
	}

	next := *rec
	attrs := next.attrs.Latest()
	attrs.Weight = weight
	next.attrs.Set(attrs, r.counter)

	if err := r.persist(Change{Puts: []Record{next.view(owner)}}); err != nil {
		return err
	}

	*rec = next
	r.emit(Event{Kind: EventWeightChanged, Owner: owner, Weight: weight})

	return nil
}

// ChangeKey rotates a validator's public key and proof of possession.
// Record-owner or registry-owner. Rotating to the record's own current
// key is legal; rotating onto another live record's key fails with
// ErrAlreadyExists.
func (r *Registry) ChangeKey(caller, owner OwnerID, key PubKey, proof ProofOfPossession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireOwnerOrRegistryOwner(caller, owner); err != nil {
		return err
	}

	if owner == zeroOwner || key == zeroKey || proof == zeroProof {
		return ErrInvalidInput
	}

	rec, deleted, err := r.touch(owner)
	if err != nil || deleted {
		return err
	}

	oldHash := r.hasher.HashKey(rec.attrs.Latest().PubKey)
	newHash := r.hasher.HashKey(key)

	if newHash != oldHash {
		if _, taken := r.keyIndex[newHash]; taken {
			return ErrAlreadyExists
		}
	}

	next := *rec
	attrs := next.attrs.Latest()
	attrs.PubKey = key
	attrs.Proof = proof
	next.attrs.Set(attrs, r.counter)

	if err := r.persist(Change{Puts: []Record{next.view(owner)}}); err != nil {
		return err
	}

	*rec = next
	delete(r.keyIndex, oldHash)
	r.keyIndex[newHash] = owner

	r.emit(Event{Kind: EventKeyChanged, Owner: owner, PubKey: key, Proof: proof})

	return nil
}

// Commit advances the commit counter, atomically exposing every mutation
// accumulated since the previous commit. Registry-owner only. Returns the
// new counter.
func (r *Registry) Commit(caller OwnerID) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRegistryOwner(caller); err != nil {
		return 0, err
	}

	next := r.counter + 1

	if err := r.persist(Change{Counter: &next}); err != nil {
		return 0, err
	}

	r.counter = next
	r.emit(Event{Kind: EventCommitted, Counter: next})

	return next, nil
}

// requireRegistryOwner checks the registry-owner role.
func (r *Registry) requireRegistryOwner(caller OwnerID) error {
	if !r.auth.IsRegistryOwner(caller) {
		return ErrUnauthorized
	}

	return nil
}

// requireOwnerOrRegistryOwner checks the record-owner-or-registry-owner role.
func (r *Registry) requireOwnerOrRegistryOwner(caller, owner OwnerID) error {
	if caller == owner || r.auth.IsRegistryOwner(caller) {
		return nil
	}

	return ErrUnauthorized
}

// touch looks up a record and applies lazy deletion if its readable view
// carries the removed flag. Returns deleted=true when the record was
// purged; the caller's mutation then completes as a no-op success.
func (r *Registry) touch(owner OwnerID) (*record, bool, error) {
	rec, ok := r.records[owner]
	if !ok {
		return nil, false, ErrNotFound
	}

	if !rec.attrs.Get(r.counter).Removed {
		return rec, false, nil
	}

	if err := r.purge(owner, rec); err != nil {
		return nil, false, err
	}

	return nil, true, nil
}

// purge physically deletes a record: the last owner-list entry is swapped
// into the target's slot, the list shrinks by one, the moved record's
// index is fixed up, and the target's pubkey hash leaves the index.
func (r *Registry) purge(owner OwnerID, rec *record) error {
	last := len(r.owners) - 1
	moved := r.owners[last]
	change := Change{Deletes: []OwnerID{owner}}

	var movedNext record
	if moved != owner {
		movedNext = *r.records[moved]
		movedNext.index = rec.index
		change.Puts = []Record{movedNext.view(moved)}
	}

	if err := r.persist(change); err != nil {
		return err
	}

	if moved != owner {
		*r.records[moved] = movedNext
		r.owners[rec.index] = moved
	}

	r.owners = r.owners[:last]
	delete(r.records, owner)
	delete(r.keyIndex, r.hasher.HashKey(rec.attrs.Latest().PubKey))

	r.emit(Event{Kind: EventDeleted, Owner: owner})

	return nil
}
