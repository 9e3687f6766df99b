package registry

// Versioned holds a value in two slots: latest, written by mutations, and
// snapshot, frozen at the last epoch boundary before the current run of
// mutations. activeFrom is the first epoch at which latest is readable.
// The dual-slot layout bounds the per-value overhead to O(1) regardless of
// how many epochs the value lives through.
type Versioned[T any] struct {
	latest     T
	snapshot   T
	activeFrom uint64
}

// NewVersioned creates a versioned value readable from the given epoch on.
// The snapshot slot holds the zero value of T.
func NewVersioned[T any](value T, epoch uint64) Versioned[T] {
	return Versioned[T]{latest: value, activeFrom: epoch}
}

// RestoreVersioned rebuilds a versioned value from its stored slots.
func RestoreVersioned[T any](latest, snapshot T, activeFrom uint64) Versioned[T] {
	return Versioned[T]{latest: latest, snapshot: snapshot, activeFrom: activeFrom}
}

// Get returns the value readable at the given epoch: latest once the epoch
// has reached activeFrom, the frozen snapshot before that.
func (v *Versioned[T]) Get(epoch uint64) T {
	if epoch >= v.activeFrom {
		return v.latest
	}

	return v.snapshot
}

// Set writes a new value that becomes readable at epoch+1. The first write
// inside an epoch copies the previous latest into the snapshot slot so
// readers of the current epoch keep seeing the pre-epoch value; further
// writes in the same epoch overwrite latest only.
func (v *Versioned[T]) Set(value T, epoch uint64) {
	if v.activeFrom <= epoch {
		v.snapshot = v.latest
		v.activeFrom = epoch + 1
	}

	v.latest = value
}

// Latest returns the most recently written value regardless of epoch.
func (v *Versioned[T]) Latest() T {
	return v.latest
}

// Snapshot returns the frozen slot: the pre-epoch value while a mutation
// is pending, the zero value for a never-mutated record.
func (v *Versioned[T]) Snapshot() T {
	return v.snapshot
}

// ActiveFrom returns the first epoch at which latest is readable.
func (v *Versioned[T]) ActiveFrom() uint64 {
	return v.activeFrom
}
