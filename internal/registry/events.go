package registry

// EventKind identifies a registry event.
type EventKind uint8

const (
	// EventAdded signals a new validator record.
	EventAdded EventKind = iota + 1

	// EventDeactivated signals a validator leaving the committee projection.
	EventDeactivated

	// EventActivated signals a validator rejoining the committee projection.
	EventActivated

	// EventRemoved signals a validator flagged for deletion.
	EventRemoved

	// EventDeleted signals the physical deletion of a record.
	EventDeleted

	// EventWeightChanged signals a new voting weight.
	EventWeightChanged

	// EventKeyChanged signals a key rotation.
	EventKeyChanged

	// EventCommitted signals an advanced commit counter.
	EventCommitted
)

// String returns the event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventDeactivated:
		return "deactivated"
	case EventActivated:
		return "activated"
	case EventRemoved:
		return "removed"
	case EventDeleted:
		return "deleted"
	case EventWeightChanged:
		return "weight_changed"
	case EventKeyChanged:
		return "key_changed"
	case EventCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Event describes a completed registry mutation. Owner is zero for
// Committed events; Weight, PubKey and Proof are set only for the kinds
// that change them.
type Event struct {
	Kind    EventKind         // Kind identifies the mutation
	Owner   OwnerID           // Owner is the affected record's owner
	Weight  uint32            // Weight is the new weight (Added, WeightChanged)
	PubKey  PubKey            // PubKey is the new key (Added, KeyChanged)
	Proof   ProofOfPossession // Proof is the new proof (Added, KeyChanged)
	Counter uint64            // Counter is the new commit counter (Committed)
}
