package registry

const (
	// OwnerIDSize is the size of an owner identity in bytes.
	OwnerIDSize = 20

	// PubKeySize is the size of a compressed BLS12-381 G2 public key in bytes.
	PubKeySize = 96

	// ProofSize is the size of a compressed BLS12-381 G1 signature in bytes.
	ProofSize = 48

	// KeyHashSize is the size of a public key hash in bytes.
	KeyHashSize = 32
)

// OwnerID identifies the owner of a validator record.
type OwnerID [OwnerIDSize]byte

// PubKey is a validator's BLS public key in compressed form.
type PubKey [PubKeySize]byte

// ProofOfPossession is the validator's self-signature over its public key.
// The registry treats it as opaque bytes; only emptiness is checked.
type ProofOfPossession [ProofSize]byte

// KeyHash is the uniqueness-index key derived from a public key.
type KeyHash [KeyHashSize]byte

// Zero sentinels used by input validation.
var (
	zeroOwner OwnerID
	zeroKey   PubKey
	zeroProof ProofOfPossession
)

// Attributes is the versioned payload of a validator record.
// It is replaced wholesale on every mutation, never edited in place.
type Attributes struct {
	Active  bool              // Active marks the validator as committee-eligible
	Removed bool              // Removed marks the record for physical deletion on next touch
	Weight  uint32            // Weight is the validator's voting weight
	PubKey  PubKey            // PubKey is the validator's BLS public key
	Proof   ProofOfPossession // Proof is the proof of possession for PubKey
}

// CommitteeMember is one entry of the committee projection.
type CommitteeMember struct {
	Owner  OwnerID           // Owner identifies the validator record
	Weight uint32            // Weight is the validator's voting weight
	PubKey PubKey            // PubKey is the validator's BLS public key
	Proof  ProofOfPossession // Proof is the proof of possession for PubKey
}

// Record is the externally visible form of one validator record.
// OwnerIndex is the record's position in the dense owner list. ActiveFrom
// is the first commit epoch at which Latest is the readable attribute set;
// before that epoch readers see Snapshot.
type Record struct {
	Owner      OwnerID    // Owner is the record key
	OwnerIndex uint32     // OwnerIndex is the position in the owner list
	ActiveFrom uint64     // ActiveFrom is the first epoch at which Latest is readable
	Latest     Attributes // Latest holds the most recently written attributes
	Snapshot   Attributes // Snapshot holds the pre-epoch attributes while a mutation is pending
}

// versioned reassembles the record's dual-slot value.
func (rec Record) versioned() Versioned[Attributes] {
	return Versioned[Attributes]{
		latest:     rec.Latest,
		snapshot:   rec.Snapshot,
		activeFrom: rec.ActiveFrom,
	}
}

// Readable returns the attribute set visible at the given commit epoch.
func (rec Record) Readable(counter uint64) Attributes {
	v := rec.versioned()
	return v.Get(counter)
}

// State is a full copy of the registry's contents. Record order is not
// significant; each record carries its own OwnerIndex.
type State struct {
	Counter uint64   // Counter is the global commit counter
	Records []Record // Records holds every record
}

// record is the internal representation of a validator record.
type record struct {
	index uint32                // index is the position in the owner list
	attrs Versioned[Attributes] // attrs is the dual-slot attribute value
}

// view converts an internal record to its external form.
func (rec *record) view(owner OwnerID) Record {
	return Record{
		Owner:      owner,
		OwnerIndex: rec.index,
		ActiveFrom: rec.attrs.ActiveFrom(),
		Latest:     rec.attrs.Latest(),
		Snapshot:   rec.attrs.Snapshot(),
	}
}

// fromView converts an external record back to the internal representation.
func fromView(v Record) *record {
	return &record{
		index: v.OwnerIndex,
		attrs: RestoreVersioned(v.Latest, v.Snapshot, v.ActiveFrom),
	}
}
