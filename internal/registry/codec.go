package registry

import (
	"encoding/binary"
	"fmt"
)

const (
	// attrsEncodedSize is the encoded size of one attribute set.
	// Layout: u8 active + u8 removed + u32 weight + pubkey + proof.
	attrsEncodedSize = 1 + 1 + 4 + PubKeySize + ProofSize

	// RecordEncodedSize is the encoded size of one record value.
	// Layout: u32 ownerIndex + u64 activeFrom + latest attrs + snapshot attrs.
	// The owner id is the storage key and is not part of the value.
	RecordEncodedSize = 4 + 8 + 2*attrsEncodedSize
)

// EncodeRecord encodes a record value for storage. All integers are
// little-endian, all fields fixed width.
func EncodeRecord(rec Record) []byte {
	buf := make([]byte, RecordEncodedSize)

	binary.LittleEndian.PutUint32(buf[0:4], rec.OwnerIndex)
	binary.LittleEndian.PutUint64(buf[4:12], rec.ActiveFrom)

	encodeAttrs(buf[12:12+attrsEncodedSize], rec.Latest)
	encodeAttrs(buf[12+attrsEncodedSize:], rec.Snapshot)

	return buf
}

// DecodeRecord decodes a record value read from storage. The owner id is
// supplied by the caller from the storage key.
func DecodeRecord(owner OwnerID, data []byte) (Record, error) {
	if len(data) != RecordEncodedSize {
		return Record{}, fmt.Errorf("invalid record size: got %d, want %d", len(data), RecordEncodedSize)
	}

	rec := Record{
		Owner:      owner,
		OwnerIndex: binary.LittleEndian.Uint32(data[0:4]),
		ActiveFrom: binary.LittleEndian.Uint64(data[4:12]),
		Latest:     decodeAttrs(data[12 : 12+attrsEncodedSize]),
		Snapshot:   decodeAttrs(data[12+attrsEncodedSize:]),
	}

	return rec, nil
}

// encodeAttrs writes one attribute set into buf.
func encodeAttrs(buf []byte, attrs Attributes) {
	buf[0] = encodeBool(attrs.Active)
	buf[1] = encodeBool(attrs.Removed)
	binary.LittleEndian.PutUint32(buf[2:6], attrs.Weight)
	copy(buf[6:6+PubKeySize], attrs.PubKey[:])
	copy(buf[6+PubKeySize:], attrs.Proof[:])
}

// decodeAttrs reads one attribute set from buf.
func decodeAttrs(buf []byte) Attributes {
	attrs := Attributes{
		Active:  buf[0] != 0,
		Removed: buf[1] != 0,
		Weight:  binary.LittleEndian.Uint32(buf[2:6]),
	}

	copy(attrs.PubKey[:], buf[6:6+PubKeySize])
	copy(attrs.Proof[:], buf[6+PubKeySize:])

	return attrs
}

// encodeBool encodes a bool as a single byte.
func encodeBool(b bool) byte {
	if b {
		return 1
	}

	return 0
}
