package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"ValRoster/internal/registry"
)

const (
	// formatVersion is the current snapshot format version.
	formatVersion = 1

	// headerSize covers version (u32), counter (u64) and record count (u32).
	headerSize = 4 + 8 + 4

	// checksumSize is the blake3 checksum appended after the records.
	checksumSize = 32

	// entrySize is one record entry: owner id followed by the record value.
	entrySize = registry.OwnerIDSize + registry.RecordEncodedSize
)

// Export serializes a registry state into a compressed snapshot.
// Records are sorted by owner id, so equal states produce byte-identical
// snapshots regardless of in-memory ordering.
func Export(state registry.State) ([]byte, error) {
	records := make([]registry.Record, len(state.Records))
	copy(records, state.Records)
	sortRecords(records)

	raw := make([]byte, 0, headerSize+len(records)*entrySize+checksumSize)

	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], formatVersion)
	binary.LittleEndian.PutUint64(header[4:12], state.Counter)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(records)))
	raw = append(raw, header[:]...)

	for _, rec := range records {
		raw = append(raw, rec.Owner[:]...)
		raw = append(raw, registry.EncodeRecord(rec)...)
	}

	checksum := computeChecksum(state.Counter, records)
	raw = append(raw, checksum[:]...)

	return compress(raw)
}

// Import decompresses and verifies a snapshot and returns the state it
// carries. The checksum must match; a corrupt or truncated snapshot is
// rejected without partial results.
func Import(data []byte) (registry.State, error) {
	raw, err := decompress(data)
	if err != nil {
		return registry.State{}, fmt.Errorf("decompress snapshot:\n%w", err)
	}

	if len(raw) < headerSize+checksumSize {
		return registry.State{}, fmt.Errorf("snapshot too short: %d bytes", len(raw))
	}

	version := binary.LittleEndian.Uint32(raw[0:4])
	if version != formatVersion {
		return registry.State{}, fmt.Errorf("unsupported snapshot version %d", version)
	}

	counter := binary.LittleEndian.Uint64(raw[4:12])
	count := int(binary.LittleEndian.Uint32(raw[12:16]))

	want := headerSize + count*entrySize + checksumSize
	if len(raw) != want {
		return registry.State{}, fmt.Errorf("invalid snapshot size: got %d, want %d for %d records", len(raw), want, count)
	}

	records := make([]registry.Record, count)
	offset := headerSize

	for i := 0; i < count; i++ {
		var owner registry.OwnerID
		copy(owner[:], raw[offset:offset+registry.OwnerIDSize])
		offset += registry.OwnerIDSize

		rec, err := registry.DecodeRecord(owner, raw[offset:offset+registry.RecordEncodedSize])
		if err != nil {
			return registry.State{}, fmt.Errorf("decode record %d:\n%w", i, err)
		}
		offset += registry.RecordEncodedSize

		records[i] = rec
	}

	stored := raw[offset:]
	computed := computeChecksum(counter, records)
	if !bytes.Equal(stored, computed[:]) {
		return registry.State{}, fmt.Errorf("checksum mismatch")
	}

	return registry.State{Counter: counter, Records: records}, nil
}

// sortRecords orders records by owner id.
func sortRecords(records []registry.Record) {
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Owner[:], records[j].Owner[:]) < 0
	})
}

// computeChecksum computes a blake3 checksum over canonical snapshot data.
// Format: version (4 bytes) + counter (8 bytes) + per record: owner id +
// length-framed record value. Lengths and integers are big-endian here,
// independent of the storage codec.
func computeChecksum(counter uint64, records []registry.Record) [checksumSize]byte {
	hasher := blake3.New()

	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], formatVersion)
	hasher.Write(buf[:4])

	binary.BigEndian.PutUint64(buf[:], counter)
	hasher.Write(buf[:])

	for _, rec := range records {
		hasher.Write(rec.Owner[:])

		value := registry.EncodeRecord(rec)
		binary.BigEndian.PutUint32(buf[:4], uint32(len(value)))
		hasher.Write(buf[:4])
		hasher.Write(value)
	}

	var checksum [checksumSize]byte
	hasher.Sum(checksum[:0])

	return checksum
}

// compress compresses raw snapshot bytes using zstd.
func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// decompress decompresses zstd-compressed snapshot bytes.
func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}
