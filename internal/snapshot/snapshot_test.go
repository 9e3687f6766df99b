package snapshot

import (
	"bytes"
	"reflect"
	"testing"

	"ValRoster/internal/registry"
)

// snapRecord builds a distinguishable record for a seed byte.
func snapRecord(seed byte, index uint32) registry.Record {
	return registry.Record{
		Owner:      registry.OwnerID{seed},
		OwnerIndex: index,
		ActiveFrom: uint64(seed) * 2,
		Latest: registry.Attributes{
			Active: true,
			Weight: uint32(seed) * 10,
			PubKey: registry.PubKey{seed},
			Proof:  registry.ProofOfPossession{seed},
		},
		Snapshot: registry.Attributes{
			Weight: uint32(seed),
			PubKey: registry.PubKey{seed, seed},
		},
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	state := registry.State{
		Counter: 17,
		Records: []registry.Record{
			snapRecord(1, 0),
			snapRecord(2, 1),
			snapRecord(3, 2),
		},
	}

	data, err := Export(state)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, err := Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if !reflect.DeepEqual(got, state) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, state)
	}
}

func TestExportImport_EmptyState(t *testing.T) {
	data, err := Export(registry.State{Counter: 5})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, err := Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if got.Counter != 5 {
		t.Errorf("counter = %d, want 5", got.Counter)
	}
	if len(got.Records) != 0 {
		t.Errorf("records = %d, want 0", len(got.Records))
	}
}

func TestExport_Deterministic(t *testing.T) {
	// Same records, different in-memory order.
	a := registry.State{
		Counter: 3,
		Records: []registry.Record{snapRecord(1, 0), snapRecord(2, 1), snapRecord(3, 2)},
	}
	b := registry.State{
		Counter: 3,
		Records: []registry.Record{snapRecord(3, 2), snapRecord(1, 0), snapRecord(2, 1)},
	}

	dataA, err := Export(a)
	if err != nil {
		t.Fatalf("Export a: %v", err)
	}
	dataB, err := Export(b)
	if err != nil {
		t.Fatalf("Export b: %v", err)
	}

	if !bytes.Equal(dataA, dataB) {
		t.Error("snapshots of equal states differ")
	}
}

func TestImport_RejectsGarbage(t *testing.T) {
	if _, err := Import([]byte("not a snapshot")); err == nil {
		t.Error("expected error for non-zstd input")
	}
}

func TestImport_RejectsTamperedRecord(t *testing.T) {
	state := registry.State{
		Counter: 1,
		Records: []registry.Record{snapRecord(1, 0)},
	}

	data, err := Export(state)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	raw, err := decompress(data)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}

	// Flip a byte inside the record payload and recompress.
	raw[headerSize+registry.OwnerIDSize+2] ^= 0xFF

	tampered, err := compress(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	if _, err := Import(tampered); err == nil {
		t.Error("expected checksum error for tampered snapshot")
	}
}

func TestImport_RejectsBadVersion(t *testing.T) {
	data, err := Export(registry.State{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	raw, err := decompress(data)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}

	raw[0] = 0xFE

	bad, err := compress(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	if _, err := Import(bad); err == nil {
		t.Error("expected error for unknown version")
	}
}

func TestImport_RejectsTruncation(t *testing.T) {
	state := registry.State{
		Counter: 1,
		Records: []registry.Record{snapRecord(1, 0), snapRecord(2, 1)},
	}

	data, err := Export(state)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	raw, err := decompress(data)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}

	truncated, err := compress(raw[:len(raw)-10])
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	if _, err := Import(truncated); err == nil {
		t.Error("expected error for truncated snapshot")
	}
}

// TestImport_RestorableState checks that an imported state passes the
// registry's own restore validation, end to end.
func TestImport_RestorableState(t *testing.T) {
	state := registry.State{
		Counter: 2,
		Records: []registry.Record{snapRecord(1, 0), snapRecord(2, 1)},
	}

	data, err := Export(state)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	imported, err := Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	reg := registry.New(registry.StaticAuthorizer{Owner: registry.OwnerID{0xAD}})
	if err := reg.Restore(imported); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if reg.Counter() != 2 {
		t.Errorf("counter = %d, want 2", reg.Counter())
	}
	if reg.Count() != 2 {
		t.Errorf("count = %d, want 2", reg.Count())
	}
}
