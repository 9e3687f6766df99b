package genesis

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ValRoster/internal/registry"
)

// testAdmin is the registry owner used throughout the tests.
var testAdmin = registry.OwnerID{0xAD}

// testOwner builds a deterministic owner ID from a seed.
func testOwner(seed byte) registry.OwnerID {
	return registry.OwnerID{0x10, seed}
}

// testKey builds a deterministic public key from a seed.
func testKey(seed byte) registry.PubKey {
	var key registry.PubKey
	for i := range key {
		key[i] = seed
	}
	return key
}

// testProof builds a deterministic proof of possession from a seed.
func testProof(seed byte) registry.ProofOfPossession {
	var proof registry.ProofOfPossession
	for i := range proof {
		proof[i] = seed
	}
	return proof
}

// testDocument builds the raw JSON document for n validators.
func testDocument(t *testing.T, n int) []byte {
	t.Helper()

	doc := document{RegistryOwner: hex.EncodeToString(testAdmin[:])}
	for i := 0; i < n; i++ {
		seed := byte(i + 1)
		key := testKey(seed)
		proof := testProof(seed)
		owner := testOwner(seed)
		doc.Validators = append(doc.Validators, docValidator{
			Owner:  hex.EncodeToString(owner[:]),
			Weight: uint32(10 * (i + 1)),
			PubKey: hex.EncodeToString(key[:]),
			Proof:  hex.EncodeToString(proof[:]),
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal test document: %v", err)
	}
	return data
}

// ============================================================================
// Parsing
// ============================================================================

// TestParse_ValidDocument tests that a well-formed document decodes into
// the typed config.
func TestParse_ValidDocument(t *testing.T) {
	cfg, err := Parse(testDocument(t, 2))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.RegistryOwner != testAdmin {
		t.Errorf("registry owner = %x, want %x", cfg.RegistryOwner[:2], testAdmin[:2])
	}
	if len(cfg.Validators) != 2 {
		t.Fatalf("validators = %d, want 2", len(cfg.Validators))
	}

	v := cfg.Validators[1]
	if want := testOwner(2); v.Owner != want {
		t.Errorf("owner = %x, want %x", v.Owner[:2], want[:2])
	}
	if v.Weight != 20 {
		t.Errorf("weight = %d, want 20", v.Weight)
	}
	if v.PubKey != testKey(2) {
		t.Errorf("pubkey mismatch")
	}
	if v.Proof != testProof(2) {
		t.Errorf("proof mismatch")
	}
}

// TestParse_EmptyRoster tests that a document with no validators is legal.
func TestParse_EmptyRoster(t *testing.T) {
	cfg, err := Parse(testDocument(t, 0))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.Validators) != 0 {
		t.Errorf("validators = %d, want 0", len(cfg.Validators))
	}
}

// TestParse_InvalidDocuments tests that malformed documents are rejected.
func TestParse_InvalidDocuments(t *testing.T) {
	valid := string(testDocument(t, 1))
	owner := testOwner(1)
	key := testKey(1)
	proof := testProof(1)

	tests := []struct {
		name string
		data string
	}{
		{"not json", "{broken"},
		{"zero registry owner", strings.Replace(valid, hex.EncodeToString(testAdmin[:]), strings.Repeat("00", registry.OwnerIDSize), 1)},
		{"bad hex in owner", strings.Replace(valid, hex.EncodeToString(owner[:]), "zz", 1)},
		{"short registry owner", strings.Replace(valid, hex.EncodeToString(testAdmin[:]), "ad00", 1)},
		{"short pubkey", strings.Replace(valid, hex.EncodeToString(key[:]), "0101", 1)},
		{"short pop", strings.Replace(valid, hex.EncodeToString(proof[:]), "0101", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Errorf("parse accepted %s", tt.name)
			}
		})
	}
}

// ============================================================================
// File loading
// ============================================================================

// TestLoad_RoundTrip tests loading a genesis document from disk.
func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, testDocument(t, 3), 0o644); err != nil {
		t.Fatalf("write genesis file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Validators) != 3 {
		t.Errorf("validators = %d, want 3", len(cfg.Validators))
	}
}

// TestLoad_MissingFile tests the error path for an absent file.
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("load succeeded on missing file")
	}
}

// ============================================================================
// Applying to a registry
// ============================================================================

// TestApply_SeedsRegistry tests that applying a genesis config populates
// the registry and publishes the roster as the first committee.
func TestApply_SeedsRegistry(t *testing.T) {
	cfg, err := Parse(testDocument(t, 3))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	reg := registry.New(registry.StaticAuthorizer{Owner: testAdmin})
	if err := Apply(cfg, reg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if reg.Count() != 3 {
		t.Errorf("count = %d, want 3", reg.Count())
	}
	if reg.Counter() != 1 {
		t.Errorf("counter = %d, want 1 after the genesis commit", reg.Counter())
	}

	committee := reg.Committee()
	if len(committee) != 3 {
		t.Fatalf("committee size = %d, want 3", len(committee))
	}
	if committee[0].Weight != 10 || committee[0].PubKey != testKey(1) {
		t.Errorf("first member = %+v, want weight 10 with key 1", committee[0])
	}
}

// TestApply_DuplicateOwner tests that a roster with a repeated owner is
// rejected by the underlying add.
func TestApply_DuplicateOwner(t *testing.T) {
	cfg, err := Parse(testDocument(t, 2))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Validators[1].Owner = cfg.Validators[0].Owner

	reg := registry.New(registry.StaticAuthorizer{Owner: testAdmin})
	err = Apply(cfg, reg)
	if !errors.Is(err, registry.ErrAlreadyExists) {
		t.Fatalf("apply error = %v, want ErrAlreadyExists", err)
	}
}

// TestApply_NonEmptyRegistry tests that genesis refuses to seed a
// registry that already holds records.
func TestApply_NonEmptyRegistry(t *testing.T) {
	cfg, err := Parse(testDocument(t, 1))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	reg := registry.New(registry.StaticAuthorizer{Owner: testAdmin})
	if err := reg.Add(testAdmin, testOwner(9), 5, testKey(9), testProof(9)); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if err := Apply(cfg, reg); err == nil {
		t.Fatal("apply succeeded on a non-empty registry")
	}
}
