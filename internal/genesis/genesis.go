// Package genesis loads the initial roster document and seeds an empty
// registry from it. The document is JSON with hex-encoded binary fields:
//
//	{
//	  "registryOwner": "<20-byte hex>",
//	  "validators": [
//	    {"owner": "<20-byte hex>", "weight": 10,
//	     "pubKey": "<96-byte hex>", "pop": "<48-byte hex>"}
//	  ]
//	}
package genesis

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"ValRoster/internal/registry"
)

// Validator is one roster entry in the genesis document.
type Validator struct {
	// Owner identifies the record and is the only identity allowed to
	// manage it besides the registry owner.
	Owner registry.OwnerID

	// Weight is the initial voting weight.
	Weight uint32

	// PubKey is the validator's compressed BLS public key.
	PubKey registry.PubKey

	// Proof is the proof of possession for PubKey.
	Proof registry.ProofOfPossession
}

// Config is a parsed genesis document.
type Config struct {
	// RegistryOwner is the administrative identity. Every genesis entry
	// is added on its behalf.
	RegistryOwner registry.OwnerID

	// Validators is the initial roster. It may be empty: a registry can
	// start bare and grow through the API.
	Validators []Validator
}

// document mirrors the JSON wire shape before hex decoding.
type document struct {
	RegistryOwner string         `json:"registryOwner"`
	Validators    []docValidator `json:"validators"`
}

type docValidator struct {
	Owner  string `json:"owner"`
	Weight uint32 `json:"weight"`
	PubKey string `json:"pubKey"`
	Proof  string `json:"pop"`
}

// Load reads and parses the genesis file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read genesis file:\n%w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse genesis file %s:\n%w", path, err)
	}

	return cfg, nil
}

// Parse decodes a genesis document from JSON bytes and validates its
// structure. Roster-level rules (duplicate owners, duplicate keys) are
// enforced later by the registry itself when the config is applied.
func Parse(data []byte) (Config, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("decode json:\n%w", err)
	}

	var cfg Config
	if err := decodeHex(cfg.RegistryOwner[:], doc.RegistryOwner, "registryOwner"); err != nil {
		return Config{}, err
	}
	if cfg.RegistryOwner == (registry.OwnerID{}) {
		return Config{}, fmt.Errorf("registryOwner is zero")
	}

	cfg.Validators = make([]Validator, 0, len(doc.Validators))
	for i, dv := range doc.Validators {
		var v Validator
		if err := decodeHex(v.Owner[:], dv.Owner, "owner"); err != nil {
			return Config{}, fmt.Errorf("validator %d: %w", i, err)
		}
		if err := decodeHex(v.PubKey[:], dv.PubKey, "pubKey"); err != nil {
			return Config{}, fmt.Errorf("validator %d: %w", i, err)
		}
		if err := decodeHex(v.Proof[:], dv.Proof, "pop"); err != nil {
			return Config{}, fmt.Errorf("validator %d: %w", i, err)
		}
		v.Weight = dv.Weight
		cfg.Validators = append(cfg.Validators, v)
	}

	return cfg, nil
}

// Apply seeds reg with the genesis roster: each validator is added on
// behalf of the registry owner, then a single commit publishes the
// roster as the first committee. The registry must be empty.
func Apply(cfg Config, reg *registry.Registry) error {
	if reg.Count() != 0 {
		return fmt.Errorf("registry is not empty")
	}

	for i, v := range cfg.Validators {
		err := reg.Add(cfg.RegistryOwner, v.Owner, v.Weight, v.PubKey, v.Proof)
		if err != nil {
			return fmt.Errorf("add genesis validator %d (%x):\n%w", i, v.Owner[:4], err)
		}
	}

	if _, err := reg.Commit(cfg.RegistryOwner); err != nil {
		return fmt.Errorf("genesis commit:\n%w", err)
	}

	return nil
}

// decodeHex decodes a fixed-width hex field into dst.
func decodeHex(dst []byte, value, field string) error {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return fmt.Errorf("%s: invalid hex:\n%w", field, err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("%s: got %d bytes, want %d", field, len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}
