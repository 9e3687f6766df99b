package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ValRoster/internal/blskeys"
	"ValRoster/internal/registry"
)

// callerHeader carries the hex-encoded identity performing a mutation.
const callerHeader = "X-Roster-Caller"

// readCaller extracts and decodes the caller identity header.
func readCaller(r *http.Request) (registry.OwnerID, error) {
	value := r.Header.Get(callerHeader)
	if value == "" {
		return registry.OwnerID{}, fmt.Errorf("missing %s header", callerHeader)
	}

	caller, err := parseOwner(value)
	if err != nil {
		return registry.OwnerID{}, fmt.Errorf("invalid %s header: %w", callerHeader, err)
	}

	return caller, nil
}

// decodeBody reads a JSON request body into dst, bounded by maxBodySize.
func decodeBody(r *http.Request, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read body")
	}

	if len(data) == 0 {
		return fmt.Errorf("empty body")
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("malformed json body")
	}

	return nil
}

// parseOwner decodes a hex-encoded owner ID.
func parseOwner(value string) (registry.OwnerID, error) {
	var owner registry.OwnerID
	if err := decodeFixedHex(owner[:], value, "owner"); err != nil {
		return registry.OwnerID{}, err
	}

	return owner, nil
}

// parseKey decodes a hex-encoded BLS public key.
func parseKey(value string) (registry.PubKey, error) {
	var key registry.PubKey
	if err := decodeFixedHex(key[:], value, "pubKey"); err != nil {
		return registry.PubKey{}, err
	}

	return key, nil
}

// parseProof decodes a hex-encoded proof of possession.
func parseProof(value string) (registry.ProofOfPossession, error) {
	var proof registry.ProofOfPossession
	if err := decodeFixedHex(proof[:], value, "pop"); err != nil {
		return registry.ProofOfPossession{}, err
	}

	return proof, nil
}

// parseValidatorFields decodes the owner, key and proof of an add
// request and verifies the proof of possession.
func parseValidatorFields(ownerHex, keyHex, proofHex string) (registry.OwnerID, registry.PubKey, registry.ProofOfPossession, error) {
	owner, err := parseOwner(ownerHex)
	if err != nil {
		return registry.OwnerID{}, registry.PubKey{}, registry.ProofOfPossession{}, err
	}

	key, err := parseKey(keyHex)
	if err != nil {
		return registry.OwnerID{}, registry.PubKey{}, registry.ProofOfPossession{}, err
	}

	proof, err := parseProof(proofHex)
	if err != nil {
		return registry.OwnerID{}, registry.PubKey{}, registry.ProofOfPossession{}, err
	}

	if err := verifyKeyProof(key, proof); err != nil {
		return registry.OwnerID{}, registry.PubKey{}, registry.ProofOfPossession{}, err
	}

	return owner, key, proof, nil
}

// verifyKeyProof checks that the proof of possession signs the public
// key with its own secret. The registry itself treats both as opaque
// bytes, so the check has to happen at the API boundary.
func verifyKeyProof(key registry.PubKey, proof registry.ProofOfPossession) error {
	if !blskeys.VerifyProof(key, proof) {
		return fmt.Errorf("proof of possession does not verify")
	}

	return nil
}

// decodeFixedHex decodes a hex string into a fixed-size destination.
func decodeFixedHex(dst []byte, value, field string) error {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return fmt.Errorf("invalid hex in %s", field)
	}

	if len(raw) != len(dst) {
		return fmt.Errorf("invalid %s size: got %d bytes, want %d", field, len(raw), len(dst))
	}

	copy(dst, raw)

	return nil
}
