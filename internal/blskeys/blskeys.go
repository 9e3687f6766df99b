package blskeys

import (
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"

	"ValRoster/internal/registry"
)

const (
	// SeedSize is the minimum seed length for deterministic key generation.
	SeedSize = 32

	// SecretKeySize is the serialized secret key length.
	SecretKeySize = 32
)

// popDST is the domain separation tag for proofs of possession in the
// min-sig configuration: public keys on G2 (96 bytes compressed),
// proofs on G1 (48 bytes compressed).
var popDST = []byte("BLS_POP_BLS12381G1_XMD:SHA-256_SSWU_RO_POP_")

// KeyPair holds a BLS private/public key pair.
type KeyPair struct {
	secret *blst.SecretKey // secret is the private key
	public *blst.P2Affine  // public is the public key
}

// Generate creates a new key pair from a random seed.
func Generate() (*KeyPair, error) {
	var ikm [SeedSize]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("generate random seed:\n%w", err)
	}

	return FromSeed(ikm[:])
}

// FromSeed creates a key pair from a deterministic seed.
// The seed must be at least 32 bytes.
func FromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) < SeedSize {
		return nil, fmt.Errorf("seed must be at least %d bytes", SeedSize)
	}

	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("failed to generate BLS key")
	}

	return &KeyPair{
		secret: secret,
		public: new(blst.P2Affine).From(secret),
	}, nil
}

// FromSecretBytes restores a key pair from a serialized secret key, as
// stored in a key file.
func FromSecretBytes(data []byte) (*KeyPair, error) {
	if len(data) != SecretKeySize {
		return nil, fmt.Errorf("invalid secret key size: got %d, want %d", len(data), SecretKeySize)
	}

	secret := new(blst.SecretKey).Deserialize(data)
	if secret == nil {
		return nil, fmt.Errorf("invalid secret key")
	}

	return &KeyPair{
		secret: secret,
		public: new(blst.P2Affine).From(secret),
	}, nil
}

// SecretBytes returns the serialized secret key for key files.
func (k *KeyPair) SecretBytes() []byte {
	return k.secret.Serialize()
}

// PublicKey returns the compressed public key.
func (k *KeyPair) PublicKey() registry.PubKey {
	var key registry.PubKey
	copy(key[:], k.public.Compress())

	return key
}

// Proof returns the proof of possession: a signature over the compressed
// public key under the PoP tag.
func (k *KeyPair) Proof() registry.ProofOfPossession {
	key := k.PublicKey()
	sig := new(blst.P1Affine).Sign(k.secret, key[:], popDST)

	var proof registry.ProofOfPossession
	copy(proof[:], sig.Compress())

	return proof
}

// VerifyProof checks a proof of possession against a public key.
func VerifyProof(key registry.PubKey, proof registry.ProofOfPossession) bool {
	sig := new(blst.P1Affine).Uncompress(proof[:])
	if sig == nil {
		return false
	}

	pk := new(blst.P2Affine).Uncompress(key[:])
	if pk == nil {
		return false
	}

	return sig.Verify(true, pk, true, key[:], popDST)
}
