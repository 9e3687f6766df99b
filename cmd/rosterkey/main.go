// Command rosterkey generates validator registration material: a BLS
// secret key file plus the hex public key and proof of possession to
// submit with an add or key rotation call.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"ValRoster/internal/blskeys"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		outPath   string
		seedHex   string
		checkPath string
	)

	flag.StringVar(&outPath, "out", "validator.key", "path for the new secret key file")
	flag.StringVar(&seedHex, "seed", "", "derive the key from a 32 byte hex seed instead of random")
	flag.StringVar(&checkPath, "check", "", "verify an existing key file and print its public material")
	flag.Parse()

	if checkPath != "" {
		return check(checkPath)
	}

	return generate(outPath, seedHex)
}

// generate creates a key pair, saves the secret scalar and prints the
// public material.
func generate(outPath, seedHex string) error {
	if _, err := os.Stat(outPath); err == nil {
		return fmt.Errorf("key file %s already exists", outPath)
	}

	pair, err := newPair(seedHex)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, pair.SecretBytes(), 0600); err != nil {
		return fmt.Errorf("write key file:\n%w", err)
	}

	fmt.Printf("key file: %s\n", outPath)
	printPublicMaterial(pair)
	return nil
}

// newPair derives the key pair from the seed, or randomly without one.
func newPair(seedHex string) (*blskeys.KeyPair, error) {
	if seedHex == "" {
		return blskeys.Generate()
	}

	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex in seed: %w", err)
	}

	return blskeys.FromSeed(seed)
}

// check loads a key file, re-verifies its proof of possession and prints
// the public material.
func check(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read key file:\n%w", err)
	}

	pair, err := blskeys.FromSecretBytes(data)
	if err != nil {
		return fmt.Errorf("parse key file %s:\n%w", path, err)
	}

	if !blskeys.VerifyProof(pair.PublicKey(), pair.Proof()) {
		return fmt.Errorf("proof of possession does not verify for %s", path)
	}

	fmt.Printf("key file: %s (proof verifies)\n", path)
	printPublicMaterial(pair)
	return nil
}

// printPublicMaterial prints the hex public key and proof of possession.
func printPublicMaterial(pair *blskeys.KeyPair) {
	pub := pair.PublicKey()
	proof := pair.Proof()

	fmt.Printf("public key: %s\n", hex.EncodeToString(pub[:]))
	fmt.Printf("proof:      %s\n", hex.EncodeToString(proof[:]))
}
