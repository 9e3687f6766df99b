//go:build ignore

package main

import (
	"bytes"
	"fmt"
	"os"

	"ValRoster/internal/registry"
	"ValRoster/internal/storage"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <db1_path> <db2_path>\n", os.Args[0])
		os.Exit(1)
	}

	db1Path := os.Args[1]
	db2Path := os.Args[2]

	state1 := loadState(db1Path)
	state2 := loadState(db2Path)

	fmt.Printf("DB1 (%s): counter %d, %d records\n", db1Path, state1.Counter, len(state1.Records))
	fmt.Printf("DB2 (%s): counter %d, %d records\n", db2Path, state2.Counter, len(state2.Records))

	missing1, missing2, different := compare(state1, state2)

	if state1.Counter == state2.Counter &&
		len(missing1) == 0 && len(missing2) == 0 && len(different) == 0 {
		fmt.Println("\n✓ Rosters are identical!")
		os.Exit(0)
	}

	fmt.Println("\n✗ Rosters differ:")

	if state1.Counter != state2.Counter {
		fmt.Printf("  - Commit counters: %d vs %d\n", state1.Counter, state2.Counter)
	}

	if len(missing1) > 0 {
		fmt.Printf("  - Validators in DB1 but not in DB2: %d\n", len(missing1))
		for _, owner := range missing1 {
			fmt.Printf("      %x\n", owner[:8])
		}
	}

	if len(missing2) > 0 {
		fmt.Printf("  - Validators in DB2 but not in DB1: %d\n", len(missing2))
		for _, owner := range missing2 {
			fmt.Printf("      %x\n", owner[:8])
		}
	}

	if len(different) > 0 {
		fmt.Printf("  - Validators with different records: %d\n", len(different))
		for _, owner := range different {
			fmt.Printf("      %x\n", owner[:8])
		}
	}

	os.Exit(1)
}

func loadState(path string) registry.State {
	db, err := storage.New(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer db.Close()

	state, err := db.LoadState()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", path, err)
		os.Exit(1)
	}

	return state
}

func compare(s1, s2 registry.State) (missing1, missing2, different []registry.OwnerID) {
	records1 := encodeByOwner(s1.Records)
	records2 := encodeByOwner(s2.Records)

	// Find validators in DB1 but not in DB2
	for owner := range records1 {
		if _, ok := records2[owner]; !ok {
			missing1 = append(missing1, owner)
		}
	}

	// Find validators in DB2 but not in DB1
	for owner := range records2 {
		if _, ok := records1[owner]; !ok {
			missing2 = append(missing2, owner)
		}
	}

	// Find validators whose stored records disagree
	for owner, data1 := range records1 {
		if data2, ok := records2[owner]; ok && !bytes.Equal(data1, data2) {
			different = append(different, owner)
		}
	}

	return missing1, missing2, different
}

func encodeByOwner(records []registry.Record) map[registry.OwnerID][]byte {
	encoded := make(map[registry.OwnerID][]byte, len(records))

	for _, rec := range records {
		encoded[rec.Owner] = registry.EncodeRecord(rec)
	}

	return encoded
}
