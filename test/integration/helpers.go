// Package integration runs client-driven flows against live roster
// nodes: real storage, registry and HTTP API wired together the way the
// daemon wires them, listening on loopback ports.
package integration

import (
	"bytes"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"ValRoster/client"
	"ValRoster/internal/api"
	"ValRoster/internal/blskeys"
	"ValRoster/internal/registry"
	"ValRoster/internal/snapshot"
	"ValRoster/internal/storage"
)

// testAdmin is the registry owner of every integration node.
var testAdmin = registry.OwnerID{0xAD}

// TestNode is an in-process roster daemon.
type TestNode struct {
	t       *testing.T
	dataDir string             // dataDir holds the record database
	store   *storage.Store     // store persists applied changes
	reg     *registry.Registry // reg is the node's registry
	api     *api.Server        // api serves the HTTP endpoints
	Client  *client.Client     // Client talks to this node
}

// startNode boots a fresh node in a temporary directory.
func startNode(t *testing.T) *TestNode {
	t.Helper()

	return startNodeAt(t, t.TempDir())
}

// startNodeAt boots a node over a data directory, restoring any state
// persisted there by a previous run.
func startNodeAt(t *testing.T, dataDir string) *TestNode {
	t.Helper()

	store, err := storage.New(filepath.Join(dataDir, "db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}

	reg := registry.New(
		registry.StaticAuthorizer{Owner: testAdmin},
		registry.WithPersister(store),
	)

	state, err := store.LoadState()
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if err := reg.Restore(state); err != nil {
		t.Fatalf("restore state: %v", err)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))

	server := api.New(addr, reg, &nodeSnapshots{reg: reg, store: store})
	if err := server.Start(); err != nil {
		t.Fatalf("start api: %v", err)
	}

	node := &TestNode{
		t:       t,
		dataDir: dataDir,
		store:   store,
		reg:     reg,
		api:     server,
	}
	t.Cleanup(node.Stop)

	node.Client = waitForNode(t, addr)

	return node
}

// Stop shuts the node down, leaving the data directory behind. Safe to
// call twice so tests can stop a node and let cleanup run afterwards.
func (n *TestNode) Stop() {
	if n.api != nil {
		n.api.Stop()
		n.api = nil
	}

	if n.store != nil {
		if err := n.store.Close(); err != nil {
			n.t.Errorf("close storage: %v", err)
		}
		n.store = nil
	}
}

// DataDir returns the node's data directory, for restart tests.
func (n *TestNode) DataDir() string { return n.dataDir }

// addValidator registers a validator through the node's client.
func (n *TestNode) addValidator(owner registry.OwnerID, weight uint32, seed byte) {
	n.t.Helper()

	key, proof := testKeys(n.t, seed)
	if err := n.Client.AddValidator(testAdmin, owner, weight, key, proof); err != nil {
		n.t.Fatalf("add validator %x: %v", owner[:2], err)
	}
}

// commit advances the node's commit counter.
func (n *TestNode) commit() uint64 {
	n.t.Helper()

	counter, err := n.Client.Commit(testAdmin)
	if err != nil {
		n.t.Fatalf("commit: %v", err)
	}

	return counter
}

// committeeWeights returns owner to weight for the current committee.
func (n *TestNode) committeeWeights() map[registry.OwnerID]uint32 {
	n.t.Helper()

	_, members, err := n.Client.Committee()
	if err != nil {
		n.t.Fatalf("fetch committee: %v", err)
	}

	weights := make(map[registry.OwnerID]uint32, len(members))
	for _, m := range members {
		weights[m.Owner] = m.Weight
	}

	return weights
}

// freePort reserves a loopback port and releases it for the node to bind.
func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}

// waitForNode polls the health endpoint until the server accepts
// connections.
func waitForNode(t *testing.T, addr string) *client.Client {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for {
		cli, err := client.NewClient(addr)
		if err == nil {
			return cli
		}

		if time.Now().After(deadline) {
			t.Fatalf("node %s not reachable: %v", addr, err)
			return nil
		}

		time.Sleep(20 * time.Millisecond)
	}
}

// testKeys derives a deterministic key pair for a validator seed.
func testKeys(t *testing.T, seed byte) (registry.PubKey, registry.ProofOfPossession) {
	t.Helper()

	pair, err := blskeys.FromSeed(bytes.Repeat([]byte{seed}, blskeys.SeedSize))
	if err != nil {
		t.Fatalf("derive key pair: %v", err)
	}

	return pair.PublicKey(), pair.Proof()
}

// nodeSnapshots adapts snapshot export and import to the API the same
// way the daemon does.
type nodeSnapshots struct {
	reg   *registry.Registry
	store *storage.Store
}

func (s *nodeSnapshots) ExportSnapshot() ([]byte, error) {
	return snapshot.Export(s.reg.State())
}

func (s *nodeSnapshots) ImportSnapshot(data []byte) error {
	state, err := snapshot.Import(data)
	if err != nil {
		return err
	}

	if err := s.reg.Restore(state); err != nil {
		return err
	}

	return s.store.SaveAll(state)
}
