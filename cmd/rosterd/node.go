package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ValRoster/internal/api"
	"ValRoster/internal/genesis"
	"ValRoster/internal/logger"
	"ValRoster/internal/registry"
	"ValRoster/internal/snapshot"
	"ValRoster/internal/storage"
)

// Node bundles the daemon components: persistent storage, the validator
// registry and the HTTP API.
type Node struct {
	cfg   *Config            // Daemon configuration
	store *storage.Store     // Persistent record database
	reg   *registry.Registry // Validator registry
	owner registry.OwnerID   // Registry owner allowed to mutate
	api   *api.Server        // HTTP API server
}

// NewNode creates a node and initializes all components.
func NewNode(cfg *Config) (*Node, error) {
	node := &Node{cfg: cfg}

	if err := node.initStorage(); err != nil {
		return nil, fmt.Errorf("init storage:\n%w", err)
	}

	if err := node.initRegistry(); err != nil {
		node.Close()
		return nil, fmt.Errorf("init registry:\n%w", err)
	}

	return node, nil
}

// initStorage opens the record database under the data directory. An
// empty data path skips storage entirely: the registry runs in-memory
// and is re-seeded on every start.
func (n *Node) initStorage() error {
	if n.cfg.DataPath == "" {
		logger.Warn("no data directory configured, state will not survive a restart")
		return nil
	}

	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	store, err := storage.New(filepath.Join(n.cfg.DataPath, "db"))
	if err != nil {
		return err
	}

	n.store = store
	return nil
}

// initRegistry restores the registry from storage, or seeds a fresh one
// from the genesis document or the -owner flag.
func (n *Node) initRegistry() error {
	if n.store == nil {
		return n.bootstrap()
	}

	owner, ok, err := n.store.LoadOwner()
	if err != nil {
		return err
	}

	if !ok {
		return n.bootstrap()
	}

	if n.cfg.GenesisPath != "" {
		logger.Warn("ignoring genesis document, registry already initialized",
			"path", n.cfg.GenesisPath)
	}
	if n.cfg.OwnerHex != "" {
		logger.Warn("ignoring -owner flag, registry already initialized")
	}

	n.owner = owner
	n.reg = n.newRegistry()

	state, err := n.store.LoadState()
	if err != nil {
		return err
	}

	if err := n.reg.Restore(state); err != nil {
		return fmt.Errorf("restore registry state:\n%w", err)
	}

	logger.Info("restored registry from storage",
		"counter", n.reg.Counter(), "records", n.reg.Count())
	return nil
}

// bootstrap seeds an empty registry: from the genesis document when one
// is given, otherwise as a bare roster owned by the -owner identity.
func (n *Node) bootstrap() error {
	if n.cfg.GenesisPath != "" {
		return n.bootstrapFromGenesis()
	}

	return n.bootstrapBare()
}

// bootstrapFromGenesis seeds the registry from the genesis document.
func (n *Node) bootstrapFromGenesis() error {
	cfg, err := genesis.Load(n.cfg.GenesisPath)
	if err != nil {
		return err
	}

	if err := n.setOwner(cfg.RegistryOwner); err != nil {
		return err
	}
	n.reg = n.newRegistry()

	if err := genesis.Apply(cfg, n.reg); err != nil {
		return fmt.Errorf("apply genesis document:\n%w", err)
	}

	logger.Info("seeded registry from genesis document",
		"path", n.cfg.GenesisPath, "validators", len(cfg.Validators))
	return nil
}

// bootstrapBare starts an empty roster owned by the -owner identity;
// validators are registered later through the API.
func (n *Node) bootstrapBare() error {
	if n.cfg.OwnerHex == "" {
		return fmt.Errorf("registry is empty: provide -genesis or -owner")
	}

	owner, err := parseOwnerHex(n.cfg.OwnerHex)
	if err != nil {
		return fmt.Errorf("parse -owner:\n%w", err)
	}

	if err := n.setOwner(owner); err != nil {
		return err
	}
	n.reg = n.newRegistry()

	logger.Info("started bare registry", "owner", n.cfg.OwnerHex)
	return nil
}

// setOwner records the registry owner, persisting it when storage is on.
func (n *Node) setOwner(owner registry.OwnerID) error {
	if n.store != nil {
		if err := n.store.SaveOwner(owner); err != nil {
			return err
		}
	}

	n.owner = owner
	return nil
}

// parseOwnerHex decodes a hex-encoded owner id.
func parseOwnerHex(value string) (registry.OwnerID, error) {
	var owner registry.OwnerID

	raw, err := hex.DecodeString(value)
	if err != nil {
		return owner, fmt.Errorf("invalid hex:\n%w", err)
	}
	if len(raw) != len(owner) {
		return owner, fmt.Errorf("got %d bytes, want %d", len(raw), len(owner))
	}

	copy(owner[:], raw)
	if owner == (registry.OwnerID{}) {
		return owner, fmt.Errorf("owner id is zero")
	}

	return owner, nil
}

// newRegistry creates the registry wired to storage and event logging.
func (n *Node) newRegistry() *registry.Registry {
	opts := []registry.Option{registry.WithEventHandler(logEvent)}
	if n.store != nil {
		opts = append(opts, registry.WithPersister(n.store))
	}

	return registry.New(registry.StaticAuthorizer{Owner: n.owner}, opts...)
}

// Run starts the HTTP API and blocks until a shutdown signal arrives.
func (n *Node) Run() error {
	n.api = api.New(n.cfg.ListenAddress, n.reg, &rosterSnapshots{reg: n.reg, store: n.store})

	if err := n.api.Start(); err != nil {
		n.Close()
		return fmt.Errorf("start api:\n%w", err)
	}

	n.waitForShutdown()
	n.Close()
	return nil
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func (n *Node) waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
}

// Close stops the API and closes storage.
func (n *Node) Close() {
	if n.api != nil {
		if err := n.api.Stop(); err != nil {
			logger.Error("stop api", "error", err)
		}
	}

	if n.store != nil {
		if err := n.store.Close(); err != nil {
			logger.Error("close storage", "error", err)
		}
	}
}

// logEvent writes registry events to the log.
func logEvent(event registry.Event) {
	if event.Kind == registry.EventCommitted {
		logger.Info("registry event", "kind", event.Kind.String(), "counter", event.Counter)
		return
	}

	logger.Info("registry event",
		"kind", event.Kind.String(), "owner", hex.EncodeToString(event.Owner[:]))
}

// rosterSnapshots adapts the snapshot codec and storage to the API's
// snapshot endpoints.
type rosterSnapshots struct {
	reg   *registry.Registry // Source and target of snapshot state
	store *storage.Store     // Rewritten wholesale after an import
}

// ExportSnapshot serializes the current registry state.
func (s *rosterSnapshots) ExportSnapshot() ([]byte, error) {
	return snapshot.Export(s.reg.State())
}

// ImportSnapshot replaces the registry state with the snapshot contents
// and rewrites storage to match.
func (s *rosterSnapshots) ImportSnapshot(data []byte) error {
	state, err := snapshot.Import(data)
	if err != nil {
		return err
	}

	if err := s.reg.Restore(state); err != nil {
		return err
	}

	if s.store == nil {
		return nil
	}

	return s.store.SaveAll(state)
}
