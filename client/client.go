// Package client is a typed HTTP client for the roster daemon.
package client

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"ValRoster/internal/registry"
)

// Client connects to a roster daemon via HTTP.
type Client struct {
	nodeAddr string // nodeAddr is the HTTP address (e.g. "127.0.0.1:8080")
}

// Status summarizes the registry state.
type Status struct {
	Counter       uint64 `json:"counter"`       // Counter is the commit counter
	Records       int    `json:"records"`       // Records is the physical record count
	CommitteeSize int    `json:"committeeSize"` // CommitteeSize is the readable committee size
}

// Attributes is one decoded attribute set of a record.
type Attributes struct {
	Active  bool                       // Active marks the validator committee-eligible
	Removed bool                       // Removed marks the record for deletion
	Weight  uint32                     // Weight is the voting weight
	PubKey  registry.PubKey            // PubKey is the BLS public key
	Proof   registry.ProofOfPossession // Proof is the proof of possession
}

// Validator is one decoded registry record.
type Validator struct {
	Owner      registry.OwnerID // Owner is the record key
	OwnerIndex uint32           // OwnerIndex is the position in the owner list
	ActiveFrom uint64           // ActiveFrom is the first epoch at which Latest is readable
	Latest     Attributes       // Latest is the most recently written attribute set
	Snapshot   Attributes       // Snapshot is the previous attribute set
	Readable   Attributes       // Readable is the set visible at the current counter
}

// CommitteeMember is one decoded committee entry.
type CommitteeMember struct {
	Owner  registry.OwnerID           // Owner identifies the validator record
	Weight uint32                     // Weight is the voting weight
	PubKey registry.PubKey            // PubKey is the BLS public key
	Proof  registry.ProofOfPossession // Proof is the proof of possession
}

// NewClient creates a client and verifies the daemon is reachable.
func NewClient(nodeAddr string) (*Client, error) {
	c := &Client{nodeAddr: nodeAddr}

	if err := c.Health(); err != nil {
		return nil, fmt.Errorf("ping node:\n%w", err)
	}

	return c, nil
}

// Health checks daemon liveness via GET /health.
func (c *Client) Health() error {
	var resp struct {
		Status string `json:"status"`
	}

	if err := httpGet(c.url("/health"), &resp); err != nil {
		return err
	}

	if resp.Status != "ok" {
		return fmt.Errorf("unexpected health status: %q", resp.Status)
	}

	return nil
}

// Status fetches the registry summary via GET /status.
func (c *Client) Status() (Status, error) {
	var status Status
	if err := httpGet(c.url("/status"), &status); err != nil {
		return Status{}, fmt.Errorf("get status:\n%w", err)
	}

	return status, nil
}

// Committee fetches the readable committee via GET /committee. The
// returned counter is the commit counter the projection was read at.
func (c *Client) Committee() (uint64, []CommitteeMember, error) {
	var resp struct {
		Counter uint64 `json:"counter"`
		Members []struct {
			Owner  string `json:"owner"`
			Weight uint32 `json:"weight"`
			PubKey string `json:"pubKey"`
			Proof  string `json:"pop"`
		} `json:"members"`
	}

	if err := httpGet(c.url("/committee"), &resp); err != nil {
		return 0, nil, fmt.Errorf("get committee:\n%w", err)
	}

	members := make([]CommitteeMember, len(resp.Members))
	for i, m := range resp.Members {
		var member CommitteeMember
		if err := decodeFixedHex(member.Owner[:], m.Owner, "owner"); err != nil {
			return 0, nil, fmt.Errorf("decode committee member %d:\n%w", i, err)
		}
		if err := decodeFixedHex(member.PubKey[:], m.PubKey, "pubKey"); err != nil {
			return 0, nil, fmt.Errorf("decode committee member %d:\n%w", i, err)
		}
		if err := decodeFixedHex(member.Proof[:], m.Proof, "pop"); err != nil {
			return 0, nil, fmt.Errorf("decode committee member %d:\n%w", i, err)
		}
		member.Weight = m.Weight
		members[i] = member
	}

	return resp.Counter, members, nil
}

// Validators fetches every physically present record via GET /validators.
func (c *Client) Validators() ([]Validator, error) {
	var resp struct {
		Validators []wireRecord `json:"validators"`
	}

	if err := httpGet(c.url("/validators"), &resp); err != nil {
		return nil, fmt.Errorf("get validators:\n%w", err)
	}

	validators := make([]Validator, len(resp.Validators))
	for i, wire := range resp.Validators {
		v, err := wire.decode()
		if err != nil {
			return nil, fmt.Errorf("decode validator %d:\n%w", i, err)
		}
		validators[i] = v
	}

	return validators, nil
}

// GetValidator fetches one record via GET /validators/{owner}.
func (c *Client) GetValidator(owner registry.OwnerID) (Validator, error) {
	var wire wireRecord
	if err := httpGet(c.url("/validators/"+hex.EncodeToString(owner[:])), &wire); err != nil {
		return Validator{}, fmt.Errorf("get validator:\n%w", err)
	}

	v, err := wire.decode()
	if err != nil {
		return Validator{}, fmt.Errorf("decode validator:\n%w", err)
	}

	return v, nil
}

// ExportSnapshot downloads a compressed snapshot of the full state.
func (c *Client) ExportSnapshot() ([]byte, error) {
	resp, err := http.Get(c.url("/snapshot"))
	if err != nil {
		return nil, fmt.Errorf("get snapshot:\n%w", err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get snapshot: %s", responseError(resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot body:\n%w", err)
	}

	return data, nil
}

// url builds a full endpoint URL.
func (c *Client) url(path string) string {
	return "http://" + c.nodeAddr + path
}

// wireRecord mirrors one record on the wire.
type wireRecord struct {
	Owner      string    `json:"owner"`
	OwnerIndex uint32    `json:"ownerIndex"`
	ActiveFrom uint64    `json:"activeFrom"`
	Latest     wireAttrs `json:"latest"`
	Snapshot   wireAttrs `json:"snapshot"`
	Readable   wireAttrs `json:"readable"`
}

// wireAttrs mirrors one attribute set on the wire.
type wireAttrs struct {
	Active  bool   `json:"active"`
	Removed bool   `json:"removed"`
	Weight  uint32 `json:"weight"`
	PubKey  string `json:"pubKey"`
	Proof   string `json:"pop"`
}

// decode translates a wire record into its typed form.
func (wire wireRecord) decode() (Validator, error) {
	v := Validator{
		OwnerIndex: wire.OwnerIndex,
		ActiveFrom: wire.ActiveFrom,
	}

	if err := decodeFixedHex(v.Owner[:], wire.Owner, "owner"); err != nil {
		return Validator{}, err
	}

	for _, pair := range []struct {
		dst  *Attributes
		wire wireAttrs
	}{
		{&v.Latest, wire.Latest},
		{&v.Snapshot, wire.Snapshot},
		{&v.Readable, wire.Readable},
	} {
		attrs, err := pair.wire.decode()
		if err != nil {
			return Validator{}, err
		}
		*pair.dst = attrs
	}

	return v, nil
}

// decode translates a wire attribute set into its typed form.
func (wire wireAttrs) decode() (Attributes, error) {
	attrs := Attributes{
		Active:  wire.Active,
		Removed: wire.Removed,
		Weight:  wire.Weight,
	}

	if err := decodeFixedHex(attrs.PubKey[:], wire.PubKey, "pubKey"); err != nil {
		return Attributes{}, err
	}

	if err := decodeFixedHex(attrs.Proof[:], wire.Proof, "pop"); err != nil {
		return Attributes{}, err
	}

	return attrs, nil
}

// decodeFixedHex decodes a hex string into a fixed-size destination.
func decodeFixedHex(dst []byte, value, field string) error {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return fmt.Errorf("invalid hex in %s:\n%w", field, err)
	}

	if len(raw) != len(dst) {
		return fmt.Errorf("invalid %s size: got %d bytes, want %d", field, len(raw), len(dst))
	}

	copy(dst, raw)

	return nil
}
