package client

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"ValRoster/internal/registry"
)

// AddValidator registers a new validator record on behalf of caller.
func (c *Client) AddValidator(caller, owner registry.OwnerID, weight uint32, key registry.PubKey, proof registry.ProofOfPossession) error {
	body := map[string]any{
		"owner":  hex.EncodeToString(owner[:]),
		"weight": weight,
		"pubKey": hex.EncodeToString(key[:]),
		"pop":    hex.EncodeToString(proof[:]),
	}

	if err := httpSend("POST", c.url("/validators"), caller, body, nil); err != nil {
		return fmt.Errorf("add validator:\n%w", err)
	}

	return nil
}

// Activate marks a validator committee-eligible.
func (c *Client) Activate(caller, owner registry.OwnerID) error {
	url := c.url("/validators/" + hex.EncodeToString(owner[:]) + "/activate")

	if err := httpSend("POST", url, caller, nil, nil); err != nil {
		return fmt.Errorf("activate validator:\n%w", err)
	}

	return nil
}

// Deactivate clears a validator's committee eligibility.
func (c *Client) Deactivate(caller, owner registry.OwnerID) error {
	url := c.url("/validators/" + hex.EncodeToString(owner[:]) + "/deactivate")

	if err := httpSend("POST", url, caller, nil, nil); err != nil {
		return fmt.Errorf("deactivate validator:\n%w", err)
	}

	return nil
}

// Remove flags a validator record for deletion.
func (c *Client) Remove(caller, owner registry.OwnerID) error {
	url := c.url("/validators/" + hex.EncodeToString(owner[:]))

	if err := httpSend("DELETE", url, caller, nil, nil); err != nil {
		return fmt.Errorf("remove validator:\n%w", err)
	}

	return nil
}

// ChangeWeight updates a validator's voting weight.
func (c *Client) ChangeWeight(caller, owner registry.OwnerID, weight uint32) error {
	url := c.url("/validators/" + hex.EncodeToString(owner[:]) + "/weight")
	body := map[string]any{"weight": weight}

	if err := httpSend("POST", url, caller, body, nil); err != nil {
		return fmt.Errorf("change weight:\n%w", err)
	}

	return nil
}

// ChangeKey rotates a validator's BLS key.
func (c *Client) ChangeKey(caller, owner registry.OwnerID, key registry.PubKey, proof registry.ProofOfPossession) error {
	url := c.url("/validators/" + hex.EncodeToString(owner[:]) + "/key")
	body := map[string]any{
		"pubKey": hex.EncodeToString(key[:]),
		"pop":    hex.EncodeToString(proof[:]),
	}

	if err := httpSend("POST", url, caller, body, nil); err != nil {
		return fmt.Errorf("change key:\n%w", err)
	}

	return nil
}

// Commit advances the commit counter and returns its new value.
func (c *Client) Commit(caller registry.OwnerID) (uint64, error) {
	var resp struct {
		Counter uint64 `json:"counter"`
	}

	if err := httpSend("POST", c.url("/commit"), caller, nil, &resp); err != nil {
		return 0, fmt.Errorf("commit:\n%w", err)
	}

	return resp.Counter, nil
}

// ImportSnapshot uploads a snapshot, replacing the daemon's full state.
func (c *Client) ImportSnapshot(data []byte) error {
	resp, err := http.Post(c.url("/snapshot"), "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("post snapshot:\n%w", err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post snapshot: %s", responseError(resp))
	}

	return nil
}
