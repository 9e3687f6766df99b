package client

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ValRoster/internal/registry"
)

// newTestClient starts a stub server and connects a client to it. The
// stub always serves GET /health so NewClient's reachability check
// passes; everything else goes to handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	if handler != nil {
		mux.HandleFunc("/", handler)
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	return c
}

// capturedRequest records what the client sent.
type capturedRequest struct {
	method string // method is the HTTP method
	path   string // path is the request path
	caller string // caller is the caller header value
	body   []byte // body is the raw request body
}

// capture returns a handler that records the request and replies with
// the given JSON.
func capture(dst *capturedRequest, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dst.method = r.Method
		dst.path = r.URL.Path
		dst.caller = r.Header.Get(callerHeader)
		dst.body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, reply)
	}
}

func TestNewClient_UnreachableNode(t *testing.T) {
	if _, err := NewClient("127.0.0.1:1"); err == nil {
		t.Fatal("expected error for unreachable node")
	}
}

func TestStatus(t *testing.T) {
	var captured capturedRequest
	c := newTestClient(t, capture(&captured, `{"counter":5,"records":3,"committeeSize":2}`))

	status, err := c.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	if captured.path != "/status" {
		t.Errorf("expected path /status, got %s", captured.path)
	}

	if status.Counter != 5 || status.Records != 3 || status.CommitteeSize != 2 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestCommittee(t *testing.T) {
	owner := registry.OwnerID{0x10, 0x01}

	reply := fmt.Sprintf(
		`{"counter":4,"members":[{"owner":"%s","weight":15,"pubKey":"%s","pop":"%s"}]}`,
		hex.EncodeToString(owner[:]),
		strings.Repeat("ab", registry.PubKeySize),
		strings.Repeat("cd", registry.ProofSize),
	)

	c := newTestClient(t, capture(&capturedRequest{}, reply))

	counter, members, err := c.Committee()
	if err != nil {
		t.Fatalf("committee: %v", err)
	}

	if counter != 4 {
		t.Errorf("expected counter 4, got %d", counter)
	}

	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}

	if members[0].Owner != owner {
		t.Errorf("expected owner %x, got %x", owner[:2], members[0].Owner[:2])
	}
	if members[0].Weight != 15 {
		t.Errorf("expected weight 15, got %d", members[0].Weight)
	}
	if members[0].PubKey[0] != 0xAB || members[0].Proof[0] != 0xCD {
		t.Error("expected decoded key and proof bytes")
	}
}

func TestGetValidator(t *testing.T) {
	owner := registry.OwnerID{0x10, 0x01}
	attrs := fmt.Sprintf(
		`{"active":true,"removed":false,"weight":10,"pubKey":"%s","pop":"%s"}`,
		strings.Repeat("ab", registry.PubKeySize),
		strings.Repeat("cd", registry.ProofSize),
	)
	reply := fmt.Sprintf(
		`{"owner":"%s","ownerIndex":2,"activeFrom":7,"latest":%s,"snapshot":%s,"readable":%s}`,
		hex.EncodeToString(owner[:]), attrs, attrs, attrs,
	)

	var captured capturedRequest
	c := newTestClient(t, capture(&captured, reply))

	v, err := c.GetValidator(owner)
	if err != nil {
		t.Fatalf("get validator: %v", err)
	}

	wantPath := "/validators/" + hex.EncodeToString(owner[:])
	if captured.path != wantPath {
		t.Errorf("expected path %s, got %s", wantPath, captured.path)
	}

	if v.Owner != owner {
		t.Errorf("expected owner %x, got %x", owner[:2], v.Owner[:2])
	}
	if v.OwnerIndex != 2 || v.ActiveFrom != 7 {
		t.Errorf("unexpected record metadata: %+v", v)
	}
	if !v.Latest.Active || v.Latest.Weight != 10 {
		t.Errorf("unexpected latest attributes: %+v", v.Latest)
	}
}

func TestAddValidator_RequestShape(t *testing.T) {
	caller := registry.OwnerID{0xAD}
	owner := registry.OwnerID{0x10, 0x01}
	var key registry.PubKey
	var proof registry.ProofOfPossession
	key[0] = 0x01
	proof[0] = 0x02

	var captured capturedRequest
	c := newTestClient(t, capture(&captured, `{"status":"ok"}`))

	if err := c.AddValidator(caller, owner, 10, key, proof); err != nil {
		t.Fatalf("add validator: %v", err)
	}

	if captured.method != "POST" || captured.path != "/validators" {
		t.Errorf("expected POST /validators, got %s %s", captured.method, captured.path)
	}

	if captured.caller != hex.EncodeToString(caller[:]) {
		t.Errorf("expected caller header %s, got %s", hex.EncodeToString(caller[:]), captured.caller)
	}

	var body map[string]any
	if err := json.Unmarshal(captured.body, &body); err != nil {
		t.Fatalf("parse captured body: %v", err)
	}

	if body["owner"] != hex.EncodeToString(owner[:]) {
		t.Errorf("expected owner field, got %v", body["owner"])
	}
	if body["weight"].(float64) != 10 {
		t.Errorf("expected weight 10, got %v", body["weight"])
	}
	if body["pubKey"] != hex.EncodeToString(key[:]) {
		t.Error("expected hex pubKey field")
	}
	if body["pop"] != hex.EncodeToString(proof[:]) {
		t.Error("expected hex pop field")
	}
}

func TestChangeWeight_RequestShape(t *testing.T) {
	caller := registry.OwnerID{0xAD}
	owner := registry.OwnerID{0x10, 0x01}

	var captured capturedRequest
	c := newTestClient(t, capture(&captured, `{"status":"ok"}`))

	if err := c.ChangeWeight(caller, owner, 42); err != nil {
		t.Fatalf("change weight: %v", err)
	}

	wantPath := "/validators/" + hex.EncodeToString(owner[:]) + "/weight"
	if captured.method != "POST" || captured.path != wantPath {
		t.Errorf("expected POST %s, got %s %s", wantPath, captured.method, captured.path)
	}

	if !bytes.Contains(captured.body, []byte(`"weight":42`)) {
		t.Errorf("expected weight in body, got %s", captured.body)
	}
}

func TestRemove_RequestShape(t *testing.T) {
	caller := registry.OwnerID{0xAD}
	owner := registry.OwnerID{0x10, 0x01}

	var captured capturedRequest
	c := newTestClient(t, capture(&captured, `{"status":"ok"}`))

	if err := c.Remove(caller, owner); err != nil {
		t.Fatalf("remove: %v", err)
	}

	wantPath := "/validators/" + hex.EncodeToString(owner[:])
	if captured.method != "DELETE" || captured.path != wantPath {
		t.Errorf("expected DELETE %s, got %s %s", wantPath, captured.method, captured.path)
	}
}

func TestCommit_ReturnsCounter(t *testing.T) {
	caller := registry.OwnerID{0xAD}

	var captured capturedRequest
	c := newTestClient(t, capture(&captured, `{"counter":9}`))

	counter, err := c.Commit(caller)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if captured.method != "POST" || captured.path != "/commit" {
		t.Errorf("expected POST /commit, got %s %s", captured.method, captured.path)
	}

	if counter != 9 {
		t.Errorf("expected counter 9, got %d", counter)
	}
}

func TestServerErrorSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"caller is not the registry owner"}`)
	})

	err := c.ChangeWeight(registry.OwnerID{0x01}, registry.OwnerID{0x02}, 5)
	if err == nil {
		t.Fatal("expected error from 403 response")
	}

	if !strings.Contains(err.Error(), "caller is not the registry owner") {
		t.Errorf("expected server message in error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status code in error, got: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	payload := []byte("compressed-snapshot")

	var captured capturedRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(payload)
			return
		}

		captured.method = r.Method
		captured.path = r.URL.Path
		captured.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	data, err := c.ExportSnapshot()
	if err != nil {
		t.Fatalf("export snapshot: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("expected snapshot payload, got %q", data)
	}

	if err := c.ImportSnapshot(payload); err != nil {
		t.Fatalf("import snapshot: %v", err)
	}
	if captured.method != "POST" || captured.path != "/snapshot" {
		t.Errorf("expected POST /snapshot, got %s %s", captured.method, captured.path)
	}
	if !bytes.Equal(captured.body, payload) {
		t.Error("expected uploaded snapshot body to match")
	}
}
