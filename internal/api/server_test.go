package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"AgentFleet-Chain/internal/journal"
	"AgentFleet-Chain/internal/state"
)

func newTestServer(t *testing.T, token string) (*Server, *journal.MemoryRecorder, *state.FileStore) {
	t.Helper()
	recorder := journal.NewMemoryRecorder()
	store := state.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	return NewServer(":0", recorder, store, token), recorder, store
}

func TestHandleTransfers(t *testing.T) {
	server, recorder, _ := newTestServer(t, "")
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3"} {
		if err := recorder.Record(ctx, &journal.Entry{ID: id, RunID: "run", Round: 1}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers?limit=2", nil)
	resp := httptest.NewRecorder()
	server.handleTransfers(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var entries []*journal.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "e3" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestHandleTransfersEmptyJournal(t *testing.T) {
	server, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers", nil)
	resp := httptest.NewRecorder()
	server.handleTransfers(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if body := resp.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestHandleState(t *testing.T) {
	server, _, store := newTestServer(t, "")

	doc := state.NewRunState()
	doc.SetMint("mint-abc", 6)
	doc.ATAs["agent-001"] = "ata-1"
	if err := store.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	resp := httptest.NewRecorder()
	server.handleState(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var got state.RunState
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mint == nil || got.Mint.Address != "mint-abc" || got.ATAs["agent-001"] != "ata-1" {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestRequireToken(t *testing.T) {
	server, _, _ := newTestServer(t, "secret")
	handler := server.requireToken(server.handleState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	resp := httptest.NewRecorder()
	handler(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp = httptest.NewRecorder()
	handler(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
	resp := httptest.NewRecorder()
	server.handleTransfers(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}
