package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/atelierhq/atelier/internal/contract/service"
	"github.com/atelierhq/atelier/internal/storage/sqlite"
)

const testSecret = "handler-test-secret"

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "atelier.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	counter := 0
	svc := service.New(db,
		service.WithClock(func() time.Time { return testNow }),
		service.WithIDGenerator(func() (string, error) {
			counter++
			return fmt.Sprintf("id-%d", counter), nil
		}),
	)
	verifier, err := NewTokenVerifier(testSecret)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	server := httptest.NewServer(NewRouter(NewHandler(svc), verifier))
	t.Cleanup(server.Close)
	return server
}

func tokenFor(t *testing.T, userID string, admin bool) string {
	t.Helper()
	token, err := SignToken(testSecret, service.Actor{UserID: userID, Admin: admin}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, server.URL+path, &payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func contractRequestBody(basePrice int64) map[string]any {
	return map[string]any{
		"client_id": "client-1",
		"artist_id": "artist-1",
		"snapshot": map[string]any{
			"flow":       "STANDARD",
			"base_price": basePrice,
			"revision_policy": map[string]any{
				"kind":      "LIMITED",
				"included":  1,
				"extra_fee": 50_000,
			},
			"cancellation_fee":     map[string]any{"percent": 10},
			"late_penalty_percent": 10,
			"description":          "full body illustration",
		},
		"deadline_at": testNow.Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}
}

func TestHealthzNeedsNoToken(t *testing.T) {
	server := newTestServer(t)
	resp, body := doJSON(t, server, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("got %d %v, want 200 ok", resp.StatusCode, body)
	}
}

func TestV1RequiresBearerToken(t *testing.T) {
	server := newTestServer(t)
	resp, body := doJSON(t, server, http.MethodGet, "/v1/wallet", "", nil)
	if resp.StatusCode != http.StatusUnauthorized || body["code"] != "UNAUTHORIZED" {
		t.Fatalf("got %d %v, want 401", resp.StatusCode, body)
	}

	bogus := tokenFor(t, "client-1", false) + "tampered"
	resp, _ = doJSON(t, server, http.MethodGet, "/v1/wallet", bogus, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got %d, want tampered token rejected", resp.StatusCode)
	}
}

func TestContractLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)
	client := tokenFor(t, "client-1", false)
	artist := tokenFor(t, "artist-1", false)

	resp, wallet := doJSON(t, server, http.MethodPost, "/v1/wallet/deposits", client, map[string]any{"amount": 500_000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit: got %d %v", resp.StatusCode, wallet)
	}
	if wallet["available"] != float64(500_000) {
		t.Fatalf("got available %v, want 500000", wallet["available"])
	}

	resp, created := doJSON(t, server, http.MethodPost, "/v1/contracts", client, contractRequestBody(100_000))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create contract: got %d %v", resp.StatusCode, created)
	}
	contractID, _ := created["id"].(string)
	if contractID == "" || created["status"] != "ACTIVE" {
		t.Fatalf("got %v, want an active contract", created)
	}

	resp, snapshot := doJSON(t, server, http.MethodGet, "/v1/contracts/"+contractID+"/snapshot", client, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot: got %d %v", resp.StatusCode, snapshot)
	}
	if snapshot["role"] != "CLIENT" || snapshot["escrow_balance"] != float64(100_000) {
		t.Fatalf("got %v, want client role with 100000 in escrow", snapshot)
	}

	resp, upload := doJSON(t, server, http.MethodPost, "/v1/contracts/"+contractID+"/uploads", artist, map[string]any{
		"kind":          "FINAL",
		"images":        []string{"blob-final"},
		"work_progress": 100,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create upload: got %d %v", resp.StatusCode, upload)
	}
	uploadID, _ := upload["id"].(string)

	resp, reviewed := doJSON(t, server, http.MethodPost, "/v1/uploads/"+uploadID+"/review", client, map[string]any{"accept": true})
	if resp.StatusCode != http.StatusOK || reviewed["status"] != "ACCEPTED" {
		t.Fatalf("review: got %d %v, want accepted", resp.StatusCode, reviewed)
	}

	resp, final := doJSON(t, server, http.MethodGet, "/v1/contracts/"+contractID, client, nil)
	if resp.StatusCode != http.StatusOK || final["status"] != "COMPLETED" {
		t.Fatalf("got %d %v, want a completed contract", resp.StatusCode, final)
	}

	resp, artistWallet := doJSON(t, server, http.MethodGet, "/v1/wallet", artist, nil)
	if resp.StatusCode != http.StatusOK || artistWallet["available"] != float64(100_000) {
		t.Fatalf("got %d %v, want the artist paid out", resp.StatusCode, artistWallet)
	}
}

func TestDomainErrorsMapToStatusAndCode(t *testing.T) {
	server := newTestServer(t)
	client := tokenFor(t, "client-1", false)
	stranger := tokenFor(t, "stranger-1", false)

	doJSON(t, server, http.MethodPost, "/v1/wallet/deposits", client, map[string]any{"amount": 10_000})
	resp, body := doJSON(t, server, http.MethodPost, "/v1/contracts", client, contractRequestBody(100_000))
	if resp.StatusCode != http.StatusPaymentRequired || body["code"] != "WALLET_INSUFFICIENT_FUNDS" {
		t.Fatalf("got %d %v, want 402 insufficient funds", resp.StatusCode, body)
	}

	doJSON(t, server, http.MethodPost, "/v1/wallet/deposits", client, map[string]any{"amount": 490_000})
	resp, created := doJSON(t, server, http.MethodPost, "/v1/contracts", client, contractRequestBody(100_000))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create contract: got %d %v", resp.StatusCode, created)
	}
	contractID, _ := created["id"].(string)

	resp, body = doJSON(t, server, http.MethodGet, "/v1/contracts/"+contractID, stranger, nil)
	if resp.StatusCode != http.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Fatalf("got %d %v, want 403 for a stranger", resp.StatusCode, body)
	}

	resp, body = doJSON(t, server, http.MethodGet, "/v1/contracts/missing", client, nil)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("got %d %v, want 404", resp.StatusCode, body)
	}

	resp, body = doJSON(t, server, http.MethodPost, "/v1/contracts/"+contractID+"/uploads", client, map[string]any{
		"kind":   "SOMETHING_ELSE",
		"images": []string{"blob-1"},
	})
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "INVALID_REQUEST" {
		t.Fatalf("got %d %v, want 400 for an unknown enum", resp.StatusCode, body)
	}
}
