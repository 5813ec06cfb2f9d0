package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/merklebase/attestd/pkg/client"
	"github.com/merklebase/attestd/pkg/merkle"
)

func TestSubmit_sendsHeadersAndDecodesRecord(t *testing.T) {
	var gotAuth, gotIdemKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/attestations" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotIdemKey = r.Header.Get("Idempotency-Key")

		var req client.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"attestation": map[string]any{
				"id":          "5f0c3f6e-0000-0000-0000-000000000001",
				"business_id": "biz-1",
				"period":      req.Period,
				"merkle_root": "abc",
				"status":      "submitted",
				"tx_hash":     "tx-1",
			},
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithBearerToken("tok-123"))
	rec, err := c.Submit(context.Background(), client.SubmitRequest{
		Period: "2026-01",
		Leaves: []string{"a", "b"},
	}, "key-9")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
	if gotIdemKey != "key-9" {
		t.Errorf("Idempotency-Key header = %q", gotIdemKey)
	}
	if rec.Period != "2026-01" || rec.Status != "submitted" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestList_buildsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("period") != "2026-01" || q.Get("status") != "revoked" || q.Get("page") != "2" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(client.ListResult{Page: 2, Limit: 10, Total: 11, TotalPages: 2})
	}))
	defer srv.Close()

	result, err := client.New(srv.URL).List(context.Background(), client.ListOptions{
		Period: "2026-01",
		Status: "revoked",
		Page:   2,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 11 {
		t.Errorf("total = %d", result.Total)
	}
}

func TestGet_notFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"attestation not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := client.New(srv.URL).Get(context.Background(), "missing"); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestVerify_localMatchesTree(t *testing.T) {
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	tree, err := merkle.New(leaves)
	if err != nil {
		t.Fatalf("merkle.New: %v", err)
	}
	proof, err := tree.Proof(2)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}

	if !client.Verify("c", proof, tree.Root(), 2) {
		t.Error("valid proof rejected")
	}
	if client.Verify("x", proof, tree.Root(), 2) {
		t.Error("wrong leaf accepted")
	}
}
