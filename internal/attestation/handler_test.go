package attestation_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/merklebase/attestd/internal/attestation"
	"github.com/merklebase/attestd/internal/auditlog"
	"github.com/merklebase/attestd/internal/identity"
	"github.com/merklebase/attestd/internal/idempotency"
	"github.com/merklebase/attestd/pkg/merkle"
)

func newTestRouter(t *testing.T) (*gin.Engine, *identity.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := attestation.NewMemoryStore()
	guard := idempotency.NewMemoryGuard(time.Hour)
	svc := attestation.NewService(store, &stubAnchor{txID: "tx-1"}, guard, auditlog.New(), zap.NewNop())

	tokens := identity.NewTokenIssuer([]byte("test-secret"), "attestd-test", time.Hour)
	h := attestation.NewHandler(svc, tokens, zap.NewNop())

	r := gin.New()
	h.Register(r.Group("/api/v1"))
	return r, tokens
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_submitRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/attestations", "", gin.H{
		"period": "2026-01",
		"leaves": []string{"a"},
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandler_submitAndGet(t *testing.T) {
	r, tokens := newTestRouter(t)
	token, err := tokens.Issue("biz-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/attestations", token, gin.H{
		"period": "2026-01",
		"leaves": []string{"a", "b", "c"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Attestation attestation.Record `json:"attestation"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if resp.Attestation.Status != attestation.StatusSubmitted {
		t.Errorf("status = %q", resp.Attestation.Status)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/attestations/"+resp.Attestation.ID.String(), token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}

	// Another tenant must not see the record.
	otherToken, _ := tokens.Issue("biz-2")
	w = doJSON(t, r, http.MethodGet, "/api/v1/attestations/"+resp.Attestation.ID.String(), otherToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-tenant get status = %d, want 404", w.Code)
	}
}

func TestHandler_submitErrorMapping(t *testing.T) {
	r, tokens := newTestRouter(t)
	token, _ := tokens.Issue("biz-1")

	// Validation failure: neither root nor leaves.
	w := doJSON(t, r, http.MethodPost, "/api/v1/attestations", token, gin.H{
		"period": "2026-01",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("validation status = %d, want 400", w.Code)
	}

	// Identity mismatch.
	w = doJSON(t, r, http.MethodPost, "/api/v1/attestations", token, gin.H{
		"business_id": "biz-2",
		"period":      "2026-01",
		"leaves":      []string{"a"},
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("mismatch status = %d, want 403", w.Code)
	}
}

func TestHandler_idempotencyKeyReplays(t *testing.T) {
	r, tokens := newTestRouter(t)
	token, _ := tokens.Issue("biz-1")

	body := gin.H{"period": "2026-01", "leaves": []string{"a", "b"}}

	var ids []string
	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attestations", &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "retry-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("attempt %d status = %d", i, w.Code)
		}
		var resp struct {
			Attestation attestation.Record `json:"attestation"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		ids = append(ids, resp.Attestation.ID.String())
	}
	if ids[0] != ids[1] {
		t.Errorf("retried submit created a new record: %s vs %s", ids[0], ids[1])
	}
}

func TestHandler_verifyIsPublic(t *testing.T) {
	r, _ := newTestRouter(t)

	leaves := [][]byte{[]byte("x"), []byte("y"), []byte("z")}
	tree, err := merkle.New(leaves)
	if err != nil {
		t.Fatalf("merkle.New: %v", err)
	}
	proof, err := tree.Proof(1)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/verify", "", gin.H{
		"leaf":  "y",
		"proof": proof,
		"root":  tree.Root(),
		"index": 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid {
		t.Error("valid proof rejected")
	}

	// Wrong index must be invalid, not an error.
	w = doJSON(t, r, http.MethodPost, "/api/v1/verify", "", gin.H{
		"leaf":  "y",
		"proof": proof,
		"root":  tree.Root(),
		"index": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Valid {
		t.Error("proof accepted under the wrong index")
	}
}

func TestHandler_listPagination(t *testing.T) {
	r, tokens := newTestRouter(t)
	token, _ := tokens.Issue("biz-1")

	for i := 0; i < 7; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/v1/attestations", token, gin.H{
			"period": fmt.Sprintf("2026-%02d", i+1),
			"leaves": []string{"a"},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("submit %d status = %d", i, w.Code)
		}
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/attestations?page=2&limit=3", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var result attestation.ListResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Total != 7 || result.TotalPages != 3 {
		t.Errorf("totals = %d/%d, want 7/3", result.Total, result.TotalPages)
	}
	if len(result.Items) != 3 {
		t.Errorf("page 2 has %d items, want 3", len(result.Items))
	}
}
