package attestation_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/merklebase/attestd/internal/attestation"
)

func limitedRouter(rl *attestation.ClientLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(rl.Middleware())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/ping", ok)
	router.POST("/submit", ok)
	return router
}

func hit(t *testing.T, router *gin.Engine, method, path, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":51000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestClientLimiter_burstThenThrottled(t *testing.T) {
	rl := attestation.NewClientLimiter(1, 4)
	defer rl.Stop()
	router := limitedRouter(rl)

	for i := 0; i < 4; i++ {
		if w := hit(t, router, http.MethodGet, "/ping", "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}

	w := hit(t, router, http.MethodGet, "/ping", "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status after burst = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response has no Retry-After header")
	}
}

func TestClientLimiter_writesCostMoreThanReads(t *testing.T) {
	rl := attestation.NewClientLimiter(1, 4)
	defer rl.Stop()
	router := limitedRouter(rl)

	if w := hit(t, router, http.MethodPost, "/submit", "10.0.0.2"); w.Code != http.StatusOK {
		t.Fatalf("first write: status %d", w.Code)
	}
	if w := hit(t, router, http.MethodPost, "/submit", "10.0.0.2"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: status %d, want 429", w.Code)
	}
}

func TestClientLimiter_clientsAreIndependent(t *testing.T) {
	rl := attestation.NewClientLimiter(1, 4)
	defer rl.Stop()
	router := limitedRouter(rl)

	hit(t, router, http.MethodPost, "/submit", "10.0.0.3")
	if w := hit(t, router, http.MethodPost, "/submit", "10.0.0.3"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("same client: status %d, want 429", w.Code)
	}
	if w := hit(t, router, http.MethodPost, "/submit", "10.0.0.4"); w.Code != http.StatusOK {
		t.Fatalf("other client: status %d, want 200", w.Code)
	}
}
