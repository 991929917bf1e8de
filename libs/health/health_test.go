package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestReadinessFollowsManager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager(true)

	r := gin.New()
	r.GET("/healthz", LivenessHandler)
	r.GET("/readyz", ReadinessHandler(m))

	get := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	if code := get("/readyz"); code != http.StatusOK {
		t.Fatalf("expected 200 while ready, got %d", code)
	}

	// Draining: readiness fails, liveness keeps answering.
	m.SetReady(false)
	if code := get("/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while draining, got %d", code)
	}
	if code := get("/healthz"); code != http.StatusOK {
		t.Fatalf("expected 200 liveness, got %d", code)
	}
}
