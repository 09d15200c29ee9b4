package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndInflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.POST("/webhook/:token", func(c *gin.Context) { c.Status(http.StatusOK) })

	baseHook := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhook/:token", "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatched, "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/secret-token", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("POST webhook -> %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/random/path", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET unknown -> %d", w.Code)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhook/:token", "200")); got != baseHook+1 {
		t.Fatalf("webhook counter = %v; want %v", got, baseHook+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatched, "404")); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
