package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(nil, nil, nil, nil, nil)
}

func TestCompareReportsRoute_RequiresBothIDs(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/compare?first=abc", nil)
	router.ServeHTTP(w, req)

	// The static /reports/compare segment must win over /reports/:id, so a
	// missing query parameter surfaces as a 400 rather than a report lookup.
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a missing report ID. Got: %d", w.Code)
	}
}

func TestCompareReportsRoute_WithoutDatabase(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/compare?first=a&second=b", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with no database connected. Got: %d", w.Code)
	}
}

func TestHealthAdvertisesStabilityMetrics(t *testing.T) {
	router := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /health. Got: %d", w.Code)
	}

	var body struct {
		Capabilities map[string]bool `json:"capabilities"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if !body.Capabilities["stability_metrics"] {
		t.Error("Health check must advertise stability_metrics now that the compare route exists")
	}
}
