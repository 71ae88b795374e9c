package solver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func sampleRequest() *Request {
	return &Request{
		VehicleID:      "vehicle-1",
		VehicleCap:     100,
		StartLatitude:  35.68,
		StartLongitude: 139.76,
		Stops: []Stop{
			{ID: "bin-1", Latitude: 35.69, Longitude: 139.70, Demand: 10},
			{ID: "bin-2", Latitude: 35.70, Longitude: 139.72, Demand: 20},
		},
	}
}

func TestSolve_Success_ReturnsSolutionData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.VehicleID != "vehicle-1" {
			t.Errorf("unexpected vehicle id: %s", req.VehicleID)
		}
		if len(req.Stops) != 2 {
			t.Errorf("expected 2 stops, got %d", len(req.Stops))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"routes": []map[string]any{
				{"vehicle": "vehicle-1", "stops": []string{"bin-2", "bin-1"}, "distance_km": 12.5},
			},
			"total_distance_km": 12.5,
		})
	}))
	defer server.Close()

	client := NewClient(&http.Client{Timeout: 5 * time.Second}, testLogger(), server.URL)
	data, err := client.Solve(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if len(data.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(data.Routes))
	}
	if data.Routes[0].Vehicle != "vehicle-1" {
		t.Errorf("unexpected vehicle: %s", data.Routes[0].Vehicle)
	}
	if len(data.Routes[0].Stops) != 2 || data.Routes[0].Stops[0] != "bin-2" {
		t.Errorf("unexpected stop order: %v", data.Routes[0].Stops)
	}
	if data.TotalDistanceKM != 12.5 {
		t.Errorf("expected 12.5, got %f", data.TotalDistanceKM)
	}
}

func TestSolve_ErrorStatus_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(&http.Client{Timeout: 5 * time.Second}, testLogger(), server.URL)
	if _, err := client.Solve(context.Background(), sampleRequest()); err == nil {
		t.Error("expected error status to be propagated")
	}
}

func TestSolve_MalformedResponse_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(&http.Client{Timeout: 5 * time.Second}, testLogger(), server.URL)
	if _, err := client.Solve(context.Background(), sampleRequest()); err == nil {
		t.Error("expected parse failure to be reported")
	}
}

func TestSolve_ContextCancelled_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewClient(&http.Client{}, testLogger(), server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := client.Solve(ctx, sampleRequest()); err == nil {
		t.Error("expected context timeout to abort the request")
	}
}
