package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewhitmore/vitalsync/pkg/source"
)

var runRange = source.Range{
	Start: time.Date(2024, 12, 23, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC),
	Now:   time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC),
}

func newTestAdapter(ts *httptest.Server) *Adapter {
	return New(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		BaseURL:      ts.URL + "/api/v3",
		TokenURL:     ts.URL + "/oauth/token",
	}, zerolog.Nop())
}

func TestTokenExchangeFailureIsAuthError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Bad refresh token"}`))
			return
		}
		t.Errorf("unexpected request to %s before token exchange", r.URL.Path)
	}))
	defer ts.Close()

	_, err := newTestAdapter(ts).Fetch(context.Background(), runRange)
	var authErr *source.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", authErr.Status)
	}
	if authErr.Body == "" {
		t.Error("expected upstream body to be surfaced")
	}
}

func TestFetchEnrichesWithZones(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"fresh-token","token_type":"Bearer","expires_in":21600}`))
		case "/api/v3/athlete/activities":
			if got := r.Header.Get("Authorization"); got != "Bearer fresh-token" {
				t.Errorf("Authorization = %q, want fresh token", got)
			}
			if r.URL.Query().Get("per_page") != "30" {
				t.Errorf("per_page = %q, want 30", r.URL.Query().Get("per_page"))
			}
			if r.URL.Query().Get("after") == "" {
				t.Error("missing after timestamp")
			}
			w.Write([]byte(`[{
				"id": 123,
				"start_date_local": "2024-12-29T06:15:00Z",
				"type": "Ride",
				"name": "Morning Ride",
				"moving_time": 1860,
				"distance": 10500,
				"average_heartrate": 141.5,
				"max_heartrate": 171
			}]`))
		case "/api/v3/activities/123":
			w.Write([]byte(`{
				"calories": 450,
				"heartrate_zones": {"zones": [
					{"time": 600}, {"time": 300}, {"time": 90}, {"time": 0}, {"time": 30}
				]}
			}`))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	rows, err := newTestAdapter(ts).Fetch(context.Background(), runRange)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if row.Key != "2024-12-29_06:15:00" {
		t.Errorf("Key = %q, want 2024-12-29_06:15:00", row.Key)
	}
	checks := map[string]string{
		"date":         "2024-12-29",
		"time":         "06:15:00",
		"workout_type": "Ride",
		"duration_min": "31",
		"distance_km":  "10.5",
		"avg_hr":       "141.5",
		"calories":     "450",
		"zone_1_min":   "10",
		"zone_2_min":   "5",
		"zone_3_min":   "1.5",
		"zone_4_min":   "0",
		"zone_5_min":   "0.5",
	}
	for name, want := range checks {
		if got := row.Get(name).String(); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	// Metrics Strava never reported stay absent.
	if row.Get("avg_power").Present() {
		t.Error("avg_power should be absent")
	}
	// Zone 4 is zero time, which is present, not absent.
	if !row.Get("zone_4_min").Present() {
		t.Error("zone_4_min should be present with value 0")
	}
}

func TestDetailFailureKeepsSummaryFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":21600}`))
		case "/api/v3/athlete/activities":
			w.Write([]byte(`[{
				"id": 7,
				"start_date_local": "2024-12-28T18:00:00Z",
				"type": "Run",
				"name": "Evening Run",
				"moving_time": 1320,
				"distance": 5000
			}]`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	rows, err := newTestAdapter(ts).Fetch(context.Background(), runRange)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if got := row.Get("duration_min").String(); got != "22" {
		t.Errorf("duration_min = %q, want 22", got)
	}
	for i := 1; i <= 5; i++ {
		name := "zone_" + string(rune('0'+i)) + "_min"
		if row.Get(name).Present() {
			t.Errorf("%s should be absent after failed enrichment", name)
		}
	}
}

func TestActivityListFailureIsFetchError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":21600}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newTestAdapter(ts).Fetch(context.Background(), runRange)
	var fetchErr *source.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", fetchErr.Status)
	}
}
