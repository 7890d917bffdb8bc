package myair

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

func day(date time.Time) source.Range {
	return source.Day(date, date.AddDate(0, 0, 1))
}

func TestLoginRejectionIsAuthError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("invalid credentials"))
			return
		}
	}))
	defer ts.Close()

	adapter := New(Config{Email: "a@b.c", Password: "nope", BaseURL: ts.URL}, zerolog.Nop())
	_, err := adapter.Fetch(context.Background(), day(time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC)))
	var authErr *source.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", authErr.Status)
	}
	if authErr.Body != "invalid credentials" {
		t.Errorf("Body = %q, want upstream body", authErr.Body)
	}
}

func TestFetchCarriesSessionCookie(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/Default/Login" && r.Method == http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cr3t"})
		case r.URL.Path == "/Default/Login" && r.Method == http.MethodPost:
			if err := r.ParseForm(); err != nil {
				t.Fatalf("bad form: %v", err)
			}
			if r.PostForm.Get("username") != "user@example.com" {
				t.Errorf("username = %q", r.PostForm.Get("username"))
			}
			if r.PostForm.Get("rememberMe") != "false" {
				t.Errorf("rememberMe = %q", r.PostForm.Get("rememberMe"))
			}
		case r.URL.Path == "/SleepData/GetSleepData":
			cookie, err := r.Cookie("session")
			if err != nil || cookie.Value != "s3cr3t" {
				t.Error("sleep data request missing session cookie")
			}
			if r.URL.Query().Get("date") != "2024-12-29" {
				t.Errorf("date = %q", r.URL.Query().Get("date"))
			}
			w.Write([]byte(`[{"ahi":2.1,"maskPairCount":12,"usageHours":7.4,"maskPairScore":20,"totalEvents":15,"myAirScore":94}]`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	adapter := New(Config{Email: "user@example.com", Password: "pw", BaseURL: ts.URL}, zerolog.Nop())
	rows, err := adapter.Fetch(context.Background(), day(time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if row.Key != "2024-12-29" {
		t.Errorf("Key = %q, want 2024-12-29", row.Key)
	}
	checks := map[string]string{
		"ahi":         "2.1",
		"leak":        "12",
		"hours_used":  "7.4",
		"mask_seal":   "20",
		"events":      "15",
		"myair_score": "94",
	}
	for name, want := range checks {
		if got := row.Get(name).String(); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestNightWithNoRecordYieldsAbsentFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/SleepData/GetSleepData" {
			w.Write([]byte(`[]`))
			return
		}
	}))
	defer ts.Close()

	adapter := New(Config{Email: "user@example.com", Password: "pw", BaseURL: ts.URL}, zerolog.Nop())
	rows, err := adapter.Fetch(context.Background(), day(time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	row := rows[0]
	for _, name := range []string{"ahi", "leak", "hours_used", "mask_seal", "events", "myair_score"} {
		if row.Get(name).Present() {
			t.Errorf("%s should be absent when no record exists", name)
		}
	}
}
