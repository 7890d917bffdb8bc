package model

import (
	"testing"
	"time"
)

func TestValueRendering(t *testing.T) {
	if got := Number(15.5).String(); got != "15.5" {
		t.Errorf("Number(15.5) rendered as %q, want \"15.5\"", got)
	}
	if got := Number(22).String(); got != "22" {
		t.Errorf("Number(22) rendered as %q, want \"22\"", got)
	}
	if got := Int(8421).String(); got != "8421" {
		t.Errorf("Int(8421) rendered as %q, want \"8421\"", got)
	}
	if got := None().String(); got != "" {
		t.Errorf("None rendered as %q, want empty string", got)
	}
}

func TestZeroIsNotAbsent(t *testing.T) {
	zero := Number(0)
	if !zero.Present() {
		t.Error("Number(0) should be present")
	}
	if zero.String() != "0" {
		t.Errorf("Number(0) rendered as %q, want \"0\"", zero.String())
	}
	if None().Present() {
		t.Error("None should not be present")
	}
}

func TestRowFieldOrder(t *testing.T) {
	row := NewRow("2024-12-29")
	row.Set("sleep_score", Int(81))
	row.Set("readiness_score", None())
	row.Set("steps", Int(9200))
	row.Set("sleep_score", Int(82)) // overwrite keeps position

	want := []string{"sleep_score", "readiness_score", "steps"}
	got := row.Fields()
	if len(got) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d: got %q, want %q", i, got[i], want[i])
		}
	}
	if row.Get("sleep_score").String() != "82" {
		t.Errorf("overwrite lost: got %q", row.Get("sleep_score").String())
	}
	if row.Get("readiness_score").Present() {
		t.Error("explicitly absent field should not be present")
	}
}

func TestKeys(t *testing.T) {
	at := time.Date(2024, 12, 29, 6, 15, 0, 0, time.UTC)
	if got := DateKey(at); got != "2024-12-29" {
		t.Errorf("DateKey: got %q", got)
	}
	if got := DateTimeKey(at); got != "2024-12-29_06:15:00" {
		t.Errorf("DateTimeKey: got %q", got)
	}
}
