package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewhitmore/vitalsync/pkg/model"
	"github.com/ewhitmore/vitalsync/pkg/sink"
	"github.com/ewhitmore/vitalsync/pkg/source"
)

type fakeSource struct {
	rows []*model.Row
	err  error
}

func (f *fakeSource) Name() string      { return "fake" }
func (f *fakeSource) Worksheet() string { return "fake_data" }
func (f *fakeSource) Header() []string  { return []string{"date", "score"} }

func (f *fakeSource) Fetch(ctx context.Context, r source.Range) ([]*model.Row, error) {
	return f.rows, f.err
}

type memTable struct {
	rows [][]string
}

func (m *memTable) ReadAll(ctx context.Context) ([][]string, error) {
	out := make([][]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (m *memTable) UpdateCells(ctx context.Context, rowNum int, cells map[int]string) error {
	row := m.rows[rowNum-1]
	for col, v := range cells {
		for len(row) <= col {
			row = append(row, "")
		}
		row[col] = v
	}
	m.rows[rowNum-1] = row
	return nil
}

func (m *memTable) AppendRow(ctx context.Context, cells []string) error {
	m.rows = append(m.rows, append([]string(nil), cells...))
	return nil
}

func opener(table sink.Table, err error) TableOpener {
	return func(ctx context.Context, worksheet string, header []string) (sink.Table, error) {
		return table, err
	}
}

func window() source.Range {
	now := time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC)
	return source.Days(7, now)
}

func row(key, score string) *model.Row {
	r := model.NewRow(key)
	r.Set("score", model.Text(score))
	return r
}

func TestRunSucceeds(t *testing.T) {
	table := &memTable{rows: [][]string{{"date", "score"}, {"2024-12-29", "4.0"}}}
	src := &fakeSource{rows: []*model.Row{row("2024-12-29", "5.8"), row("2024-12-30", "3.1")}}

	report := Run(context.Background(), src, opener(table, nil), window(), zerolog.Nop())

	if !report.OK() {
		t.Fatalf("run failed: %v", report.Err)
	}
	if report.Fetched != 2 || report.Updated != 1 || report.Appended != 1 {
		t.Errorf("report = %+v, want 2 fetched / 1 updated / 1 appended", report)
	}
	if len(table.rows) != 3 {
		t.Errorf("expected 3 sheet rows, got %d", len(table.rows))
	}
}

func TestRunFailsInAuthenticate(t *testing.T) {
	src := &fakeSource{err: &source.AuthError{Source: "fake", Status: 401, Body: "denied"}}

	report := Run(context.Background(), src, opener(nil, nil), window(), zerolog.Nop())

	if report.OK() {
		t.Fatal("expected failure")
	}
	if report.FailedIn != StateAuthenticate {
		t.Errorf("FailedIn = %q, want authenticate", report.FailedIn)
	}
}

func TestRunFailsInFetch(t *testing.T) {
	src := &fakeSource{err: &source.FetchError{Source: "fake", Resource: "records", Status: 502}}

	report := Run(context.Background(), src, opener(nil, nil), window(), zerolog.Nop())

	if report.OK() {
		t.Fatal("expected failure")
	}
	if report.FailedIn != StateFetch {
		t.Errorf("FailedIn = %q, want fetch", report.FailedIn)
	}
}

func TestSchemaMismatchFailsBeforeWrites(t *testing.T) {
	table := &memTable{rows: [][]string{{"date", "other"}}}
	src := &fakeSource{rows: []*model.Row{row("2024-12-29", "5.8")}}

	report := Run(context.Background(), src, opener(table, nil), window(), zerolog.Nop())

	if report.OK() {
		t.Fatal("expected failure")
	}
	if report.FailedIn != StateUpsert {
		t.Errorf("FailedIn = %q, want upsert", report.FailedIn)
	}
	var schemaErr *sink.SchemaError
	if !errors.As(report.Err, &schemaErr) {
		t.Errorf("Err = %v, want SchemaError", report.Err)
	}
	if len(table.rows) != 1 {
		t.Errorf("sink mutated despite schema mismatch: %v", table.rows)
	}
}

// An empty fetch is a successful run: the session-login source returns
// no records on login failure or selector drift by design, and the
// scheduler should not see that as a crash loop.
func TestEmptyFetchIsDone(t *testing.T) {
	src := &fakeSource{}

	report := Run(context.Background(), src, opener(nil, errors.New("must not open sink")), window(), zerolog.Nop())

	if !report.OK() {
		t.Fatalf("expected success, got %v", report.Err)
	}
	if report.Fetched != 0 {
		t.Errorf("Fetched = %d, want 0", report.Fetched)
	}
}
