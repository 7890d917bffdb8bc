// Package sink implements the idempotent upsert engine over a tabular
// store. The store itself is abstracted behind the Table interface so the
// engine can be exercised against an in-memory table in tests and against
// a Google Sheets worksheet in production.
package sink

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ewhitmore/vitalsync/pkg/model"
)

// KeyColumn is the fixed position of the natural-key column. Row 0 of the
// table is the header; data rows are keyed by their first cell.
const KeyColumn = 0

// Table is one worksheet of the tabular store. Implementations must keep
// column order stable for the lifetime of the worksheet.
type Table interface {
	// ReadAll returns every row, header included. Called once per run.
	ReadAll(ctx context.Context) ([][]string, error)

	// UpdateCells overwrites individual cells of an existing row.
	// rowNum is 1-based (row 1 is the header), cells maps zero-based
	// column index to the new cell text.
	UpdateCells(ctx context.Context, rowNum int, cells map[int]string) error

	// AppendRow appends one data row spanning the full column order.
	AppendRow(ctx context.Context, cells []string) error
}

// SchemaError reports header columns a row needs but the worksheet lacks.
// It aborts the run before any write; the engine never repairs headers.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("worksheet header missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Report summarizes what one run wrote.
type Report struct {
	Updated  int
	Appended int
}

// Upserter locates rows by natural key and updates them in place or
// appends them, guaranteeing at most one row per key after a run.
type Upserter struct {
	table    Table
	header   map[string]int // field name -> column index
	width    int            // header length, the full column order
	keyIndex map[string]int // natural key -> 1-based row number
	nextRow  int            // row number the next append will land on
	log      zerolog.Logger
	report   Report
}

// NewUpserter reads the full table once and builds the header-to-column
// mapping plus the existing-key index. The index is ephemeral: it lives
// for one run and is rebuilt from a fresh scan on the next.
func NewUpserter(ctx context.Context, table Table, log zerolog.Logger) (*Upserter, error) {
	values, err := table.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading sink table: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("sink table has no header row")
	}

	header := make(map[string]int, len(values[0]))
	for i, name := range values[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	keyIndex := make(map[string]int)
	for i, row := range values[1:] {
		if len(row) == 0 || row[KeyColumn] == "" {
			continue
		}
		key := row[KeyColumn]
		// First occurrence wins during the scan; the upsert pass
		// converges later duplicates onto it.
		if _, seen := keyIndex[key]; !seen {
			keyIndex[key] = i + 2
		}
	}

	return &Upserter{
		table:    table,
		header:   header,
		width:    len(values[0]),
		keyIndex: keyIndex,
		nextRow:  len(values) + 1,
		log:      log,
	}, nil
}

// Validate checks that the header carries every column the given rows will
// write. Called before the first write so a schema mismatch aborts the run
// with the sink untouched.
func (u *Upserter) Validate(rows []*model.Row) error {
	missing := make(map[string]bool)
	for _, row := range rows {
		for _, name := range row.Fields() {
			if _, ok := u.header[name]; !ok {
				missing[name] = true
			}
		}
	}
	if len(missing) > 0 {
		err := &SchemaError{}
		for name := range missing {
			err.Missing = append(err.Missing, name)
		}
		sort.Strings(err.Missing)
		return err
	}
	return nil
}

// Upsert writes one canonical row. An existing row with the same key has
// exactly the supplied fields overwritten in place; a new key is appended
// and immediately registered in the index so a later record in the same
// batch with the same key updates instead of appending again.
func (u *Upserter) Upsert(ctx context.Context, row *model.Row) error {
	if rowNum, ok := u.keyIndex[row.Key]; ok {
		cells := make(map[int]string)
		for _, name := range row.Fields() {
			col, ok := u.header[name]
			if !ok {
				return &SchemaError{Missing: []string{name}}
			}
			cells[col] = row.Get(name).String()
		}
		if len(cells) == 0 {
			return nil
		}
		if err := u.table.UpdateCells(ctx, rowNum, cells); err != nil {
			return fmt.Errorf("updating row %d for key %s: %w", rowNum, row.Key, err)
		}
		u.report.Updated++
		u.log.Debug().Str("key", row.Key).Int("row", rowNum).Msg("updated existing row")
		return nil
	}

	cells := make([]string, u.width)
	cells[KeyColumn] = row.Key
	for _, name := range row.Fields() {
		col, ok := u.header[name]
		if !ok {
			return &SchemaError{Missing: []string{name}}
		}
		cells[col] = row.Get(name).String()
	}
	if err := u.table.AppendRow(ctx, cells); err != nil {
		return fmt.Errorf("appending row for key %s: %w", row.Key, err)
	}
	u.keyIndex[row.Key] = u.nextRow
	u.nextRow++
	u.report.Appended++
	u.log.Debug().Str("key", row.Key).Msg("appended new row")
	return nil
}

// Run validates the whole batch against the header, then upserts each row
// in order. Later rows see keys appended by earlier ones.
func (u *Upserter) Run(ctx context.Context, rows []*model.Row) (Report, error) {
	if err := u.Validate(rows); err != nil {
		return u.report, err
	}
	for _, row := range rows {
		if err := u.Upsert(ctx, row); err != nil {
			return u.report, err
		}
	}
	return u.report, nil
}
