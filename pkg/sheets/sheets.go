// Package sheets adapts one Google Sheets worksheet to the sink.Table
// interface. Worksheets are auto-created with the source's full header on
// first use; after that the column order is never touched.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"

	"github.com/ewhitmore/vitalsync/pkg/sink"
)

const (
	newSheetRows = 1000
	newSheetCols = 26
)

// Worksheet is one named sub-table of a spreadsheet.
type Worksheet struct {
	srv           *sheets.Service
	spreadsheetID string
	name          string
}

// Open returns the named worksheet, creating it with the given header row
// if the spreadsheet does not have it yet.
func Open(ctx context.Context, srv *sheets.Service, spreadsheetID, name string, header []string) (*Worksheet, error) {
	spreadsheet, err := srv.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve spreadsheet %s: %w", spreadsheetID, err)
	}

	w := &Worksheet{srv: srv, spreadsheetID: spreadsheetID, name: name}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == name {
			return w, nil
		}
	}

	if err := w.create(ctx, header); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Worksheet) create(ctx context.Context, header []string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: w.name,
					GridProperties: &sheets.GridProperties{
						RowCount:    newSheetRows,
						ColumnCount: newSheetCols,
					},
				},
			},
		}},
	}
	if _, err := w.srv.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("creating worksheet %s: %w", w.name, err)
	}

	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{cells}}
	_, err := w.srv.Spreadsheets.Values.
		Update(w.spreadsheetID, w.rangeRef("A1"), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("writing header for worksheet %s: %w", w.name, err)
	}
	return nil
}

// ReadAll fetches the whole worksheet, header included.
func (w *Worksheet) ReadAll(ctx context.Context) ([][]string, error) {
	resp, err := w.srv.Spreadsheets.Values.
		Get(w.spreadsheetID, w.rangeRef("")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("reading worksheet %s: %w", w.name, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprint(cell)
		}
		rows[i] = cells
	}
	return rows, nil
}

// UpdateCells overwrites the given cells of one row in a single batched
// values update, leaving every other cell of the row untouched.
func (w *Worksheet) UpdateCells(ctx context.Context, rowNum int, cells map[int]string) error {
	data := make([]*sheets.ValueRange, 0, len(cells))
	for col, value := range cells {
		data = append(data, &sheets.ValueRange{
			Range:  w.rangeRef(fmt.Sprintf("%s%d", ColumnLetter(col), rowNum)),
			Values: [][]interface{}{{value}},
		})
	}
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	if _, err := w.srv.Spreadsheets.Values.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("updating row %d of worksheet %s: %w", rowNum, w.name, err)
	}
	return nil
}

// AppendRow appends one data row below the current table.
func (w *Worksheet) AppendRow(ctx context.Context, cells []string) error {
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := w.srv.Spreadsheets.Values.
		Append(w.spreadsheetID, w.rangeRef("A1"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending to worksheet %s: %w", w.name, err)
	}
	return nil
}

func (w *Worksheet) rangeRef(cells string) string {
	if cells == "" {
		return "'" + w.name + "'"
	}
	return "'" + w.name + "'!" + cells
}

// ColumnLetter converts a zero-based column index to its A1 letter form
// (0 -> A, 25 -> Z, 26 -> AA).
func ColumnLetter(col int) string {
	letters := ""
	for col >= 0 {
		letters = string(rune('A'+col%26)) + letters
		col = col/26 - 1
	}
	return letters
}

var _ sink.Table = (*Worksheet)(nil)
