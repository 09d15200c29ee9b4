// Package sheets describes the tabular store the bot persists into: a
// spreadsheet made of named worksheets, each a list of text rows where row 1
// is the header. The contract mirrors what a spreadsheet API
// offers (append, read all, delete by row number, clear) and nothing more;
// there is no transaction or conditional write.
//
// Two implementations exist: repo.Spreadsheet (GORM-backed, used in
// production) and Memory (used by tests and the "memory" store driver).
package sheets

import (
	"context"
	"errors"
)

var (
	// ErrWorksheetNotFound is returned when a worksheet title does not exist.
	ErrWorksheetNotFound = errors.New("worksheet not found")

	// ErrWorksheetExists is returned by AddWorksheet for a duplicate title.
	ErrWorksheetExists = errors.New("worksheet already exists")

	// ErrRowOutOfRange is returned when a row number does not address a row.
	ErrRowOutOfRange = errors.New("row out of range")

	// ErrRowMoved is returned by DeleteRow when the row at the requested
	// position no longer holds the expected content.
	ErrRowMoved = errors.New("row changed before delete")
)

// Spreadsheet opens and creates worksheets.
type Spreadsheet interface {
	// Worksheet returns the worksheet with the given title or ErrWorksheetNotFound.
	Worksheet(ctx context.Context, title string) (Worksheet, error)
	// AddWorksheet creates an empty worksheet with cols declared columns.
	AddWorksheet(ctx context.Context, title string, cols int) (Worksheet, error)
}

// Worksheet is a single table. Implementations must be safe for concurrent
// use, but calls are not atomic with respect to each other.
type Worksheet interface {
	Title() string
	// Rows returns every row, header included, in row order.
	Rows(ctx context.Context) ([][]string, error)
	// AppendRow adds a row after the last one. The write is visible to the
	// next Rows call.
	AppendRow(ctx context.Context, cells []string) error
	// DeleteRow removes row number row (1-based, header is row 1). When
	// verify is non-nil it is called with the row's current cells right
	// before removal; returning false aborts with ErrRowMoved.
	DeleteRow(ctx context.Context, row int, verify func(cells []string) bool) error
	// Clear removes every row, header included.
	Clear(ctx context.Context) error
}

// Range extracts the rectangular block rows[fromRow-1:], columns
// [fromCol, toCol] (1-based, inclusive) from rows, the way "C2:D" does in a
// spreadsheet. Short rows are padded with empty cells; fully empty trailing
// rows are kept so callers see positions unchanged.
func Range(rows [][]string, fromRow, fromCol, toCol int) [][]string {
	if fromRow < 1 {
		fromRow = 1
	}
	if fromCol < 1 || toCol < fromCol || fromRow > len(rows) {
		return nil
	}
	out := make([][]string, 0, len(rows)-fromRow+1)
	for _, r := range rows[fromRow-1:] {
		block := make([]string, toCol-fromCol+1)
		for c := fromCol; c <= toCol; c++ {
			if c-1 < len(r) {
				block[c-fromCol] = r[c-1]
			}
		}
		out = append(out, block)
	}
	return out
}

// Cell returns row[i] or "" when the row is shorter.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
