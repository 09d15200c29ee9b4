package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/sheets"
)

// Spreadsheet adapts the worksheet free functions to sheets.Spreadsheet.
// ID partitions worksheets so several deployments can share one database.
type Spreadsheet struct {
	DB *gorm.DB
	ID string
}

// NewSpreadsheet binds a spreadsheet identifier to a GORM handle.
func NewSpreadsheet(db *gorm.DB, id string) *Spreadsheet {
	return &Spreadsheet{DB: db, ID: id}
}

// Worksheet implements sheets.Spreadsheet.
func (s *Spreadsheet) Worksheet(ctx context.Context, title string) (sheets.Worksheet, error) {
	ws, err := GetWorksheet(ctx, s.DB, s.ID, title)
	if errors.Is(err, ErrNotFound) {
		return nil, sheets.ErrWorksheetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &worksheet{db: s.DB, rec: *ws}, nil
}

// AddWorksheet implements sheets.Spreadsheet.
func (s *Spreadsheet) AddWorksheet(ctx context.Context, title string, cols int) (sheets.Worksheet, error) {
	ws, err := CreateWorksheet(ctx, s.DB, s.ID, title, cols)
	if errors.Is(err, ErrDuplicate) {
		return nil, sheets.ErrWorksheetExists
	}
	if err != nil {
		return nil, err
	}
	return &worksheet{db: s.DB, rec: *ws}, nil
}

type worksheet struct {
	db  *gorm.DB
	rec domain.Worksheet
}

func (w *worksheet) Title() string { return w.rec.Title }

func (w *worksheet) Rows(ctx context.Context) ([][]string, error) {
	rows, err := ListRows(ctx, w.db, w.rec.ID)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Cells
	}
	return out, nil
}

func (w *worksheet) AppendRow(ctx context.Context, cells []string) error {
	_, err := AppendRow(ctx, w.db, w.rec.ID, cells)
	return err
}

func (w *worksheet) DeleteRow(ctx context.Context, row int, verify func([]string) bool) error {
	return DeleteRowAt(ctx, w.db, w.rec.ID, row, verify)
}

func (w *worksheet) Clear(ctx context.Context) error {
	return ClearRows(ctx, w.db, w.rec.ID)
}
