// Package repo implements the data persistence layer, backed by GORM. This
// file provides the worksheet and row functions the tabular store is built
// on.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// usable inside transactions. They follow the "thin repository" approach:
// no business logic, only persistence and query composition.
//
// Error semantics:
//   - A missing worksheet is reported as gorm.ErrRecordNotFound (ErrNotFound).
//   - A duplicate worksheet title is reported as ErrDuplicate.
//   - Row positioning errors use the sheets package sentinels
//     (sheets.ErrRowOutOfRange, sheets.ErrRowMoved).
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/sheets"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// GetWorksheet fetches a worksheet by spreadsheet and title.
func GetWorksheet(ctx context.Context, db *gorm.DB, spreadsheetID, title string) (*domain.Worksheet, error) {
	var ws domain.Worksheet
	err := db.WithContext(ctx).
		Where("spreadsheet_id = ? AND title = ?", spreadsheetID, title).
		First(&ws).Error
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// CreateWorksheet inserts an empty worksheet. It returns ErrDuplicate when
// the title is already taken in the spreadsheet.
func CreateWorksheet(ctx context.Context, db *gorm.DB, spreadsheetID, title string, cols int) (*domain.Worksheet, error) {
	if cols < 1 {
		cols = 1
	}
	ws := &domain.Worksheet{
		SpreadsheetID: spreadsheetID,
		Title:         title,
		Cols:          cols,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ws).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return ws, nil
}

// AppendRow inserts a row after the current last row of the worksheet.
func AppendRow(ctx context.Context, db *gorm.DB, worksheetID uint, cells []string) (*domain.SheetRow, error) {
	if cells == nil {
		cells = []string{}
	}
	r := &domain.SheetRow{
		WorksheetID: worksheetID,
		Cells:       cells,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// ListRows returns the rows of a worksheet in row order.
func ListRows(ctx context.Context, db *gorm.DB, worksheetID uint) ([]domain.SheetRow, error) {
	var out []domain.SheetRow
	err := db.WithContext(ctx).
		Where("worksheet_id = ?", worksheetID).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// DeleteRowAt deletes the row at 1-based position row. The row is located
// and removed inside one transaction, and verify (when non-nil) sees the
// row's cells immediately before removal; a false result aborts with
// sheets.ErrRowMoved and nothing is deleted.
func DeleteRowAt(ctx context.Context, db *gorm.DB, worksheetID uint, row int, verify func([]string) bool) error {
	if row < 1 {
		return sheets.ErrRowOutOfRange
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target domain.SheetRow
		err := tx.Where("worksheet_id = ?", worksheetID).
			Order("id asc").
			Offset(row - 1).
			Limit(1).
			Take(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sheets.ErrRowOutOfRange
		}
		if err != nil {
			return err
		}
		if verify != nil && !verify(target.Cells) {
			return sheets.ErrRowMoved
		}
		res := tx.Where("id = ? AND worksheet_id = ?", target.ID, worksheetID).Delete(&domain.SheetRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return sheets.ErrRowMoved
		}
		return nil
	})
}

// ClearRows deletes every row of a worksheet.
func ClearRows(ctx context.Context, db *gorm.DB, worksheetID uint) error {
	return db.WithContext(ctx).
		Where("worksheet_id = ?", worksheetID).
		Delete(&domain.SheetRow{}).Error
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite: "UNIQUE constraint failed"; Postgres: "duplicate key value";
	// MySQL: "Duplicate entry".
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed: unique") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
