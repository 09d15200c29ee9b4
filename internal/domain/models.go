// Package domain defines the persistence models backing the tabular store
// and the order, catalog and session types shared by the store, services and
// dialog layers.
package domain

import "time"

// Worksheet is one named table inside a spreadsheet. A spreadsheet is only a
// partition key here: all worksheets with the same SpreadsheetID belong to
// the same deployment.
//
// Fields:
//   - ID: surrogate primary key.
//   - SpreadsheetID: store identifier the worksheet belongs to.
//   - Title: worksheet name, unique per spreadsheet.
//   - Cols: declared column count (informational, rows may be shorter).
//   - CreatedAt: timestamp managed by GORM.
type Worksheet struct {
	ID            uint      `json:"id"             gorm:"primaryKey"`
	SpreadsheetID string    `json:"spreadsheet_id" gorm:"type:varchar(128);not null;uniqueIndex:ux_worksheet_title,priority:1"`
	Title         string    `json:"title"          gorm:"type:varchar(255);not null;uniqueIndex:ux_worksheet_title,priority:2"`
	Cols          int       `json:"cols"           gorm:"not null;default:1"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for Worksheet.
func (Worksheet) TableName() string { return "worksheets" }

// SheetRow is a single row of cells. Row order inside a worksheet is the
// insertion order (ascending ID), so "row N" means the N-th row by ID with
// the header being row 1.
type SheetRow struct {
	ID          uint64    `json:"id"           gorm:"primaryKey;autoIncrement"`
	WorksheetID uint      `json:"worksheet_id" gorm:"not null;index:idx_worksheet_rows"`
	Cells       []string  `json:"cells"        gorm:"type:text;not null;serializer:json"`
	CreatedAt   time.Time `json:"created_at"`

	// Worksheet is the owning table. Rows are cascade-deleted with it.
	Worksheet Worksheet `json:"-" gorm:"foreignKey:WorksheetID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SheetRow.
func (SheetRow) TableName() string { return "sheet_rows" }
