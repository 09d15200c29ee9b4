// Package store – Order Store
//
// This file implements Store, the persistence facade over a
// sheets.Spreadsheet. It owns three order tables (one per menu category)
// and the identity table listing every chat that talked to the bot.
//
// Every table access goes through schema healing: a missing table is
// created with its header, and an order table whose first row is shorter
// than the nine-cell header is cleared and re-headed.
//
// Mutations (append, delete, identity registration, healing) are serialized
// by an in-process mutex so positions found by a scan cannot shift before
// the matching delete. Other processes and manual edits are guarded by the
// content check passed to sheets.Worksheet.DeleteRow.
//
// Observability: public methods are OpenTelemetry-instrumented.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/sheets"
)

// Table titles and headers.
const (
	// CatalogTable holds the three menus side by side. It is never created
	// by the store.
	CatalogTable = "Menu"
	// IdentityTable lists chat identities, one per row.
	IdentityTable = "ID"
	// IdentityHeader is the single header cell of IdentityTable.
	IdentityHeader = "Chat ID"
)

// OrderHeader is the header row of every order table. The ninth cell is a
// free column for operators; the bot writes eight cells per order.
var OrderHeader = []string{
	"Order No",
	"Created date",
	"Created time",
	"Full name",
	"Chat ID",
	"Menu",
	"Pickup date",
	"Price",
	"Comment",
}

// deleteAttempts bounds the scan-and-delete loop when rows shift underneath.
const deleteAttempts = 3

var (
	// ErrOrderNotFound is returned when no order table holds the reference.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnknownCategory is returned for a category without an order table.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrSkipRow, returned by a DeleteByReference guard, passes over the
	// matched row and resumes the scan after it.
	ErrSkipRow = errors.New("skip row")
)

// Store persists orders and identities.
type Store struct {
	Sheets sheets.Spreadsheet

	mu sync.Mutex
}

// New returns a Store over ss.
func New(ss sheets.Spreadsheet) *Store {
	return &Store{Sheets: ss}
}

// Located is an order record together with where it was found.
type Located struct {
	Record   domain.OrderRecord
	Category domain.Category
	// Row is the 1-based worksheet row (header is row 1).
	Row int
}

// EnsureSchema heals every order table and the identity table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, span := tracer().Start(ctx, "EnsureSchema")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range domain.Categories {
		if _, _, err := s.heal(ctx, c.OrdersTable(), OrderHeader); err != nil {
			return err
		}
	}
	_, _, err := s.heal(ctx, IdentityTable, []string{IdentityHeader})
	return err
}

// Append writes o as a new row of its category table.
func (s *Store) Append(ctx context.Context, o domain.Order) error {
	ctx, span := tracer().Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("order.reference", o.Reference),
			attribute.String("order.category", string(o.Category)),
		),
	)
	defer span.End()

	title := o.Category.OrdersTable()
	if title == "" {
		return ErrUnknownCategory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ws, _, err := s.heal(ctx, title, OrderHeader)
	if err != nil {
		return err
	}
	if err := ws.AppendRow(ctx, orderCells(o)); err != nil {
		return fmt.Errorf("append order %s: %w", o.Reference, err)
	}
	return nil
}

// ListAll returns every order of category c in row order. Blank rows are
// skipped.
func (s *Store) ListAll(ctx context.Context, c domain.Category) ([]domain.OrderRecord, error) {
	ctx, span := tracer().Start(ctx, "ListAll",
		trace.WithAttributes(attribute.String("order.category", string(c))),
	)
	defer span.End()

	title := c.OrdersTable()
	if title == "" {
		return nil, ErrUnknownCategory
	}
	_, rows, err := s.open(ctx, title, OrderHeader)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderRecord, 0, len(rows))
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		out = append(out, recordFromCells(r))
	}
	return out, nil
}

// Find scans the order tables in category order and returns the first row
// whose reference equals ref. A table that cannot be read is skipped; if
// nothing matched and some table failed, the first failure is returned
// instead of ErrOrderNotFound.
func (s *Store) Find(ctx context.Context, ref string) (Located, error) {
	ctx, span := tracer().Start(ctx, "Find",
		trace.WithAttributes(attribute.String("order.reference", ref)),
	)
	defer span.End()

	return s.find(ctx, ref, s.open, nil)
}

// DeleteAt removes the order at loc after checking that the row still holds
// loc's reference. It returns sheets.ErrRowMoved when it does not.
func (s *Store) DeleteAt(ctx context.Context, loc Located) error {
	ctx, span := tracer().Start(ctx, "DeleteAt",
		trace.WithAttributes(
			attribute.String("order.reference", loc.Record.Reference),
			attribute.Int("row", loc.Row),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAt(ctx, loc)
}

// DeleteByReference finds the first order with reference ref, lets guard
// veto the deletion, and removes exactly that row. A guard returning
// ErrSkipRow passes over the row and the scan continues. If the row moved
// between scan and delete the scan is repeated, up to three attempts. The
// deleted record is returned; any other guard error is returned unchanged
// and nothing is deleted.
func (s *Store) DeleteByReference(ctx context.Context, ref string, guard func(Located) error) (Located, error) {
	ctx, span := tracer().Start(ctx, "DeleteByReference",
		trace.WithAttributes(attribute.String("order.reference", ref)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		loc, err := s.find(ctx, ref, s.heal, guard)
		if err != nil {
			return loc, err
		}
		err = s.deleteAt(ctx, loc)
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, sheets.ErrRowMoved) && !errors.Is(err, sheets.ErrRowOutOfRange) {
			return Located{}, err
		}
		log.Warn().Str("reference", ref).Int("row", loc.Row).Int("attempt", attempt).Msg("order row moved before delete; rescanning")
		lastErr = err
	}
	return Located{}, fmt.Errorf("delete order %s: %w", ref, lastErr)
}

// Contains reports whether id is listed in the identity table.
func (s *Store) Contains(ctx context.Context, id domain.ChatID) (bool, error) {
	ctx, span := tracer().Start(ctx, "Contains")
	defer span.End()

	_, rows, err := s.open(ctx, IdentityTable, []string{IdentityHeader})
	if err != nil {
		return false, err
	}
	return containsID(rows, id), nil
}

// AppendIfAbsent adds id to the identity table unless it is already there.
// It reports whether a row was written. Check and append are serialized in
// this process only; another process may still add a duplicate.
func (s *Store) AppendIfAbsent(ctx context.Context, id domain.ChatID) (bool, error) {
	ctx, span := tracer().Start(ctx, "AppendIfAbsent",
		trace.WithAttributes(attribute.Int64("chat.id", id)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	ws, rows, err := s.heal(ctx, IdentityTable, []string{IdentityHeader})
	if err != nil {
		return false, err
	}
	if containsID(rows, id) {
		return false, nil
	}
	if err := ws.AppendRow(ctx, []string{strconv.FormatInt(id, 10)}); err != nil {
		return false, fmt.Errorf("append identity: %w", err)
	}
	return true, nil
}

// ListIDs returns every identity in row order. Non-numeric cells are
// skipped; duplicates are returned as stored.
func (s *Store) ListIDs(ctx context.Context) ([]domain.ChatID, error) {
	ctx, span := tracer().Start(ctx, "ListIDs")
	defer span.End()

	_, rows, err := s.open(ctx, IdentityTable, []string{IdentityHeader})
	if err != nil {
		return nil, err
	}
	ids := make([]domain.ChatID, 0, len(rows))
	for _, r := range rows[1:] {
		id, ok := parseID(sheets.Cell(r, 0))
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// --- helpers ---

func tracer() trace.Tracer { return otel.Tracer("store/Store") }

// loader opens a table and returns its rows; either open or, with s.mu
// held, heal.
type loader func(ctx context.Context, title string, header []string) (sheets.Worksheet, [][]string, error)

// find returns the first row matching ref that guard accepts. Rows for
// which guard returns ErrSkipRow are passed over; any other guard error
// stops the scan and is returned with the row.
func (s *Store) find(ctx context.Context, ref string, load loader, guard func(Located) error) (Located, error) {
	var firstErr error
	for _, c := range domain.Categories {
		_, rows, err := load(ctx, c.OrdersTable(), OrderHeader)
		if err != nil {
			log.Warn().Err(err).Str("table", c.OrdersTable()).Msg("order table unreadable during scan")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for i, r := range rows[1:] {
			if sheets.Cell(r, 0) != ref {
				continue
			}
			loc := Located{Record: recordFromCells(r), Category: c, Row: i + 2}
			if guard != nil {
				if err := guard(loc); errors.Is(err, ErrSkipRow) {
					continue
				} else if err != nil {
					return loc, err
				}
			}
			return loc, nil
		}
	}
	if firstErr != nil {
		return Located{}, firstErr
	}
	return Located{}, ErrOrderNotFound
}

func (s *Store) deleteAt(ctx context.Context, loc Located) error {
	title := loc.Category.OrdersTable()
	if title == "" {
		return ErrUnknownCategory
	}
	ws, err := s.Sheets.Worksheet(ctx, title)
	if err != nil {
		return fmt.Errorf("open %q: %w", title, err)
	}
	ref := loc.Record.Reference
	return ws.DeleteRow(ctx, loc.Row, func(cells []string) bool {
		return sheets.Cell(cells, 0) == ref
	})
}

// open returns the healed table and its rows. The common case (table exists
// with a full header) takes no lock; healing re-checks under the lock.
func (s *Store) open(ctx context.Context, title string, header []string) (sheets.Worksheet, [][]string, error) {
	ws, err := s.Sheets.Worksheet(ctx, title)
	if err == nil {
		rows, rerr := ws.Rows(ctx)
		if rerr != nil {
			return nil, nil, fmt.Errorf("read %q: %w", title, rerr)
		}
		if headerOK(rows, len(header)) {
			return ws, rows, nil
		}
	} else if !errors.Is(err, sheets.ErrWorksheetNotFound) {
		return nil, nil, fmt.Errorf("open %q: %w", title, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heal(ctx, title, header)
}

// heal must be called with s.mu held.
func (s *Store) heal(ctx context.Context, title string, header []string) (sheets.Worksheet, [][]string, error) {
	ws, err := s.Sheets.Worksheet(ctx, title)
	if errors.Is(err, sheets.ErrWorksheetNotFound) {
		log.Info().Str("table", title).Msg("creating missing table")
		ws, err = s.Sheets.AddWorksheet(ctx, title, len(header))
		if errors.Is(err, sheets.ErrWorksheetExists) {
			ws, err = s.Sheets.Worksheet(ctx, title)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %q: %w", title, err)
	}

	rows, err := ws.Rows(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read %q: %w", title, err)
	}
	if headerOK(rows, len(header)) {
		return ws, rows, nil
	}

	if len(rows) > 0 {
		log.Warn().Str("table", title).Int("header_cells", len(rows[0])).Msg("table header incomplete; clearing and re-heading")
		if err := ws.Clear(ctx); err != nil {
			return nil, nil, fmt.Errorf("clear %q: %w", title, err)
		}
	}
	if err := ws.AppendRow(ctx, header); err != nil {
		return nil, nil, fmt.Errorf("write header %q: %w", title, err)
	}
	h := append([]string(nil), header...)
	return ws, [][]string{h}, nil
}

func headerOK(rows [][]string, width int) bool {
	return len(rows) > 0 && len(rows[0]) >= width
}

func orderCells(o domain.Order) []string {
	return []string{
		o.Reference,
		o.CreatedAt.Format(domain.DateLayout),
		o.CreatedAt.Format(domain.TimeLayout),
		o.FullName,
		strconv.FormatInt(o.OwnerID, 10),
		string(o.Category),
		o.PickupDate.Format(domain.DateLayout),
		o.Price.StringFixed(2),
	}
}

func recordFromCells(r []string) domain.OrderRecord {
	return domain.OrderRecord{
		Reference:   sheets.Cell(r, 0),
		CreatedDate: sheets.Cell(r, 1),
		CreatedTime: sheets.Cell(r, 2),
		FullName:    sheets.Cell(r, 3),
		OwnerID:     sheets.Cell(r, 4),
		Category:    sheets.Cell(r, 5),
		PickupDate:  sheets.Cell(r, 6),
		Price:       sheets.Cell(r, 7),
	}
}

func containsID(rows [][]string, id domain.ChatID) bool {
	if len(rows) < 2 {
		return false
	}
	for _, r := range rows[1:] {
		if v, ok := parseID(sheets.Cell(r, 0)); ok && v == id {
			return true
		}
	}
	return false
}

func parseID(cell string) (domain.ChatID, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	return v, err == nil
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
