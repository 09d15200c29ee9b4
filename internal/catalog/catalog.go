// Package catalog loads the three menus from the catalog table and keeps
// the most recent successful load in memory.
//
// The catalog table holds the menus side by side, one (name, price) column
// pair per category: columns A:B for Menu 1, C:D for Menu 2 and E:F for
// Menu 3, with a header in row 1.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/sheets"
	"github.com/tbourn/go-order-bot/internal/store"
)

// Catalog is a refreshable cache of the three menus. The zero value is not
// usable; construct with New.
type Catalog struct {
	Sheets sheets.Spreadsheet
	// Table is the catalog worksheet title.
	Table string

	mu       sync.RWMutex
	menus    map[domain.Category][]domain.CatalogItem
	loadedAt time.Time
}

// New returns an empty catalog reading from store.CatalogTable.
func New(ss sheets.Spreadsheet) *Catalog {
	return &Catalog{
		Sheets: ss,
		Table:  store.CatalogTable,
		menus:  make(map[domain.Category][]domain.CatalogItem),
	}
}

// Refresh reloads the menus and reports success. On failure the previous
// lists are kept and the error is logged.
func (c *Catalog) Refresh(ctx context.Context) bool {
	if err := c.Reload(ctx); err != nil {
		log.Error().Err(err).Str("table", c.Table).Msg("catalog refresh failed")
		return false
	}
	return true
}

// Reload reads the catalog table and replaces all three lists at once.
func (c *Catalog) Reload(ctx context.Context) error {
	ctx, span := otel.Tracer("catalog/Catalog").Start(ctx, "Reload")
	defer span.End()

	ws, err := c.Sheets.Worksheet(ctx, c.Table)
	if err != nil {
		return fmt.Errorf("open catalog %q: %w", c.Table, err)
	}
	rows, err := ws.Rows(ctx)
	if err != nil {
		return fmt.Errorf("read catalog %q: %w", c.Table, err)
	}

	next := make(map[domain.Category][]domain.CatalogItem, len(domain.Categories))
	for i, cat := range domain.Categories {
		next[cat] = parseColumns(sheets.Range(rows, 2, 2*i+1, 2*i+2))
	}

	c.mu.Lock()
	c.menus = next
	c.loadedAt = time.Now()
	c.mu.Unlock()

	log.Debug().
		Int("menu1", len(next[domain.CategoryMenu1])).
		Int("menu2", len(next[domain.CategoryMenu2])).
		Int("menu3", len(next[domain.CategoryMenu3])).
		Msg("catalog refreshed")
	return nil
}

// Items returns a copy of the current list for cat.
func (c *Catalog) Items(cat domain.Category) []domain.CatalogItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.menus[cat]
	out := make([]domain.CatalogItem, len(src))
	copy(out, src)
	return out
}

// LoadedAt is the time of the last successful load, zero if none.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// ParsePrice converts price text to a decimal. Whitespace is removed and a
// decimal comma becomes a point; anything unparsable yields zero.
func ParsePrice(text string) decimal.Decimal {
	d, err := parseStrict(text)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseStrict(text string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		if r == ',' {
			return '.'
		}
		return r
	}, text)
	return decimal.NewFromString(cleaned)
}

// parseColumns turns (name, price) pairs into items, dropping pairs with an
// empty name or price.
func parseColumns(pairs [][]string) []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, len(pairs))
	for _, p := range pairs {
		name, price := sheets.Cell(p, 0), sheets.Cell(p, 1)
		if name == "" || price == "" {
			continue
		}
		out = append(out, domain.CatalogItem{Name: name, Price: ParsePrice(price)})
	}
	return out
}
