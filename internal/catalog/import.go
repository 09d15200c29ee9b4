package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/sheets"
)

// File is the YAML layout accepted by Import:
//
//	menus:
//	  - category: Menu 1
//	    items:
//	      - name: Borscht
//	        price: "120,50"
type File struct {
	Menus []Menu `yaml:"menus"`
}

// Menu is one category of a File.
type Menu struct {
	Category string `yaml:"category"`
	Items    []Item `yaml:"items"`
}

// Item is one entry of a Menu. Price is kept as text and goes through the
// same normalization as prices typed into the table.
type Item struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// Import replaces the content of the catalog table with the menus decoded
// from r. The table is created when missing. Unlike reads, a price that
// does not parse is an error here. It returns the number of items written.
func Import(ctx context.Context, ss sheets.Spreadsheet, table string, r io.Reader) (int, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, errors.New("catalog file is empty")
		}
		return 0, fmt.Errorf("decode catalog: %w", err)
	}

	cols := make([][]Item, len(domain.Categories))
	for _, m := range f.Menus {
		cat, ok := domain.ParseCategory(strings.TrimSpace(m.Category))
		if !ok {
			return 0, fmt.Errorf("unknown category %q", m.Category)
		}
		for _, it := range m.Items {
			if strings.TrimSpace(it.Name) == "" {
				return 0, fmt.Errorf("%s: item without a name", cat)
			}
			if _, err := parseStrict(it.Price); err != nil {
				return 0, fmt.Errorf("%s: item %q: invalid price %q", cat, it.Name, it.Price)
			}
		}
		cols[cat.Index()] = append(cols[cat.Index()], m.Items...)
	}

	rows := layout(cols)

	ws, err := ss.Worksheet(ctx, table)
	if errors.Is(err, sheets.ErrWorksheetNotFound) {
		ws, err = ss.AddWorksheet(ctx, table, 2*len(domain.Categories))
	}
	if err != nil {
		return 0, fmt.Errorf("open catalog %q: %w", table, err)
	}
	if err := ws.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear catalog %q: %w", table, err)
	}
	items := 0
	for i, row := range rows {
		if err := ws.AppendRow(ctx, row); err != nil {
			return items, fmt.Errorf("write catalog row %d: %w", i+1, err)
		}
		if i > 0 {
			items += countPairs(row)
		}
	}
	return items, nil
}

// layout builds the header and the side-by-side rows.
func layout(cols [][]Item) [][]string {
	header := make([]string, 0, 2*len(domain.Categories))
	height := 0
	for i, c := range domain.Categories {
		header = append(header, string(c), "Price")
		if len(cols[i]) > height {
			height = len(cols[i])
		}
	}
	rows := [][]string{header}
	for r := 0; r < height; r++ {
		row := make([]string, 2*len(domain.Categories))
		for i := range domain.Categories {
			if r < len(cols[i]) {
				row[2*i] = strings.TrimSpace(cols[i][r].Name)
				row[2*i+1] = strings.TrimSpace(cols[i][r].Price)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func countPairs(row []string) int {
	n := 0
	for i := 0; i+1 < len(row); i += 2 {
		if row[i] != "" {
			n++
		}
	}
	return n
}
