package sheets

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRange_PadsShortRowsAndSkipsHeader(t *testing.T) {
	rows := [][]string{
		{"Menu 1", "Price", "Menu 2", "Price"},
		{"Soup", "100", "Tea"},
		{"", "", "Cake", "50"},
	}
	got := Range(rows, 2, 3, 4)
	want := [][]string{{"Tea", ""}, {"Cake", "50"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Range = %#v; want %#v", got, want)
	}
	if Range(rows, 5, 1, 2) != nil {
		t.Fatalf("expected nil for a start row past the end")
	}
	if Range(rows, 1, 3, 2) != nil {
		t.Fatalf("expected nil for an inverted column range")
	}
}

func TestCell(t *testing.T) {
	if Cell([]string{"a"}, 0) != "a" || Cell([]string{"a"}, 3) != "" || Cell(nil, -1) != "" {
		t.Fatalf("Cell bounds handling wrong")
	}
}

func TestMemory_WorksheetLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Worksheet(ctx, "ID"); !errors.Is(err, ErrWorksheetNotFound) {
		t.Fatalf("expected ErrWorksheetNotFound, got %v", err)
	}
	ws, err := m.AddWorksheet(ctx, "ID", 1)
	if err != nil {
		t.Fatalf("AddWorksheet: %v", err)
	}
	if _, err := m.AddWorksheet(ctx, "ID", 1); !errors.Is(err, ErrWorksheetExists) {
		t.Fatalf("expected ErrWorksheetExists, got %v", err)
	}

	for _, c := range []string{"Chat ID", "1", "2", "3"} {
		if err := ws.AppendRow(ctx, []string{c}); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}

	if err := ws.DeleteRow(ctx, 3, func(cells []string) bool { return cells[0] == "9" }); !errors.Is(err, ErrRowMoved) {
		t.Fatalf("expected ErrRowMoved, got %v", err)
	}
	if err := ws.DeleteRow(ctx, 3, func(cells []string) bool { return cells[0] == "2" }); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if err := ws.DeleteRow(ctx, 10, nil); !errors.Is(err, ErrRowOutOfRange) {
		t.Fatalf("expected ErrRowOutOfRange, got %v", err)
	}

	rows, _ := ws.Rows(ctx)
	want := [][]string{{"Chat ID"}, {"1"}, {"3"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %#v; want %#v", rows, want)
	}

	// Returned rows are copies.
	rows[0][0] = "mutated"
	if m.Snapshot("ID")[0][0] != "Chat ID" {
		t.Fatalf("Rows must not alias internal storage")
	}

	if err := ws.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := m.Snapshot("ID"); len(got) != 0 {
		t.Fatalf("expected empty worksheet after Clear, got %#v", got)
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	m := NewMemory()
	m.Seed("T", []string{"h"})
	ws, _ := m.Worksheet(context.Background(), "T")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ws.Rows(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := ws.AppendRow(ctx, []string{"x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
