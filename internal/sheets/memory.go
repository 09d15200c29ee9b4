package sheets

import (
	"context"
	"sync"
)

// Memory is an in-process Spreadsheet. Each worksheet is guarded by its own
// mutex; like the real store, separate calls are not atomic together.
type Memory struct {
	mu     sync.Mutex
	sheets map[string]*memSheet
}

// NewMemory returns an empty in-memory spreadsheet.
func NewMemory() *Memory {
	return &Memory{sheets: make(map[string]*memSheet)}
}

// Worksheet implements Spreadsheet.
func (m *Memory) Worksheet(_ context.Context, title string) (Worksheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.sheets[title]
	if !ok {
		return nil, ErrWorksheetNotFound
	}
	return ws, nil
}

// AddWorksheet implements Spreadsheet.
func (m *Memory) AddWorksheet(_ context.Context, title string, _ int) (Worksheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[title]; ok {
		return nil, ErrWorksheetExists
	}
	ws := &memSheet{title: title}
	m.sheets[title] = ws
	return ws, nil
}

// Seed replaces the rows of title, creating the worksheet when needed.
// Intended for tests and fixtures.
func (m *Memory) Seed(title string, rows ...[]string) {
	m.mu.Lock()
	ws, ok := m.sheets[title]
	if !ok {
		ws = &memSheet{title: title}
		m.sheets[title] = ws
	}
	m.mu.Unlock()

	ws.mu.Lock()
	ws.rows = copyRows(rows)
	ws.mu.Unlock()
}

// Drop removes a worksheet. Intended for tests.
func (m *Memory) Drop(title string) {
	m.mu.Lock()
	delete(m.sheets, title)
	m.mu.Unlock()
}

// Snapshot returns a copy of the rows of title, or nil when it is missing.
func (m *Memory) Snapshot(title string) [][]string {
	m.mu.Lock()
	ws, ok := m.sheets[title]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return copyRows(ws.rows)
}

type memSheet struct {
	title string
	mu    sync.Mutex
	rows  [][]string
}

func (s *memSheet) Title() string { return s.title }

func (s *memSheet) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRows(s.rows), nil
}

func (s *memSheet) AppendRow(ctx context.Context, cells []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.rows = append(s.rows, append([]string(nil), cells...))
	s.mu.Unlock()
	return nil
}

func (s *memSheet) DeleteRow(ctx context.Context, row int, verify func([]string) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 1 || row > len(s.rows) {
		return ErrRowOutOfRange
	}
	i := row - 1
	if verify != nil && !verify(append([]string(nil), s.rows[i]...)) {
		return ErrRowMoved
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	return nil
}

func (s *memSheet) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.rows = nil
	s.mu.Unlock()
	return nil
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
