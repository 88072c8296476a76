package memory

import (
	"context"
	"fmt"
	"sync"

	"finance/internal/core"
	"finance/internal/sheets"
)

var _ sheets.InvoiceExporter = (*Store)(nil)

// Store keeps exported invoices in memory, one sheet per year.
type Store struct {
	mu     sync.Mutex
	sheets map[int][][]any
}

func New() *Store {
	return &Store{sheets: make(map[int][][]any)}
}

// ExportInvoice appends the invoice rows to the year's sheet and returns a
// synthetic range reference.
func (s *Store) ExportInvoice(_ context.Context, month, year int, inv core.Invoice) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.sheets[year]
	if len(rows) > 0 {
		rows = append(rows, nil)
	}
	first := len(rows) + 1
	rows = append(rows, sheets.Rows(inv)...)
	s.sheets[year] = rows

	return fmt.Sprintf("mem:%d!%d:%d", year, first, len(rows)), nil
}

// Rows returns a copy of the year's sheet. Separator rows are nil.
func (s *Store) Rows(year int) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.sheets[year]...)
}
