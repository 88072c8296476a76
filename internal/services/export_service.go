package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"finance/internal/api"
	"finance/internal/core"
	"finance/internal/notify"
)

// InvoiceExporter is satisfied by the sheets adapters.
type InvoiceExporter interface {
	ExportInvoice(ctx context.Context, month, year int, inv core.Invoice) (string, error)
}

// ExportService copies a period's invoice to an external sheet.
type ExportService struct {
	queries  *Queries
	exporter InvoiceExporter
	notifier Notifier
}

func NewExportService(queries *Queries, exporter InvoiceExporter, notifier Notifier) *ExportService {
	return &ExportService{queries: queries, exporter: exporter, notifier: notifier}
}

// Export reads the invoice of month/year through the cache and writes it out.
func (s *ExportService) Export(ctx context.Context, month, year int) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}

	inv, err := s.queries.Invoice(ctx, core.Filter{Month: strconv.Itoa(month), Year: strconv.Itoa(year)})
	if err != nil {
		return "", fmt.Errorf("load invoice %d/%d: %w", month, year, err)
	}

	ref, err := s.exporter.ExportInvoice(ctx, month, year, inv)
	if err != nil {
		slog.ErrorContext(ctx, "Invoice export failed", "month", month, "year", year, "error", err)
		if !api.IsAuthError(err) {
			s.report(notify.KindError, "Erro ao exportar", "Não foi possível exportar o invoice. Tente novamente.")
		}
		return "", fmt.Errorf("export invoice %d/%d: %w", month, year, err)
	}

	s.report(notify.KindSuccess, "Sucesso!", fmt.Sprintf("%d movimentos exportados.", len(inv.Movements)))
	return ref, nil
}

func (s *ExportService) report(kind notify.Kind, title, description string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Add(notify.Notification{Kind: kind, Title: title, Description: description})
}
