package sheets

import (
	"context"

	"finance/internal/core"
)

// Ports for outbound adapters.
type (
	// InvoiceExporter appends the movements of one period to an external
	// store and returns a reference to what was written.
	InvoiceExporter interface {
		ExportInvoice(ctx context.Context, month, year int, inv core.Invoice) (ref string, err error)
	}
)
