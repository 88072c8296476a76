package sheets

import (
	"github.com/shopspring/decimal"

	"finance/internal/core"
)

// Header is the first row of an exported period.
var Header = []any{"Dia", "Mês", "Ano", "Tipo", "Categoria", "Descrição", "Valor"}

// Rows lays out an invoice as spreadsheet rows: the header, one row per
// movement in invoice order, then the total and savings lines. Amounts are
// written as numbers so the sheet can sum them.
func Rows(inv core.Invoice) [][]any {
	rows := make([][]any, 0, len(inv.Movements)+3)
	rows = append(rows, Header)
	for _, m := range inv.Movements {
		rows = append(rows, []any{
			m.Day,
			m.Month,
			m.Year,
			kindLabel(m.Kind),
			categoryCell(m),
			m.Description,
			number(m.Amount),
		})
	}
	rows = append(rows,
		[]any{"", "", "", "", "", "Total", number(inv.Total)},
		[]any{"", "", "", "", "", "Economia", number(inv.Savings)},
	)
	return rows
}

func kindLabel(k core.Kind) string {
	switch k {
	case core.KindIncome:
		return "Entrada"
	case core.KindExpense:
		return "Saída"
	default:
		return string(k)
	}
}

func categoryCell(m core.Movement) string {
	if m.CategoryDescription != "" {
		return m.CategoryDescription
	}
	if m.CategoryID == core.UncategorizedID {
		return "(Sem categoria)"
	}
	return ""
}

func number(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
