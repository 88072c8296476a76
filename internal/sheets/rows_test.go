package sheets

import (
	"testing"

	"github.com/shopspring/decimal"

	"finance/internal/core"
)

func TestRows(t *testing.T) {
	inv := core.Invoice{
		Movements: []core.Movement{
			{Day: 5, Month: 3, Year: 2025, Kind: core.KindExpense, CategoryID: 4, CategoryDescription: "Casa", Description: "aluguel", Amount: decimal.RequireFromString("-1500.50")},
			{Day: 6, Month: 3, Year: 2025, Kind: core.KindIncome, Description: "salário", Amount: decimal.RequireFromString("5000")},
		},
		Total:   decimal.RequireFromString("3499.50"),
		Savings: decimal.RequireFromString("300"),
	}

	rows := Rows(inv)
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	if rows[0][0] != "Dia" || len(rows[0]) != 7 {
		t.Fatalf("unexpected header %v", rows[0])
	}

	first := rows[1]
	if first[3] != "Saída" || first[4] != "Casa" || first[6] != -1500.5 {
		t.Errorf("unexpected first row %v", first)
	}
	second := rows[2]
	if second[3] != "Entrada" || second[4] != "(Sem categoria)" {
		t.Errorf("unexpected second row %v", second)
	}
	if rows[3][5] != "Total" || rows[3][6] != 3499.5 {
		t.Errorf("unexpected total row %v", rows[3])
	}
	if rows[4][5] != "Economia" || rows[4][6] != 300.0 {
		t.Errorf("unexpected savings row %v", rows[4])
	}
}
