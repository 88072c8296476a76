package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "entrada"
	KindExpense Kind = "saida"
)

// UncategorizedID marks a movement whose category could not be resolved.
const UncategorizedID = 0

type (
	// Kind is the direction of a movement as the API spells it.
	Kind string

	// Movement is a single income or expense transaction. ID is empty until
	// the server assigns one. Amount is signed: expenses are negative.
	Movement struct {
		ID                  string
		Day                 int
		Month               int
		Year                int
		Kind                Kind
		CategoryID          int
		CategoryDescription string
		Description         string
		Amount              decimal.Decimal
	}

	Category struct {
		ID          int
		Description string
	}

	// Invoice is the period-filtered projection of movements.
	Invoice struct {
		Movements []Movement
		Total     decimal.Decimal
		Savings   decimal.Decimal
	}

	Month struct {
		ID   int
		Name string
	}

	Year struct {
		ID   int
		Year int
	}

	// Filter selects an invoice. Empty fields are not applied.
	Filter struct {
		Month    string
		Year     string
		Category string
	}
)

var (
	ErrInvalidDay   = errors.New("invalid day")
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidYear  = errors.New("invalid year")
	ErrInvalidKind  = errors.New("invalid kind")
)

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind accepts the API spelling as well as the English names.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entrada", "income":
		return KindIncome, nil
	case "saida", "saída", "expense":
		return KindExpense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (m Movement) Validate() error {
	if m.Day < 1 || m.Day > 31 {
		return ErrInvalidDay
	}
	if m.Month < 1 || m.Month > 12 {
		return ErrInvalidMonth
	}
	if m.Year < 1 {
		return ErrInvalidYear
	}
	if !m.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

// Date returns the movement date in UTC.
func (m Movement) Date() time.Time {
	return time.Date(m.Year, time.Month(m.Month), m.Day, 0, 0, 0, 0, time.UTC)
}

// IsExpense reports whether the stored amount is a debit.
func (m Movement) IsExpense() bool {
	return m.Amount.IsNegative()
}

// SumAmounts returns the signed total of the movements.
func SumAmounts(movements []Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Amount)
	}
	return total
}

// NextPeriod advances month/year by one month, carrying into the year.
func NextPeriod(month, year int) (int, int, error) {
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	if month == 12 {
		return 1, year + 1, nil
	}
	return month + 1, year, nil
}

// DefaultFilter fills an entirely empty filter with the current month and year.
func DefaultFilter(f Filter, now time.Time) Filter {
	if f.Month == "" && f.Year == "" && f.Category == "" {
		f.Month = fmt.Sprintf("%d", int(now.Month()))
		f.Year = fmt.Sprintf("%d", now.Year())
	}
	return f
}
