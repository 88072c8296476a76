package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"finance/internal/core"
)

// NoSelection is the category option meaning "nothing chosen".
const NoSelection = "empty"

var ErrValidation = errors.New("validation failed")

// ValidationError is a form problem found before any network call. Message
// is shown to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MovementForm is the raw create/edit input. Category holds a category id or
// NoSelection; Amount is the masked amount text.
type MovementForm struct {
	Date        time.Time
	Category    string
	Kind        string
	Amount      string
	Description string
}

// Validate checks, in order, date, category, kind and amount, stopping at the
// first problem. The returned movement's amount carries the sign of the
// selected kind.
func (f MovementForm) Validate() (core.Movement, error) {
	if f.Date.IsZero() {
		return core.Movement{}, &ValidationError{Field: "date", Message: "Por favor, selecione uma data."}
	}

	category := strings.TrimSpace(f.Category)
	categoryID, err := strconv.Atoi(category)
	if category == "" || category == NoSelection || err != nil || categoryID <= 0 {
		return core.Movement{}, &ValidationError{Field: "category", Message: "Por favor, selecione uma categoria."}
	}

	kind, err := core.ParseKind(f.Kind)
	if err != nil {
		return core.Movement{}, &ValidationError{Field: "kind", Message: "Por favor, selecione o tipo (Entrada/Saída)."}
	}

	amount, err := core.ParseAmount(f.Amount)
	if err != nil || !amount.IsPositive() {
		return core.Movement{}, &ValidationError{Field: "amount", Message: "Por favor, informe um valor válido."}
	}

	return core.Movement{
		Day:         f.Date.Day(),
		Month:       int(f.Date.Month()),
		Year:        f.Date.Year(),
		Kind:        kind,
		CategoryID:  categoryID,
		Description: strings.TrimSpace(f.Description),
		Amount:      core.SignedAmount(amount, kind),
	}, nil
}

// FormFromMovement pre-fills an edit form: the amount is shown unsigned in
// pt-BR notation and the kind is the stored one.
func FormFromMovement(m core.Movement) MovementForm {
	category := NoSelection
	if m.CategoryID != core.UncategorizedID {
		category = strconv.Itoa(m.CategoryID)
	}
	return MovementForm{
		Date:        m.Date(),
		Category:    category,
		Kind:        string(m.Kind),
		Amount:      core.FormatAmount(m.Amount.Abs()),
		Description: m.Description,
	}
}
