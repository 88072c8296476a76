package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"finance/internal/core"
)

// flexID accepts ids the server sends either as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// flexInt is an integer that may arrive quoted.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var id flexID
	if err := id.UnmarshalJSON(b); err != nil {
		return err
	}
	if id == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return fmt.Errorf("integer: %w", err)
	}
	*f = flexInt(n)
	return nil
}

type wireMovement struct {
	ID                 flexID          `json:"id"`
	Dia                int             `json:"dia"`
	Mes                int             `json:"mes"`
	Ano                int             `json:"ano"`
	Tipo               string          `json:"tipo"`
	Categoria          flexInt         `json:"categoria"`
	CategoriaDescricao string          `json:"categoriaDescricao"`
	Descricao          string          `json:"descricao"`
	Valor              decimal.Decimal `json:"valor"`
}

func (w wireMovement) toCore() core.Movement {
	return core.Movement{
		ID:                  string(w.ID),
		Day:                 w.Dia,
		Month:               w.Mes,
		Year:                w.Ano,
		Kind:                core.Kind(w.Tipo),
		CategoryID:          int(w.Categoria),
		CategoryDescription: w.CategoriaDescricao,
		Description:         w.Descricao,
		Amount:              w.Valor,
	}
}

// movementBody is the create/update payload.
type movementBody struct {
	Dia       int         `json:"dia"`
	Mes       int         `json:"mes"`
	Ano       int         `json:"ano"`
	Tipo      string      `json:"tipo"`
	Categoria int         `json:"categoria"`
	Descricao string      `json:"descricao"`
	Valor     json.Number `json:"valor"`
}

func newMovementBody(m core.Movement) movementBody {
	return movementBody{
		Dia:       m.Day,
		Mes:       m.Month,
		Ano:       m.Year,
		Tipo:      string(m.Kind),
		Categoria: m.CategoryID,
		Descricao: m.Description,
		Valor:     json.Number(m.Amount.String()),
	}
}

type wireInvoice struct {
	Movements []wireMovement  `json:"movements"`
	Total     decimal.Decimal `json:"total"`
	Savings   decimal.Decimal `json:"savings"`
}

type wireCategory struct {
	ID        flexInt `json:"id"`
	Descricao string  `json:"descricao"`
}

type wireMonth struct {
	ID  flexInt `json:"id"`
	Mes string  `json:"mes"`
}

type wireYear struct {
	ID  flexInt `json:"id"`
	Ano flexInt `json:"ano"`
}

type tokenResponse struct {
	Token string `json:"token"`
}
