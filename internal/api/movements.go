package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"finance/internal/core"
)

var ErrMissingID = errors.New("movement id is required")

// FilterMovements returns the invoice for the filter. Empty fields are sent
// empty, the server treats them as "any".
func (c *Client) FilterMovements(ctx context.Context, f core.Filter) (core.Invoice, error) {
	q := url.Values{}
	q.Set("month", f.Month)
	q.Set("year", f.Year)
	q.Set("category", f.Category)

	var resp wireInvoice
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/movement/filter", query: q, out: &resp}); err != nil {
		return core.Invoice{}, err
	}

	inv := core.Invoice{
		Movements: make([]core.Movement, 0, len(resp.Movements)),
		Total:     resp.Total,
		Savings:   resp.Savings,
	}
	for _, m := range resp.Movements {
		inv.Movements = append(inv.Movements, m.toCore())
	}
	return inv, nil
}

func (c *Client) MovementByID(ctx context.Context, id string) (core.Movement, error) {
	if id == "" {
		return core.Movement{}, ErrMissingID
	}
	var resp wireMovement
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/movement/get-by-id/" + url.PathEscape(id), out: &resp}); err != nil {
		return core.Movement{}, err
	}
	m := resp.toCore()
	if m.ID == "" {
		m.ID = id
	}
	return m, nil
}

// CreateMovement returns the stored movement. When the server answers with
// an empty body the submitted movement is returned unchanged.
func (c *Client) CreateMovement(ctx context.Context, m core.Movement) (core.Movement, error) {
	var resp wireMovement
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/movement", body: newMovementBody(m), out: &resp}); err != nil {
		return core.Movement{}, err
	}
	if resp.ID != "" {
		m.ID = string(resp.ID)
	}
	return m, nil
}

// UpdateMovement fully replaces the movement with m.ID.
func (c *Client) UpdateMovement(ctx context.Context, m core.Movement) error {
	if m.ID == "" {
		return ErrMissingID
	}
	return c.do(ctx, request{method: http.MethodPatch, path: "/api/movement/" + url.PathEscape(m.ID), body: newMovementBody(m)})
}

func (c *Client) DeleteMovement(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/movement/" + url.PathEscape(id)})
}

func (c *Client) Months(ctx context.Context) ([]core.Month, error) {
	var resp []wireMonth
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/movement/months", out: &resp}); err != nil {
		return nil, err
	}
	out := make([]core.Month, 0, len(resp))
	for _, m := range resp {
		out = append(out, core.Month{ID: int(m.ID), Name: m.Mes})
	}
	return out, nil
}

func (c *Client) Years(ctx context.Context) ([]core.Year, error) {
	var resp []wireYear
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/movement/years", out: &resp}); err != nil {
		return nil, err
	}
	out := make([]core.Year, 0, len(resp))
	for _, y := range resp {
		out = append(out, core.Year{ID: int(y.ID), Year: int(y.Ano)})
	}
	return out, nil
}
