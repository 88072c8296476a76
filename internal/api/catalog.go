package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"finance/internal/core"
)

var ErrEmptyDescription = errors.New("category description is required")

func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	var resp []wireCategory
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/category/get-all", out: &resp}); err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(resp))
	for _, cat := range resp {
		out = append(out, core.Category{ID: int(cat.ID), Description: cat.Descricao})
	}
	return out, nil
}

// CreateCategory does not check for an existing category with the same
// description; uniqueness is left to the server.
func (c *Client) CreateCategory(ctx context.Context, description string) (core.Category, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return core.Category{}, ErrEmptyDescription
	}

	body := map[string]string{"description": description}
	var resp wireCategory
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/category/create", body: body, out: &resp}); err != nil {
		return core.Category{}, err
	}

	cat := core.Category{ID: int(resp.ID), Description: resp.Descricao}
	if cat.Description == "" {
		cat.Description = description
	}
	return cat, nil
}

// UpsertSavings sets the savings value of the current period.
func (c *Client) UpsertSavings(ctx context.Context, value decimal.Decimal) error {
	body := map[string]json.Number{"value": json.Number(value.String())}
	return c.do(ctx, request{method: http.MethodPut, path: "/api/savings", body: body})
}

func (c *Client) ClearSavings(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/savings"})
}
