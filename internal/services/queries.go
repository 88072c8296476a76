package services

import (
	"context"
	"strconv"
	"time"

	"finance/internal/cache"
	"finance/internal/core"
)

// Option is a select entry as the forms show it.
type Option struct {
	Value string
	Label string
}

// Queries serves reads through the cache.
type Queries struct {
	gateway QueryGateway
	cache   *cache.Store
	now     func() time.Time
}

func NewQueries(gateway QueryGateway, store *cache.Store) *Queries {
	if store == nil {
		store = cache.New()
	}
	return &Queries{gateway: gateway, cache: store, now: time.Now}
}

// Invoice returns the invoice for f. An empty filter means the current month.
func (q *Queries) Invoice(ctx context.Context, f core.Filter) (core.Invoice, error) {
	f = core.DefaultFilter(f, q.now())
	return cache.Read(ctx, q.cache, cache.MovementsKey(f), func(ctx context.Context) (core.Invoice, error) {
		return q.gateway.FilterMovements(ctx, f)
	})
}

func (q *Queries) Movement(ctx context.Context, id string) (core.Movement, error) {
	return cache.Read(ctx, q.cache, cache.MovementKey(id), func(ctx context.Context) (core.Movement, error) {
		return q.gateway.MovementByID(ctx, id)
	})
}

func (q *Queries) Categories(ctx context.Context) ([]core.Category, error) {
	return cache.Read(ctx, q.cache, cache.CategoriesKey(), q.gateway.Categories)
}

// CategoryOptions lists the categories for a select, led by the NoSelection
// placeholder.
func (q *Queries) CategoryOptions(ctx context.Context) ([]Option, error) {
	categories, err := q.Categories(ctx)
	if err != nil {
		return nil, err
	}
	opts := make([]Option, 0, len(categories)+1)
	opts = append(opts, Option{Value: NoSelection, Label: "No select"})
	for _, c := range categories {
		opts = append(opts, Option{Value: strconv.Itoa(c.ID), Label: c.Description})
	}
	return opts, nil
}

func (q *Queries) Months(ctx context.Context) ([]core.Month, error) {
	return cache.Read(ctx, q.cache, cache.MonthsKey(), q.gateway.Months)
}

func (q *Queries) Years(ctx context.Context) ([]core.Year, error) {
	return cache.Read(ctx, q.cache, cache.YearsKey(), q.gateway.Years)
}
