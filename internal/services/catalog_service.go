package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"finance/internal/api"
	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/notify"
)

// CatalogService manages categories and the savings value of the invoice.
type CatalogService struct {
	gateway  CatalogGateway
	cache    *cache.Store
	notifier Notifier
}

func NewCatalogService(gateway CatalogGateway, store *cache.Store, notifier Notifier) *CatalogService {
	if store == nil {
		store = cache.New()
	}
	return &CatalogService{gateway: gateway, cache: store, notifier: notifier}
}

func (s *CatalogService) CreateCategory(ctx context.Context, description string) (core.Category, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		s.report(notify.KindError, "Erro ao salvar", "Por favor, informe uma descrição.")
		return core.Category{}, api.ErrEmptyDescription
	}

	c, err := s.gateway.CreateCategory(ctx, description)
	if err != nil {
		s.failed(ctx, err, "Não foi possível criar a categoria. Tente novamente.")
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.cache.Invalidate(cache.ByResource(cache.ResourceCategories))
	s.report(notify.KindSuccess, "Sucesso!", "Categoria criada com sucesso.")
	slog.InfoContext(ctx, "Category created", "category_id", c.ID)
	return c, nil
}

// UpsertSavings sets the savings value. Invoices carry it, so every cached
// invoice goes stale.
func (s *CatalogService) UpsertSavings(ctx context.Context, value decimal.Decimal) error {
	if err := s.gateway.UpsertSavings(ctx, value); err != nil {
		s.failed(ctx, err, "Não foi possível salvar a economia. Tente novamente.")
		return fmt.Errorf("upsert savings: %w", err)
	}
	s.cache.Invalidate(cache.ByResource(cache.ResourceMovements))
	s.report(notify.KindSuccess, "Sucesso!", "Economia salva com sucesso.")
	return nil
}

func (s *CatalogService) ClearSavings(ctx context.Context) error {
	if err := s.gateway.ClearSavings(ctx); err != nil {
		s.failed(ctx, err, "Não foi possível remover a economia. Tente novamente.")
		return fmt.Errorf("clear savings: %w", err)
	}
	s.cache.Invalidate(cache.ByResource(cache.ResourceMovements))
	s.report(notify.KindSuccess, "Sucesso!", "Economia removida com sucesso.")
	return nil
}

func (s *CatalogService) failed(ctx context.Context, err error, description string) {
	slog.ErrorContext(ctx, "Catalog operation failed", "error", err)
	if api.IsAuthError(err) {
		return
	}
	s.report(notify.KindError, "Erro ao salvar", description)
}

func (s *CatalogService) report(kind notify.Kind, title, description string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Add(notify.Notification{Kind: kind, Title: title, Description: description})
}
