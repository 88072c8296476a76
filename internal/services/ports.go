package services

import (
	"context"

	"github.com/shopspring/decimal"

	"finance/internal/core"
	"finance/internal/notify"
)

// Gateway ports, satisfied by *api.Client.
type (
	MovementCreator interface {
		CreateMovement(ctx context.Context, m core.Movement) (core.Movement, error)
	}

	MovementGateway interface {
		MovementCreator
		UpdateMovement(ctx context.Context, m core.Movement) error
		DeleteMovement(ctx context.Context, id string) error
	}

	QueryGateway interface {
		FilterMovements(ctx context.Context, f core.Filter) (core.Invoice, error)
		MovementByID(ctx context.Context, id string) (core.Movement, error)
		Categories(ctx context.Context) ([]core.Category, error)
		Months(ctx context.Context) ([]core.Month, error)
		Years(ctx context.Context) ([]core.Year, error)
	}

	CatalogGateway interface {
		CreateCategory(ctx context.Context, description string) (core.Category, error)
		UpsertSavings(ctx context.Context, value decimal.Decimal) error
		ClearSavings(ctx context.Context) error
	}

	AuthGateway interface {
		Login(ctx context.Context, email, password string) (string, error)
		Logout(ctx context.Context) error
		ValidateToken(ctx context.Context) error
	}
)

// Notifier is the part of *notify.Channel the workflows use.
type Notifier interface {
	Add(n notify.Notification) string
	Replace(id string, n notify.Notification) string
	Remove(id string) bool
}
