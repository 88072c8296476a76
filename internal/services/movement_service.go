package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finance/internal/api"
	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/notify"
)

// MovementService creates, edits and deletes single movements, reporting
// progress through the notifier.
type MovementService struct {
	gateway  MovementGateway
	cache    *cache.Store
	notifier Notifier
}

func NewMovementService(gateway MovementGateway, store *cache.Store, notifier Notifier) *MovementService {
	if store == nil {
		store = cache.New()
	}
	return &MovementService{gateway: gateway, cache: store, notifier: notifier}
}

// Create validates form and submits it. Validation failures never reach the
// gateway.
func (s *MovementService) Create(ctx context.Context, form MovementForm) (core.Movement, error) {
	m, err := s.validate(form)
	if err != nil {
		return core.Movement{}, err
	}

	loading := s.loading("Salvando...", "Aguarde enquanto salvamos o invoice.")
	created, err := s.gateway.CreateMovement(ctx, m)
	if err != nil {
		s.fail(ctx, loading, "Não foi possível criar o invoice. Tente novamente.", err)
		return core.Movement{}, fmt.Errorf("create movement: %w", err)
	}

	s.cache.Invalidate(cache.MovementsInPeriod(m.Month, m.Year))
	s.succeed(loading, "Invoice criado com sucesso.")
	slog.InfoContext(ctx, "Movement created",
		"movement_id", created.ID, "month", m.Month, "year", m.Year, "kind", m.Kind)
	return created, nil
}

// Update replaces movement id with form. The movement's cached entry is
// updated before the server answers; if the server rejects the change the
// movement lists and that entry go back to how they were.
func (s *MovementService) Update(ctx context.Context, id string, form MovementForm) (cache.TxResult, error) {
	if id == "" {
		return cache.TxResult{}, api.ErrMissingID
	}
	m, err := s.validate(form)
	if err != nil {
		return cache.TxResult{}, err
	}
	m.ID = id

	byID := cache.MovementKey(id)
	loading := s.loading("Salvando...", "Aguarde enquanto salvamos as alterações.")

	res := s.cache.Optimistic(ctx, cache.Mutation{
		Scope: cache.Any(cache.ByResource(cache.ResourceMovements), cache.Exact(byID)),
		Apply: func(st *cache.Store) {
			cache.Write(st, byID, func(old core.Movement, ok bool) core.Movement {
				next := m
				if ok && next.CategoryDescription == "" && old.CategoryID == next.CategoryID {
					next.CategoryDescription = old.CategoryDescription
				}
				return next
			})
		},
		Commit: func(ctx context.Context) error {
			return s.gateway.UpdateMovement(ctx, m)
		},
	})

	if !res.Committed() {
		slog.WarnContext(ctx, "Movement update rolled back",
			"movement_id", id, "restored", res.Restored, "error", res.Err)
		s.fail(ctx, loading, "Não foi possível atualizar o invoice. Tente novamente.", res.Err)
		return res, fmt.Errorf("update movement %s: %w", id, res.Err)
	}

	s.invalidate(m)
	s.succeed(loading, "Invoice atualizado com sucesso.")
	slog.InfoContext(ctx, "Movement updated", "movement_id", id)
	return res, nil
}

func (s *MovementService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return api.ErrMissingID
	}

	loading := s.loading("Excluindo...", "")
	if err := s.gateway.DeleteMovement(ctx, id); err != nil {
		s.fail(ctx, loading, "Não foi possível excluir o invoice. Tente novamente.", err)
		return fmt.Errorf("delete movement %s: %w", id, err)
	}

	s.invalidate(core.Movement{ID: id})
	s.succeed(loading, "Invoice excluído com sucesso.")
	slog.InfoContext(ctx, "Movement deleted", "movement_id", id)
	return nil
}

func (s *MovementService) validate(form MovementForm) (core.Movement, error) {
	m, err := form.Validate()
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			s.notify(notify.Notification{Kind: notify.KindError, Title: "Erro ao salvar", Description: ve.Message})
		}
		return core.Movement{}, err
	}
	return m, nil
}

// invalidate marks every movement list stale, and the by-id entry of m when
// it has an id.
func (s *MovementService) invalidate(m core.Movement) {
	match := cache.ByResource(cache.ResourceMovements)
	if m.ID != "" {
		match = cache.Any(match, cache.Exact(cache.MovementKey(m.ID)))
	}
	s.cache.Invalidate(match)
}

func (s *MovementService) loading(title, description string) string {
	if s.notifier == nil {
		return ""
	}
	return s.notifier.Add(notify.Notification{Kind: notify.KindLoading, Title: title, Description: description})
}

func (s *MovementService) succeed(loading, description string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Replace(loading, notify.Notification{Kind: notify.KindSuccess, Title: "Sucesso!", Description: description})
}

// fail swaps the loading notification for an error one. Auth errors only
// drop the loading notification; the unauthorized handler reports them.
func (s *MovementService) fail(ctx context.Context, loading, description string, err error) {
	slog.ErrorContext(ctx, "Movement operation failed", "error", err)
	if s.notifier == nil {
		return
	}
	if api.IsAuthError(err) {
		s.notifier.Remove(loading)
		return
	}
	s.notifier.Replace(loading, notify.Notification{Kind: notify.KindError, Title: "Erro ao salvar", Description: description})
}

func (s *MovementService) notify(n notify.Notification) {
	if s.notifier != nil {
		s.notifier.Add(n)
	}
}
