package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finance/internal/api"
	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/notify"
)

var (
	ErrNoDrafts       = errors.New("no movements to sync")
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrInvalidIndex   = errors.New("draft index out of range")
	ErrNotReviewing   = errors.New("no drafts under review")
)

type SyncState int

const (
	SyncIdle SyncState = iota
	SyncGenerating
	SyncReviewing
	SyncSyncing
	SyncPartialFailure
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncGenerating:
		return "generating"
	case SyncReviewing:
		return "reviewing"
	case SyncSyncing:
		return "syncing"
	case SyncPartialFailure:
		return "partial_failure"
	default:
		return "unknown"
	}
}

// SyncWorkflowConfig holds configuration for the sync workflow
type SyncWorkflowConfig struct {
	// CompletionDelay is how long after a clean sync OnComplete fires (default: 1.5s)
	CompletionDelay time.Duration

	// Clock schedules OnComplete (default: wall clock)
	Clock notify.Clock

	// OnComplete is called once a sync finished without failures
	OnComplete func()

	// OnReport receives every finished sync, successful or not
	OnReport func(ctx context.Context, r SyncReport)
}

// DefaultSyncWorkflowConfig returns sensible defaults
func DefaultSyncWorkflowConfig() SyncWorkflowConfig {
	return SyncWorkflowConfig{
		CompletionDelay: 1500 * time.Millisecond,
		Clock:           notify.SystemClock(),
	}
}

// SyncFailure is one draft the server did not accept.
type SyncFailure struct {
	Index int
	Draft core.Movement
	Err   error
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	Total      int
	Succeeded  int
	Failed     int
	Aborted    bool
	Failures   []SyncFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// Attempted is the number of drafts submitted before the run ended.
func (r SyncReport) Attempted() int { return r.Succeeded + r.Failed }

// SyncWorkflow copies a period's movements into the next period: Generate
// derives drafts, Remove prunes them, Sync submits them one at a time.
type SyncWorkflow struct {
	gateway  MovementCreator
	cache    *cache.Store
	notifier Notifier
	config   SyncWorkflowConfig

	mu     sync.Mutex
	state  SyncState
	drafts []core.Movement
	timer  notify.Timer
}

func NewSyncWorkflow(gateway MovementCreator, store *cache.Store, notifier Notifier, config SyncWorkflowConfig) *SyncWorkflow {
	if config.Clock == nil {
		config.Clock = notify.SystemClock()
	}
	return &SyncWorkflow{
		gateway:  gateway,
		cache:    store,
		notifier: notifier,
		config:   config,
	}
}

func (w *SyncWorkflow) State() SyncState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Drafts returns a copy of the current drafts.
func (w *SyncWorkflow) Drafts() []core.Movement {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]core.Movement(nil), w.drafts...)
}

// Generate replaces the drafts with one per source movement, dated the first
// day of the following month. Categories are matched by description; a
// source whose category is not in categories becomes uncategorized. Amount
// and kind are copied as they are and the description is cleared.
func (w *SyncWorkflow) Generate(source []core.Movement, categories []core.Category) ([]core.Movement, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == SyncSyncing {
		return nil, ErrSyncInProgress
	}
	w.stopTimer()
	previous := w.state
	w.state = SyncGenerating

	byLabel := make(map[string]int, len(categories))
	for _, c := range categories {
		if _, dup := byLabel[c.Description]; !dup {
			byLabel[c.Description] = c.ID
		}
	}

	drafts := make([]core.Movement, 0, len(source))
	for i, m := range source {
		month, year, err := core.NextPeriod(m.Month, m.Year)
		if err != nil {
			w.state = previous
			return nil, fmt.Errorf("source movement %d: %w", i, err)
		}

		categoryID, ok := byLabel[m.CategoryDescription]
		if !ok {
			categoryID = core.UncategorizedID
		}

		drafts = append(drafts, core.Movement{
			Day:                 1,
			Month:               month,
			Year:                year,
			Kind:                m.Kind,
			CategoryID:          categoryID,
			CategoryDescription: categoryLabel(categories, categoryID),
			Amount:              m.Amount,
		})
	}

	w.drafts = drafts
	w.state = SyncReviewing
	slog.Debug("Sync drafts generated", "count", len(drafts))
	return append([]core.Movement(nil), drafts...), nil
}

func categoryLabel(categories []core.Category, id int) string {
	for _, c := range categories {
		if c.ID == id {
			return c.Description
		}
	}
	return ""
}

// Remove drops the draft at index. During a sync the submission already under
// way is unaffected; the removal shows in the drafts kept for review.
func (w *SyncWorkflow) Remove(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case SyncReviewing, SyncPartialFailure, SyncSyncing:
	default:
		return ErrNotReviewing
	}
	if index < 0 || index >= len(w.drafts) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	w.drafts = append(w.drafts[:index:index], w.drafts[index+1:]...)
	return nil
}

// Reset discards the drafts and cancels a pending completion signal.
func (w *SyncWorkflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopTimer()
	if w.state != SyncSyncing {
		w.state = SyncIdle
		w.drafts = nil
	}
}

// stopTimer cancels a completion signal left by an earlier run. Callers hold mu.
func (w *SyncWorkflow) stopTimer() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Sync submits the drafts sequentially; each create finishes before the next
// starts and a failed item does not stop the rest. Cancelling ctx stops the
// run between submissions and keeps the drafts for review.
func (w *SyncWorkflow) Sync(ctx context.Context) (SyncReport, error) {
	w.mu.Lock()
	switch w.state {
	case SyncSyncing:
		w.mu.Unlock()
		return SyncReport{}, ErrSyncInProgress
	case SyncReviewing, SyncPartialFailure:
	default:
		w.mu.Unlock()
		return SyncReport{}, ErrNotReviewing
	}
	if len(w.drafts) == 0 {
		w.state = SyncReviewing
		w.mu.Unlock()
		w.notify(notify.KindError, "Nada para sincronizar", "Nenhum movimento na lista.")
		return SyncReport{}, ErrNoDrafts
	}
	w.stopTimer()
	batch := append([]core.Movement(nil), w.drafts...)
	w.state = SyncSyncing
	w.mu.Unlock()

	report := SyncReport{Total: len(batch), StartedAt: w.config.Clock.Now()}
	slog.InfoContext(ctx, "Sync started", "total", report.Total)

	var (
		authErr error
		synced  = make(map[[2]int]bool)
	)
	for i, draft := range batch {
		if ctx.Err() != nil {
			report.Aborted = true
			break
		}

		if err := draft.Validate(); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, SyncFailure{Index: i, Draft: draft, Err: err})
			slog.WarnContext(ctx, "Sync item rejected", "index", i, "error", err)
			continue
		}
		if _, err := w.gateway.CreateMovement(ctx, draft); err != nil {
			if api.IsAuthError(err) {
				authErr = err
				report.Aborted = true
				break
			}
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				report.Aborted = true
				break
			}
			report.Failed++
			report.Failures = append(report.Failures, SyncFailure{Index: i, Draft: draft, Err: err})
			slog.WarnContext(ctx, "Sync item failed", "index", i, "error", err)
			continue
		}
		report.Succeeded++
		synced[[2]int{draft.Month, draft.Year}] = true
	}
	report.FinishedAt = w.config.Clock.Now()

	if w.cache != nil {
		for period := range synced {
			w.cache.Invalidate(cache.MovementsInPeriod(period[0], period[1]))
		}
	}

	err := w.finish(ctx, report, authErr)

	if w.config.OnReport != nil {
		w.config.OnReport(ctx, report)
	}
	return report, err
}

func (w *SyncWorkflow) finish(ctx context.Context, report SyncReport, authErr error) error {
	slog.InfoContext(ctx, "Sync finished",
		"total", report.Total,
		"synced", report.Succeeded,
		"failed", report.Failed,
		"aborted", report.Aborted)

	var (
		n   *notify.Notification
		err error
	)

	w.mu.Lock()
	switch {
	case authErr != nil:
		w.state = SyncReviewing
		err = authErr

	case report.Aborted:
		w.state = SyncReviewing
		n = &notify.Notification{Kind: notify.KindInfo, Title: "Sincronização interrompida",
			Description: fmt.Sprintf("%d de %d movimentos enviados.", report.Attempted(), report.Total)}
		err = ctx.Err()
		if err == nil {
			err = context.Canceled
		}

	case report.Failed == 0:
		w.drafts = nil
		w.state = SyncIdle
		n = &notify.Notification{Kind: notify.KindSuccess, Title: "Sucesso!",
			Description: fmt.Sprintf("%d movimentos sincronizados.", report.Succeeded)}
		if w.config.OnComplete != nil {
			w.timer = w.config.Clock.AfterFunc(w.config.CompletionDelay, w.config.OnComplete)
		}

	case report.Failed == report.Total:
		w.state = SyncPartialFailure
		n = &notify.Notification{Kind: notify.KindError, Title: "Erro ao sincronizar",
			Description: "Nenhum movimento foi sincronizado. Tente novamente."}
		err = fmt.Errorf("sync: all %d movements failed", report.Total)

	default:
		w.state = SyncPartialFailure
		n = &notify.Notification{Kind: notify.KindError, Title: "Sincronização parcial",
			Description: fmt.Sprintf("%d sincronizados, %d com erro.", report.Succeeded, report.Failed)}
		err = fmt.Errorf("sync: %d of %d movements failed", report.Failed, report.Total)
	}
	w.mu.Unlock()

	if n != nil && w.notifier != nil {
		w.notifier.Add(*n)
	}
	return err
}

func (w *SyncWorkflow) notify(kind notify.Kind, title, description string) {
	if w.notifier == nil {
		return
	}
	w.notifier.Add(notify.Notification{Kind: kind, Title: title, Description: description})
}
