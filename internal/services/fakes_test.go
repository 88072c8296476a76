package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finance/internal/api"
	"finance/internal/core"
	"finance/internal/notify"
)

var errServer = errors.New("server error")

// fakeGateway records calls in order and fails the creates whose index is in
// failCreate.
type fakeGateway struct {
	mu         sync.Mutex
	events     []string
	creates    []core.Movement
	updates    []core.Movement
	deletes    []string
	failCreate map[int]bool
	createErr  error
	updateErr  error
	deleteErr  error
	inFlight   int
	overlapped bool
	onCreate   func(i int)

	invoice    core.Invoice
	invoiceErr error
	movement   core.Movement
	categories []core.Category
	months     []core.Month
	years      []core.Year
	filters    []core.Filter
	reads      int

	savings      []decimal.Decimal
	savingsClear int
	newCategory  []string
}

func (g *fakeGateway) CreateMovement(ctx context.Context, m core.Movement) (core.Movement, error) {
	g.mu.Lock()
	i := len(g.creates)
	g.inFlight++
	if g.inFlight > 1 {
		g.overlapped = true
	}
	g.events = append(g.events, fmt.Sprintf("start:%d", i))
	g.creates = append(g.creates, m)
	hook := g.onCreate
	g.mu.Unlock()

	if hook != nil {
		hook(i)
	}
	time.Sleep(time.Millisecond)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight--
	g.events = append(g.events, fmt.Sprintf("end:%d", i))
	if g.createErr != nil {
		return core.Movement{}, g.createErr
	}
	if g.failCreate[i] {
		return core.Movement{}, errServer
	}
	m.ID = fmt.Sprintf("id-%d", i)
	return m, nil
}

func (g *fakeGateway) UpdateMovement(ctx context.Context, m core.Movement) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, m)
	return g.updateErr
}

func (g *fakeGateway) DeleteMovement(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes = append(g.deletes, id)
	return g.deleteErr
}

func (g *fakeGateway) FilterMovements(ctx context.Context, f core.Filter) (core.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads++
	g.filters = append(g.filters, f)
	return g.invoice, g.invoiceErr
}

func (g *fakeGateway) MovementByID(ctx context.Context, id string) (core.Movement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads++
	m := g.movement
	m.ID = id
	return m, nil
}

func (g *fakeGateway) Categories(ctx context.Context) ([]core.Category, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads++
	return g.categories, nil
}

func (g *fakeGateway) Months(ctx context.Context) ([]core.Month, error) {
	return g.months, nil
}

func (g *fakeGateway) Years(ctx context.Context) ([]core.Year, error) {
	return g.years, nil
}

func (g *fakeGateway) CreateCategory(ctx context.Context, description string) (core.Category, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.newCategory = append(g.newCategory, description)
	return core.Category{ID: 99, Description: description}, nil
}

func (g *fakeGateway) UpsertSavings(ctx context.Context, value decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.savings = append(g.savings, value)
	return nil
}

func (g *fakeGateway) ClearSavings(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.savingsClear++
	return nil
}

func (g *fakeGateway) createCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.creates)
}

var errAuth = &api.AuthError{Method: "POST", Path: "/api/movement", StatusCode: 401}

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	c       *manualClock
	at      time.Time
	f       func()
	stopped bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) notify.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.at.After(c.now) {
			t.stopped = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

func kinds(ch *notify.Channel) []notify.Kind {
	var out []notify.Kind
	for _, n := range ch.List() {
		out = append(out, n.Kind)
	}
	return out
}

func lastNotification(ch *notify.Channel) notify.Notification {
	list := ch.List()
	if len(list) == 0 {
		return notify.Notification{}
	}
	return list[len(list)-1]
}
