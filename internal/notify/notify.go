// Package notify is the session-wide list of short-lived status messages
// shown while workflows run.
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDuration is how long a non-loading notification stays listed.
const DefaultDuration = 3 * time.Second

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindLoading Kind = "loading"
	KindInfo    Kind = "info"
)

// Notification is a status message. Duration is ignored for loading
// notifications, which never expire on their own.
type Notification struct {
	ID          string
	Title       string
	Description string
	Kind        Kind
	Duration    time.Duration
	CreatedAt   time.Time
}

type EventType string

const (
	EventAdded   EventType = "added"
	EventRemoved EventType = "removed"
)

type Event struct {
	Type         EventType
	Notification Notification
}

// Timer is the part of *time.Timer the channel needs.
type Timer interface {
	Stop() bool
}

// Clock schedules expiry. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock is the wall clock.
func SystemClock() Clock { return systemClock{} }

type Option func(*Channel)

func WithClock(c Clock) Option {
	return func(ch *Channel) { ch.clock = c }
}

// WithDefaultDuration overrides DefaultDuration for notifications added
// without an explicit duration.
func WithDefaultDuration(d time.Duration) Option {
	return func(ch *Channel) {
		if d > 0 {
			ch.defaultDuration = d
		}
	}
}

// Channel is safe for concurrent use. Subscribers are called outside the
// channel's lock, in the order events happen.
type Channel struct {
	mu              sync.Mutex
	items           []Notification
	timers          map[string]Timer
	subscribers     map[int]func(Event)
	nextSub         int
	clock           Clock
	defaultDuration time.Duration
}

func New(opts ...Option) *Channel {
	ch := &Channel{
		timers:          make(map[string]Timer),
		subscribers:     make(map[int]func(Event)),
		clock:           SystemClock(),
		defaultDuration: DefaultDuration,
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// Add lists n under a fresh id and returns the id. Unless n is a loading
// notification it is removed automatically after its duration.
func (ch *Channel) Add(n Notification) string {
	n.ID = uuid.NewString()
	if n.Kind == "" {
		n.Kind = KindInfo
	}
	if n.Kind != KindLoading && n.Duration <= 0 {
		n.Duration = ch.defaultDuration
	}

	ch.mu.Lock()
	n.CreatedAt = ch.clock.Now()
	ch.items = append(ch.items, n)
	if n.Kind != KindLoading {
		id := n.ID
		ch.timers[id] = ch.clock.AfterFunc(n.Duration, func() { ch.expire(id) })
	}
	subs := ch.subscriberList()
	ch.mu.Unlock()

	slog.Debug("Notification added", "notification_id", n.ID, "notification_kind", n.Kind, "title", n.Title)
	emit(subs, Event{Type: EventAdded, Notification: n})
	return n.ID
}

func (ch *Channel) Success(title, description string) string {
	return ch.Add(Notification{Title: title, Description: description, Kind: KindSuccess})
}

func (ch *Channel) Error(title, description string) string {
	return ch.Add(Notification{Title: title, Description: description, Kind: KindError})
}

func (ch *Channel) Info(title, description string) string {
	return ch.Add(Notification{Title: title, Description: description, Kind: KindInfo})
}

// Loading adds a notification that stays until removed.
func (ch *Channel) Loading(title string) string {
	return ch.Add(Notification{Title: title, Kind: KindLoading})
}

// Replace removes id and adds n in its place, returning n's id.
func (ch *Channel) Replace(id string, n Notification) string {
	ch.Remove(id)
	return ch.Add(n)
}

// Remove deletes the notification with id and cancels its expiry. Unknown
// ids are ignored.
func (ch *Channel) Remove(id string) bool {
	ch.mu.Lock()
	if t, ok := ch.timers[id]; ok {
		t.Stop()
		delete(ch.timers, id)
	}
	n, ok := ch.take(id)
	subs := ch.subscriberList()
	ch.mu.Unlock()

	if ok {
		emit(subs, Event{Type: EventRemoved, Notification: n})
	}
	return ok
}

func (ch *Channel) expire(id string) {
	ch.mu.Lock()
	delete(ch.timers, id)
	n, ok := ch.take(id)
	subs := ch.subscriberList()
	ch.mu.Unlock()

	if ok {
		emit(subs, Event{Type: EventRemoved, Notification: n})
	}
}

// take removes id from the list. Caller holds mu.
func (ch *Channel) take(id string) (Notification, bool) {
	for i, n := range ch.items {
		if n.ID == id {
			ch.items = append(ch.items[:i:i], ch.items[i+1:]...)
			return n, true
		}
	}
	return Notification{}, false
}

// List returns the current notifications, oldest first.
func (ch *Channel) List() []Notification {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return append([]Notification(nil), ch.items...)
}

// Subscribe registers fn for add and remove events and returns a function
// that unregisters it.
func (ch *Channel) Subscribe(fn func(Event)) func() {
	ch.mu.Lock()
	id := ch.nextSub
	ch.nextSub++
	ch.subscribers[id] = fn
	ch.mu.Unlock()

	return func() {
		ch.mu.Lock()
		delete(ch.subscribers, id)
		ch.mu.Unlock()
	}
}

func (ch *Channel) subscriberList() []func(Event) {
	if len(ch.subscribers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(ch.subscribers))
	for id := range ch.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(Event), len(ids))
	for i, id := range ids {
		out[i] = ch.subscribers[id]
	}
	return out
}

func emit(subs []func(Event), e Event) {
	for _, fn := range subs {
		fn(e)
	}
}
