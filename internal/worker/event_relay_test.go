package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finance/internal/amqp"
	"finance/internal/notify"
	"finance/internal/services"
)

type fakePublisher struct {
	mu      sync.Mutex
	msgs    []*amqp.EventMessage
	err     error
	release chan struct{}
}

func (f *fakePublisher) Publish(_ context.Context, msg *amqp.EventMessage) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePublisher) published() []*amqp.EventMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*amqp.EventMessage(nil), f.msgs...)
}

func TestEventRelay_ForwardsAddedNotificationsAndReports(t *testing.T) {
	pub := &fakePublisher{}
	r := NewEventRelay(pub, 8)
	r.Start(context.Background())

	n := notify.Notification{ID: "n1", Kind: notify.KindSuccess, Title: "Sucesso!"}
	r.HandleNotification(notify.Event{Type: notify.EventAdded, Notification: n})
	r.HandleNotification(notify.Event{Type: notify.EventRemoved, Notification: n})
	r.HandleSyncReport(context.Background(), services.SyncReport{Total: 2, Succeeded: 2})
	r.Stop(time.Second)

	msgs := pub.published()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Type != amqp.TypeNotification || msgs[0].Notification.Title != "Sucesso!" {
		t.Errorf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].Type != amqp.TypeSyncReport || msgs[1].SyncReport.Succeeded != 2 {
		t.Errorf("unexpected second message %+v", msgs[1])
	}
}

func TestEventRelay_PublishErrorsDoNotStopRelay(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	r := NewEventRelay(pub, 4)
	r.Start(context.Background())

	for i := 0; i < 3; i++ {
		r.HandleSyncReport(context.Background(), services.SyncReport{Total: i})
	}
	r.Stop(time.Second)

	if got := len(pub.published()); got != 3 {
		t.Errorf("got %d publish attempts, want 3", got)
	}
}

func TestEventRelay_DropsWhenQueueFull(t *testing.T) {
	pub := &fakePublisher{release: make(chan struct{})}
	r := NewEventRelay(pub, 1)
	// Not started, so nothing drains the queue.
	r.HandleSyncReport(context.Background(), services.SyncReport{})
	r.HandleSyncReport(context.Background(), services.SyncReport{})
	r.HandleSyncReport(context.Background(), services.SyncReport{})

	if got := r.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	close(pub.release)
}

func TestEventRelay_IgnoresEventsAfterStop(t *testing.T) {
	pub := &fakePublisher{}
	r := NewEventRelay(pub, 4)
	r.Start(context.Background())
	r.Stop(time.Second)
	r.Stop(time.Second)

	r.HandleSyncReport(context.Background(), services.SyncReport{})
	if got := len(pub.published()); got != 0 {
		t.Errorf("got %d messages after stop, want 0", got)
	}
}

func TestEventRelay_StopWithoutStartReturnsAtOnce(t *testing.T) {
	pub := &fakePublisher{}
	r := NewEventRelay(pub, 4)
	r.HandleSyncReport(context.Background(), services.SyncReport{})

	begin := time.Now()
	r.Stop(5 * time.Second)
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("Stop took %v on a relay that never started", elapsed)
	}

	// Starting after Stop must not publish the stranded event.
	r.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	if got := len(pub.published()); got != 0 {
		t.Errorf("got %d messages, want 0", got)
	}
}
