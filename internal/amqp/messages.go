package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finance/internal/notify"
	"finance/internal/services"
)

const (
	TypeNotification = "notification"
	TypeSyncReport   = "sync_report"
)

// EventMessage is the envelope relayed to the exchange. Exactly one payload
// is set, matching Type.
type EventMessage struct {
	Type         string               `json:"type"`
	Timestamp    time.Time            `json:"timestamp"`
	Notification *NotificationPayload `json:"notification,omitempty"`
	SyncReport   *SyncReportPayload   `json:"sync_report,omitempty"`
}

type NotificationPayload struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type SyncReportPayload struct {
	Total      int                  `json:"total"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	Aborted    bool                 `json:"aborted"`
	Failures   []SyncFailurePayload `json:"failures,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

type SyncFailurePayload struct {
	Index    int    `json:"index"`
	Date     string `json:"date"`
	Kind     string `json:"kind"`
	Category int    `json:"category_id"`
	Amount   string `json:"amount"`
	Error    string `json:"error"`
}

func NewNotificationMessage(n notify.Notification) *EventMessage {
	return &EventMessage{
		Type:      TypeNotification,
		Timestamp: time.Now(),
		Notification: &NotificationPayload{
			ID:          n.ID,
			Kind:        string(n.Kind),
			Title:       n.Title,
			Description: n.Description,
		},
	}
}

func NewSyncReportMessage(r services.SyncReport) *EventMessage {
	p := &SyncReportPayload{
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Aborted:    r.Aborted,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, f := range r.Failures {
		p.Failures = append(p.Failures, SyncFailurePayload{
			Index:    f.Index,
			Date:     f.Draft.Date().Format(time.DateOnly),
			Kind:     string(f.Draft.Kind),
			Category: f.Draft.CategoryID,
			Amount:   f.Draft.Amount.String(),
			Error:    errorText(f.Err),
		})
	}
	return &EventMessage{Type: TypeSyncReport, Timestamp: time.Now(), SyncReport: p}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes an envelope and checks its payload matches
// its type.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case TypeNotification:
		if msg.Notification == nil {
			return nil, fmt.Errorf("notification event without payload")
		}
	case TypeSyncReport:
		if msg.SyncReport == nil {
			return nil, fmt.Errorf("sync report event without payload")
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
