// Package notify описывает доставку событий жизненного цикла задач.
// Доставка best-effort: ошибки логируются вызывающей стороной и не
// влияют на уже сохранённое состояние.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"taskMarket/internal/logger"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindBidPlaced      Kind = "bid.placed"
	KindBidAccepted    Kind = "bid.accepted"
	KindBidRejected    Kind = "bid.rejected"
	KindTaskCompleted  Kind = "task.completed"
	KindRatingReceived Kind = "rating.received"
)

type Event struct {
	ID          uuid.UUID      `json:"id"`
	Kind        Kind           `json:"kind"`
	RecipientID uuid.UUID      `json:"recipient_id"`
	TaskID      uuid.UUID      `json:"task_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func NewEvent(kind Kind, recipient, taskID uuid.UUID, payload map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		Kind:        kind,
		RecipientID: recipient,
		TaskID:      taskID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type NotifierFunc func(ctx context.Context, event Event) error

func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Nop глотает события
var Nop Notifier = NotifierFunc(func(context.Context, Event) error { return nil })

type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, event Event) error {
	logger.Info("Notify: Событие",
		zap.String("event_id", event.ID.String()),
		zap.String("kind", string(event.Kind)),
		zap.String("recipient_id", event.RecipientID.String()),
		zap.String("task_id", event.TaskID.String()),
		zap.Any("payload", event.Payload),
	)
	return nil
}

// Publisher - часть *nats.Conn, нужная для публикации
type Publisher interface {
	Publish(subject string, data []byte) error
}

type NATSNotifier struct {
	publisher Publisher
	prefix    string
}

func NewNATSNotifier(publisher Publisher, prefix string) *NATSNotifier {
	if prefix == "" {
		prefix = "marketplace.events"
	}
	return &NATSNotifier{publisher: publisher, prefix: prefix}
}

func (n *NATSNotifier) Subject(kind Kind) string {
	return n.prefix + "." + string(kind)
}

func (n *NATSNotifier) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("кодирование события: %w", err)
	}
	if err := n.publisher.Publish(n.Subject(event.Kind), data); err != nil {
		return fmt.Errorf("публикация %s: %w", event.Kind, err)
	}
	return nil
}

// Multi рассылает событие во все приёмники и собирает ошибки
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
