package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

var errPublisherNotReady = errors.New("kafka outbox publisher is not initialized")

// OutboxEnvelope — тело сообщения в топике событий счетов.
type OutboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

type messageSender interface {
	Send(m Message) error
}

// OutboxPublisher отправляет сообщения outbox в один topic.
// Ключ сообщения — id счёта, поэтому события одного счёта
// попадают в одну партицию и читаются по порядку.
type OutboxPublisher struct {
	sender messageSender
	topic  string
}

// NewOutboxPublisher создаёт паблишер; пустой topic заменяется на TopicBillEvents.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicBillEvents
	}
	p := &OutboxPublisher{topic: topic}
	if producer != nil {
		p.sender = producer
	}
	return p
}

func (p *OutboxPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.sender == nil {
		return errPublisherNotReady
	}
	if !json.Valid(event.Payload) {
		return fmt.Errorf("outbox message %s: payload is not valid json", event.ID)
	}

	body, err := json.Marshal(OutboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       event.Payload,
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox envelope %s: %w", event.ID, err)
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	return p.sender.Send(Message{
		Topic: p.topic,
		Key:   key,
		Value: body,
		Headers: map[string]string{
			HeaderEventType:     event.EventType,
			HeaderAggregateType: event.AggregateType,
			HeaderContentType:   contentTypeJSON,
		},
	})
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)
