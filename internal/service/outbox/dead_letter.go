package outbox

import (
	"encoding/json"
	"time"
)

// DeadLetter — тело сообщения, которое worker отправляет в DLQ после
// исчерпания попыток. Payload содержит исходное событие без изменений.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}
