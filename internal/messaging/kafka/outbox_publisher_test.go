package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

func outboxMessage(id, billID string, eventType EventType) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: AggregateBill,
		AggregateID:   billID,
		EventType:     string(eventType),
		Payload:       []byte(`{"bill_id":"` + billID + `"}`),
	}
}

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		headers := headerMap(msg)
		if headers[HeaderEventType] != string(EventTypeBillCreated) || headers[HeaderAggregateType] != AggregateBill {
			return errors.New("event headers missing")
		}
		key, _ := msg.Key.Encode()
		if string(key) != "bill-123" {
			return errors.New("unexpected key " + string(key))
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var envelope OutboxEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return err
		}
		if envelope.ID != "outbox-1" || string(envelope.Payload) != `{"bill_id":"bill-123"}` || envelope.PublishedAt.IsZero() {
			return errors.New("unexpected envelope")
		}
		return nil
	})

	publisher := NewOutboxPublisher(NewProducerFromSync(sync), "")
	require.NoError(t, publisher.Publish(outboxMessage("outbox-1", "bill-123", EventTypeBillCreated)))
	require.NoError(t, sync.Close())
}

func TestOutboxPublisher_KeyFallsBackToMessageID(t *testing.T) {
	t.Parallel()

	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "outbox-5" {
			return errors.New("unexpected key " + string(key))
		}
		return nil
	})

	publisher := NewOutboxPublisher(NewProducerFromSync(sync), TopicBillEvents)
	require.NoError(t, publisher.Publish(outboxMessage("outbox-5", "", EventTypeBillDeleted)))
	require.NoError(t, sync.Close())
}

func TestOutboxPublisher_Errors(t *testing.T) {
	t.Parallel()

	t.Run("producer failure", func(t *testing.T) {
		t.Parallel()
		sync := mocks.NewSyncProducer(t, nil)
		sync.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		err := NewOutboxPublisher(NewProducerFromSync(sync), TopicBillEvents).
			Publish(outboxMessage("outbox-2", "bill-234", EventTypeBillUpdated))
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		require.NoError(t, sync.Close())
	})

	t.Run("invalid payload", func(t *testing.T) {
		t.Parallel()
		sync := mocks.NewSyncProducer(t, nil)

		err := NewOutboxPublisher(NewProducerFromSync(sync), TopicBillEvents).
			Publish(domain.OutboxMessage{ID: "outbox-4", Payload: []byte("not json")})
		assert.ErrorContains(t, err, "not valid json")
		require.NoError(t, sync.Close())
	})

	t.Run("nil producer", func(t *testing.T) {
		t.Parallel()
		err := NewOutboxPublisher(nil, TopicBillEvents).Publish(outboxMessage("outbox-3", "b", EventTypeBillCreated))
		assert.ErrorIs(t, err, errPublisherNotReady)
	})
}
