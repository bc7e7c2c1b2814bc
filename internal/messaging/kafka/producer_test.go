package kafka

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

func sampleBill() domain.Bill {
	return domain.Bill{
		ID:         "01HQBILL",
		StaffID:    "staff-1",
		CustomerID: "customer-1",
		Details: []domain.BillDetail{
			{ProductID: "P1", Quantity: 2, UnitPriceMinor: 1000, TotalMinor: 2000},
			{ProductID: "P2", Quantity: 3, UnitPriceMinor: 500, TotalMinor: 1500},
		},
		DiscountMinor:        500,
		OriginalMinor:        3500,
		DiscountedTotalMinor: 3000,
		Version:              1,
		CreatedAt:            time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC),
	}
}

func headerMap(msg *sarama.ProducerMessage) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[string(h.Key)] = string(h.Value)
	}
	return out
}

func TestProducer_PublishJSON(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicBillEvents {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != "01HQBILL" {
			return errors.New("message must be keyed by bill id")
		}
		if headerMap(msg)[HeaderContentType] != contentTypeJSON {
			return errors.New("content-type header missing")
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var event BillEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return err
		}
		if event.BillID != "01HQBILL" || len(event.Items) != 2 {
			return errors.New("unexpected event body")
		}
		return nil
	})

	event := NewBillEvent(EventTypeBillCreated, sampleBill())
	producer := NewProducerFromSync(sync)
	require.NoError(t, producer.PublishJSON(TopicBillEvents, event.BillID, event))
	require.NoError(t, producer.Close())
}

func TestProducer_SendError(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerFromSync(sync)
	err := producer.Send(Message{Topic: TopicBillEvents, Key: "k", Value: []byte(`{}`)})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Contains(t, err.Error(), TopicBillEvents)
	require.NoError(t, producer.Close())
}

func TestProducer_PublishJSON_MarshalError(t *testing.T) {
	producer := NewProducerFromSync(mocks.NewSyncProducer(t, nil))

	err := producer.PublishJSON(TopicBillEvents, "k", map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}

func TestMessage_ToSaramaWithoutKey(t *testing.T) {
	msg := Message{Topic: "t", Value: []byte("v"), Headers: map[string]string{"a": "1"}}.toSarama()

	assert.Nil(t, msg.Key)
	assert.Equal(t, map[string]string{"a": "1"}, headerMap(msg))
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewBillEvent(t *testing.T) {
	bill := sampleBill()

	event := NewBillEvent(EventTypeBillCreated, bill)
	assert.Equal(t, EventTypeBillCreated, event.EventType)
	assert.Equal(t, bill.ID, event.BillID)
	assert.Equal(t, "BILL_20240315_103045", event.Number)
	assert.EqualValues(t, 3500, event.OriginalMinor)
	assert.EqualValues(t, 3000, event.DiscountedTotalMinor)
	require.Len(t, event.Items, 2)
	assert.EqualValues(t, 1500, event.Items[1].TotalMinor)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Second)

	assert.Nil(t, NewBillEvent(EventTypeBillDeleted, bill).Items, "deleted event carries no items")
}

func TestNewProducerConfig(t *testing.T) {
	cfg := NewProducerConfig()

	assert.True(t, cfg.Producer.Idempotent)
	assert.Equal(t, 1, cfg.Net.MaxOpenRequests)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.True(t, cfg.Producer.Return.Successes)
	require.NoError(t, cfg.Validate())
}
