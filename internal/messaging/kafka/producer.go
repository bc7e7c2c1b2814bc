package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const clientID = "shop-billing"

// Заголовки сообщений в топиках счетов.
const (
	HeaderEventType     = "event-type"
	HeaderAggregateType = "aggregate-type"
	HeaderContentType   = "content-type"

	contentTypeJSON = "application/json"
)

var sentMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shop_kafka_messages_total",
	Help: "Messages sent to Kafka grouped by topic and result.",
}, []string{"topic", "result"})

// Message — сообщение для отправки в Kafka.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

func (m Message) toSarama() *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic:     m.Topic,
		Value:     sarama.ByteEncoder(m.Value),
		Timestamp: time.Now().UTC(),
	}
	if m.Key != "" {
		msg.Key = sarama.StringEncoder(m.Key)
	}
	for k, v := range m.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return msg
}

// Producer — синхронный Kafka producer событий счетов.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// NewProducerConfig возвращает настройки идемпотентного sync-producer:
// подтверждение от всех ISR и один запрос в полёте на соединение.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// NewProducer подключается к брокерам.
func NewProducer(brokers []string) (*Producer, error) {
	sync, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducerFromSync(sync), nil
}

// NewProducerFromSync оборачивает готовый sarama.SyncProducer (в тестах — mocks).
func NewProducerFromSync(sync sarama.SyncProducer) *Producer {
	return &Producer{sync: sync, logger: log.WithField("component", "kafka-producer")}
}

// Send отправляет сообщение и ждёт подтверждения брокера.
func (p *Producer) Send(m Message) error {
	partition, offset, err := p.sync.SendMessage(m.toSarama())
	entry := p.logger.WithFields(log.Fields{"topic": m.Topic, "key": m.Key})
	if err != nil {
		sentMessages.WithLabelValues(m.Topic, "error").Inc()
		entry.WithError(err).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", m.Topic, err)
	}

	sentMessages.WithLabelValues(m.Topic, "ok").Inc()
	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("kafka message sent")
	return nil
}

// PublishJSON сериализует v в JSON и отправляет в topic.
func (p *Producer) PublishJSON(topic, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}
	return p.Send(Message{
		Topic:   topic,
		Key:     key,
		Value:   body,
		Headers: map[string]string{HeaderContentType: contentTypeJSON},
	})
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
