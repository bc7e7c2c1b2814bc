package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
	"github.com/vladislavdragonenkov/shopbilling/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopbilling/internal/service/outbox"
)

// newKafkaProducer подменяется в тестах.
var newKafkaProducer = kafka.NewProducer

// initKafkaProducer подключается к брокерам из списка через запятую.
// Пустой список отключает Kafka и возвращает nil, nil. Ошибка подключения
// логируется: сервис продолжает работу с публикацией outbox в лог.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := newKafkaProducer(brokerList)
	if err != nil {
		logger.WithError(err).WithField("brokers", brokerList).Warn("kafka is unavailable, outbox falls back to log publisher")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// newOutboxPublishers выбирает, куда outbox worker отправляет события.
// Без Kafka события пишутся в лог и DLQ не используется.
func newOutboxPublishers(cfg Config, producer *kafka.Producer, logger *log.Entry) (publisher, dlq domain.OutboxPublisher) {
	if producer == nil {
		return outbox.NewLogPublisher(logger.WithField("layer", "outbox-log")), nil
	}
	return kafka.NewOutboxPublisher(producer, cfg.KafkaTopic), kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)
}

func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
