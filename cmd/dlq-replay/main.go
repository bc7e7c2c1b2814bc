// Команда dlq-replay перечитывает DLQ событий счетов и возвращает их в
// основной топик. По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
	"github.com/vladislavdragonenkov/shopbilling/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopbilling/internal/service/outbox"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	brokersEnv         = "SHOP_KAFKA_BROKERS"
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	eventType   string
	billID      string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// matches сообщает, проходит ли событие фильтры -event-type и -bill-id.
func (c config) matches(letter outbox.DeadLetter) bool {
	if c.eventType != "" && letter.EventType != c.eventType {
		return false
	}
	if c.billID != "" && letter.AggregateID != c.billID {
		return false
	}
	return true
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

// replayDeps — подключения к Kafka; publisher нужен только в режиме execute.
type replayDeps struct {
	client    offsetClient
	consumer  partitionConsumerSource
	publisher domain.OutboxPublisher
	closers   []func() error
}

func (d replayDeps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

var newReplayDeps = func(cfg config) (replayDeps, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return replayDeps{}, fmt.Errorf("create kafka client: %w", err)
	}
	deps := replayDeps{client: client, closers: []func() error{client.Close}}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		deps.close()
		return replayDeps{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	consumer := saramaConsumerAdapter{consumer: rawConsumer}
	deps.consumer = consumer
	deps.closers = append(deps.closers, consumer.Close)

	if !cfg.execute {
		return deps, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers)
	if err != nil {
		deps.close()
		return replayDeps{}, err
	}
	deps.publisher = kafka.NewOutboxPublisher(producer, cfg.targetTopic)
	deps.closers = append(deps.closers, producer.Close)
	return deps, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+brokersEnv+")")
	flag.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	flag.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicBillEvents, "target topic for replay")
	flag.StringVar(&cfg.eventType, "event-type", "", "replay only this event type, e.g. bill.created")
	flag.StringVar(&cfg.billID, "bill-id", "", "replay only events of this bill")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan/replay")
	flag.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv(brokersEnv)
	}
	cfg.brokers = parseBrokers(brokersRaw)
	cfg.eventType = strings.TrimSpace(cfg.eventType)
	cfg.billID = strings.TrimSpace(cfg.billID)

	var errs []error
	if len(cfg.brokers) == 0 {
		errs = append(errs, fmt.Errorf("kafka brokers are required (-brokers or %s)", brokersEnv))
	}
	if strings.TrimSpace(cfg.sourceTopic) == "" {
		errs = append(errs, errors.New("source-topic is required"))
	}
	if strings.TrimSpace(cfg.targetTopic) == "" {
		errs = append(errs, errors.New("target-topic is required"))
	}
	if cfg.limit <= 0 {
		errs = append(errs, errors.New("limit must be > 0"))
	}
	if cfg.idleTimeout <= 0 {
		errs = append(errs, errors.New("idle-timeout must be > 0"))
	}
	if err := errors.Join(errs...); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"event_type":   cfg.eventType,
		"bill_id":      cfg.billID,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
	}).Info("starting dlq replay")

	deps, err := newReplayDeps(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	r := &replayer{cfg: cfg, client: deps.client, consumer: deps.consumer, publisher: deps.publisher}
	stats, err := r.run(ctx)
	if err != nil {
		return err
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":      mode,
		"processed": stats.processed,
		"replayed":  stats.replayed,
		"skipped":   stats.skipped,
	}).Info("dlq replay finished")
	return nil
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

type replayer struct {
	cfg       config
	client    offsetClient
	consumer  partitionConsumerSource
	publisher domain.OutboxPublisher
}

func (r *replayer) run(ctx context.Context) (replayStats, error) {
	var total replayStats
	if r.client == nil || r.consumer == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if r.cfg.execute && r.publisher == nil {
		return total, errors.New("publisher is required in execute mode")
	}

	partitions, err := r.client.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", r.cfg.sourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		remaining := r.cfg.limit - total.processed
		if remaining <= 0 {
			break
		}
		stats, err := r.replayPartition(ctx, partition, remaining)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// offsetWindow возвращает диапазон [start, end) для чтения партиции.
func (r *replayer) offsetWindow(partition int32, limit int) (int64, int64, error) {
	oldest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}

	start := oldest
	if r.cfg.fromNewest {
		start = max(newest-int64(limit), oldest)
	}
	return start, newest, nil
}

func (r *replayer) replayPartition(ctx context.Context, partition int32, limit int) (replayStats, error) {
	var stats replayStats

	start, end, err := r.offsetWindow(partition, limit)
	if err != nil || end <= start {
		return stats, err
	}

	pc, err := r.consumer.ConsumePartition(r.cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case cerr := <-pc.Errors():
			if cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case <-idle.C:
			return stats, nil
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= end {
				return stats, nil
			}
			idle.Reset(r.cfg.idleTimeout)

			stats.processed++
			replayed, err := r.handle(msg)
			if err != nil {
				return stats, err
			}
			if replayed {
				stats.replayed++
			} else {
				stats.skipped++
			}
			if msg.Offset+1 >= end {
				return stats, nil
			}
		}
	}
	return stats, nil
}

// handle разбирает сообщение DLQ и в режиме execute публикует исходное
// событие. Нераспознанные и отфильтрованные сообщения пропускаются.
func (r *replayer) handle(msg *sarama.ConsumerMessage) (bool, error) {
	logger := log.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	letter, err := decodeDeadLetter(msg.Value)
	if err != nil {
		logger.WithError(err).Warn("skip unsupported dlq message")
		return false, nil
	}
	if !r.cfg.matches(letter) {
		return false, nil
	}

	event := domain.OutboxMessage{
		ID:            letter.OutboxID,
		AggregateType: letter.AggregateType,
		AggregateID:   letter.AggregateID,
		EventType:     letter.EventType,
		Payload:       letter.Payload,
	}
	logger = logger.WithFields(log.Fields{
		"bill_id":       event.AggregateID,
		"event_type":    event.EventType,
		"publish_error": letter.PublishError,
	})

	if !r.cfg.execute {
		logger.Info("dlq replay candidate")
		return true, nil
	}
	if err := r.publisher.Publish(event); err != nil {
		return false, fmt.Errorf("publish replay of outbox message %s: %w", event.ID, err)
	}
	logger.Info("dlq message replayed")
	return true, nil
}

// decodeDeadLetter разворачивает конверт топика и тело DLQ.
func decodeDeadLetter(raw []byte) (outbox.DeadLetter, error) {
	var envelope kafka.OutboxEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return outbox.DeadLetter{}, fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Payload) == 0 {
		return outbox.DeadLetter{}, errors.New("envelope has no payload")
	}

	var letter outbox.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return outbox.DeadLetter{}, fmt.Errorf("decode dead letter: %w", err)
	}
	if len(letter.Payload) == 0 || !json.Valid(letter.Payload) {
		return outbox.DeadLetter{}, errors.New("dead letter does not carry the original event payload")
	}

	letter.OutboxID = firstNonEmpty(letter.OutboxID, envelope.ID)
	letter.AggregateType = firstNonEmpty(letter.AggregateType, envelope.AggregateType)
	letter.AggregateID = firstNonEmpty(letter.AggregateID, envelope.AggregateID)
	letter.EventType = firstNonEmpty(letter.EventType, envelope.EventType)
	return letter, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
