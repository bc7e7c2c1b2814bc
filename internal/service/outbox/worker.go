// Package outbox доставляет события счетов из transactional outbox во внешний
// брокер и чистит обработанные записи.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	defaultMaxRetryDelay  = 5 * time.Second
)

var (
	deliveryResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_outbox_deliveries_total",
		Help: "Outbox deliveries grouped by event type and outcome.",
	}, []string{"event_type", "outcome"})
	publishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shop_outbox_publish_duration_seconds",
		Help:    "Duration of a single publish call to the broker.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	pendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_outbox_pending_records",
		Help: "Current number of pending records in transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
)

// outcome — итог доставки одного сообщения.
type outcome string

const (
	outcomeSent       outcome = "sent"
	outcomeDeadLetter outcome = "dead_letter"
	outcomeFailed     outcome = "failed"
	outcomeSkipped    outcome = "skipped"
)

// WorkerOptions задаёт параметры доставки.
type WorkerOptions struct {
	Logger         *log.Entry
	DLQPublisher   domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	MaxRetryDelay  time.Duration
}

func (o *WorkerOptions) normalize() {
	if o.Logger == nil {
		o.Logger = log.WithField("component", "outbox-worker")
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.RetryBaseDelay < 0 {
		o.RetryBaseDelay = 0
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = defaultMaxRetryDelay
	}
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

func WithLogger(logger *log.Entry) Option {
	return func(o *WorkerOptions) { o.Logger = logger }
}

// WithDLQPublisher включает отправку в DLQ после исчерпания попыток.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(o *WorkerOptions) { o.DLQPublisher = publisher }
}

func WithPollInterval(interval time.Duration) Option {
	return func(o *WorkerOptions) { o.PollInterval = interval }
}

func WithBatchSize(batchSize int) Option {
	return func(o *WorkerOptions) { o.BatchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации одного сообщения.
func WithMaxAttempts(maxAttempts int) Option {
	return func(o *WorkerOptions) { o.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт первую паузу между попытками; дальше она удваивается.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(o *WorkerOptions) { o.RetryBaseDelay = delay }
}

// WithMaxRetryDelay ограничивает паузу между попытками сверху.
func WithMaxRetryDelay(delay time.Duration) Option {
	return func(o *WorkerOptions) { o.MaxRetryDelay = delay }
}

// Worker вычитывает pending-сообщения outbox в порядке записи и публикует их.
// Сообщение, которое не удалось отправить за MaxAttempts попыток, уходит
// в DLQ (если он задан) и помечается failed, чтобы не блокировать очередь.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	opts      WorkerOptions
	logger    *log.Entry
}

// NewWorker создаёт воркер доставки.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
		MaxRetryDelay:  defaultMaxRetryDelay,
	}
	for _, option := range options {
		option(&opts)
	}
	opts.normalize()

	return &Worker{repo: repo, publisher: publisher, opts: opts, logger: opts.Logger}
}

// Run опрашивает outbox до отмены ctx. Полный батч читается следующим
// сразу, без ожидания интервала.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := w.opts.PollInterval
		if w.ProcessOnce(ctx) == w.opts.BatchSize {
			next = 0
		}
		timer.Reset(next)
	}
}

// ProcessOnce обрабатывает один батч и возвращает число отправленных сообщений.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	defer w.refreshBacklogMetrics(ctx)

	events, err := w.repo.PullPending(ctx, w.opts.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return 0
	}

	sent := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		result := w.deliver(ctx, event)
		deliveryResults.WithLabelValues(event.EventType, string(result)).Inc()
		if result == outcomeSent {
			sent++
		}
	}
	return sent
}

func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) outcome {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"bill_id":    event.AggregateID,
		"event_type": event.EventType,
	})

	publishErr := w.publishWithRetry(ctx, event)
	if publishErr == nil {
		if err := w.repo.MarkSent(ctx, event.ID); err != nil {
			entry.WithError(err).Warn("failed to mark outbox message as sent")
			return outcomeSkipped
		}
		entry.Debug("outbox message published")
		return outcomeSent
	}
	if ctx.Err() != nil {
		// Остановка: сообщение остаётся pending до следующего запуска.
		return outcomeSkipped
	}

	entry.WithError(publishErr).Error("outbox publish failed after retries")
	result := outcomeFailed
	if w.opts.DLQPublisher != nil {
		if err := w.publishToDLQ(event, publishErr); err != nil {
			entry.WithError(err).Warn("failed to publish to DLQ")
		} else {
			result = outcomeDeadLetter
		}
	}
	if err := w.repo.MarkFailed(ctx, event.ID); err != nil {
		entry.WithError(err).Warn("failed to mark outbox message as failed")
	}
	return result
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		started := time.Now()
		lastErr = w.publisher.Publish(event)
		publishDuration.Observe(time.Since(started).Seconds())
		if lastErr == nil {
			return nil
		}
		if attempt == w.opts.MaxAttempts {
			break
		}

		delay := w.retryBackoff(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.opts.MaxAttempts, lastErr)
}

// retryBackoff возвращает паузу после попытки attempt: base * 2^(attempt-1),
// но не больше MaxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	base := w.opts.RetryBaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= w.opts.MaxRetryDelay/2 {
			return w.opts.MaxRetryDelay
		}
		delay *= 2
	}
	return min(delay, w.opts.MaxRetryDelay)
}

func (w *Worker) refreshBacklogMetrics(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingRecords.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		oldestPendingAge.Set(0)
		return
	}
	oldestPendingAge.Set(max(time.Since(stats.OldestPendingAt).Seconds(), 0))
}

func (w *Worker) publishToDLQ(event domain.OutboxMessage, publishErr error) error {
	payload, err := json.Marshal(DeadLetter{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        json.RawMessage(event.Payload),
		PublishError:   publishErr.Error(),
		DLQPublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	dead := event
	dead.Payload = payload
	if err := w.opts.DLQPublisher.Publish(dead); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}
