package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

const (
	outboxSent    = "sent"
	outboxFailed  = "failed"

	defaultOutboxBatch = 100
)

const (
	insertOutboxSQL = `
INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, payload, status, attempt_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6, $6)`

	selectPendingSQL = `
SELECT id, aggregate_type, aggregate_id, event_type, payload
FROM outbox_messages
WHERE status = 'pending'
ORDER BY seq
LIMIT $1`

	backlogSQL = `
SELECT COUNT(*), MIN(created_at)
FROM outbox_messages
WHERE status = 'pending'`

	transitionSQL = `
UPDATE outbox_messages
SET status = $2, attempt_count = attempt_count + 1, updated_at = $3
WHERE id = $1`

	purgeSQL = `
DELETE FROM outbox_messages
WHERE id IN (
    SELECT id FROM outbox_messages
    WHERE status IN ('sent', 'failed') AND updated_at <= $1
    ORDER BY seq
    LIMIT $2
)`
)

// outboxRepository работает либо с пулом, либо с открытой транзакцией
// (тогда событие пишется атомарно с изменением счёта).
type outboxRepository struct {
	db dbtx
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return store.Outbox()
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	payload := msg.Payload
	if payload == nil {
		payload = []byte{}
	}

	if _, err := r.db.ExecContext(ctx, insertOutboxSQL,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, payload, time.Now().UTC(),
	); err != nil {
		return domain.OutboxMessage{}, classifyError("enqueue outbox message", err)
	}
	return msg, nil
}

// PullPending отдаёт pending-сообщения в порядке записи (по seq).
func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	rows, err := r.db.QueryContext(ctx, selectPendingSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: pull pending outbox: %w", domain.ErrStorageFailure, err)
	}
	defer rows.Close()

	return scanOutbox(rows)
}

func scanOutbox(rows *sql.Rows) ([]domain.OutboxMessage, error) {
	var out []domain.OutboxMessage
	for rows.Next() {
		var m domain.OutboxMessage
		if err := rows.Scan(&m.ID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Payload); err != nil {
			return nil, fmt.Errorf("%w: scan outbox row: %w", domain.ErrStorageFailure, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate outbox rows: %w", domain.ErrStorageFailure, err)
	}
	return out, nil
}

func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		count  int
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, backlogSQL).Scan(&count, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("%w: outbox backlog: %w", domain.ErrStorageFailure, err)
	}

	stats := domain.OutboxStats{PendingCount: count}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.transition(ctx, id, outboxSent)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.transition(ctx, id, outboxFailed)
}

func (r *outboxRepository) transition(ctx context.Context, id, status string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, transitionSQL, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: mark outbox %s as %s: %w", domain.ErrStorageFailure, id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: mark outbox %s: %w", domain.ErrStorageFailure, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: outbox message %s not found", domain.ErrOutboxPublish, id)
	}
	return nil
}

// PurgeProcessed удаляет до limit старейших sent/failed-сообщений,
// обновлённых не позже before. Pending не трогаются.
func (r *outboxRepository) PurgeProcessed(ctx context.Context, before time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	res, err := r.db.ExecContext(ctx, purgeSQL, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("%w: purge outbox: %w", domain.ErrStorageFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: purge outbox: %w", domain.ErrStorageFailure, err)
	}
	return int(n), nil
}

var (
	_ domain.OutboxRepository = (*outboxRepository)(nil)
	_ domain.OutboxPurger     = (*outboxRepository)(nil)
)
