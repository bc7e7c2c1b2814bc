package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	seq        int64
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepository — in-memory хранилище transactional outbox.
type outboxRepository struct {
	store *Store
	tx    *state
}

// NewOutboxRepository создаёт in-memory реализацию outbox поверх store.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return store.Outbox()
}

func (r *outboxRepository) read(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.view(fn)
}

func (r *outboxRepository) write(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.update(fn)
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с идентификатором.
func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxMessage{}, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)

	err := r.write(func(st *state) error {
		now := time.Now().UTC()
		st.outboxSeq++
		st.outbox[msg.ID] = &outboxRecord{
			msg:       msg,
			status:    outboxStatusPending,
			seq:       st.outboxSeq,
			createdAt: now,
			updatedAt: now,
		}
		return nil
	})
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке добавления.
func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	var pending []*outboxRecord
	err := r.read(func(st *state) error {
		for _, rec := range st.outbox {
			if rec.status == outboxStatusPending {
				cp := *rec
				pending = append(pending, &cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxStats{}, err
	}

	var stats domain.OutboxStats
	err := r.read(func(st *state) error {
		for _, rec := range st.outbox {
			if rec.status != outboxStatusPending {
				continue
			}
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = rec.createdAt
			}
		}
		return nil
	})
	return stats, err
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusFailed)
}

func (r *outboxRepository) markStatus(ctx context.Context, id, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.write(func(st *state) error {
		record, ok := st.outbox[id]
		if !ok {
			return domain.ErrOutboxPublish
		}
		record.status = status
		record.attemptCnt++
		record.updatedAt = time.Now().UTC()
		return nil
	})
}

// PurgeProcessed удаляет отправленные и failed-сообщения старше before.
func (r *outboxRepository) PurgeProcessed(ctx context.Context, before time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = 100
	}

	deleted := 0
	err := r.write(func(st *state) error {
		var expired []*outboxRecord
		for _, rec := range st.outbox {
			if rec.status != outboxStatusPending && !rec.updatedAt.After(before) {
				expired = append(expired, rec)
			}
		}
		sort.Slice(expired, func(i, j int) bool { return expired[i].seq < expired[j].seq })
		if len(expired) > limit {
			expired = expired[:limit]
		}
		for _, rec := range expired {
			delete(st.outbox, rec.msg.ID)
		}
		deleted = len(expired)
		return nil
	})
	return deleted, err
}

var (
	_ domain.OutboxRepository = (*outboxRepository)(nil)
	_ domain.OutboxPurger     = (*outboxRepository)(nil)
)
