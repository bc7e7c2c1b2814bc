package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/ports_mock.go -package=mocks github.com/vladislavdragonenkov/shopbilling/internal/domain ProductCatalog,BillRepository,OutboxPublisher

// ProductCatalog отдаёт актуальную цену товара.
type ProductCatalog interface {
	// GetPrice возвращает цену за единицу в минорных единицах или ErrProductNotFound.
	GetPrice(ctx context.Context, productID string) (int64, error)
}

// PriceWriter меняет цену товара в каталоге. Уже сохранённые строки
// счетов хранят свой снимок цены и не меняются.
type PriceWriter interface {
	SetProductPrice(ctx context.Context, productID string, priceMinor int64) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxWriter добавляет событие в outbox в рамках текущей транзакции.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	OutboxWriter
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxPurger удаляет обработанные сообщения outbox (sent и failed),
// обновлённые не позже before. За вызов удаляется не больше limit записей.
type OutboxPurger interface {
	PurgeProcessed(ctx context.Context, before time.Time, limit int) (int, error)
}

// TxScope — репозитории, привязанные к одной транзакции.
type TxScope interface {
	Bills() BillRepository
	Outbox() OutboxWriter
}

// UnitOfWork выполняет fn в одной транзакции. Любая ошибка fn откатывает
// все изменения. Внутри fn можно обращаться только к репозиториям из tx.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxScope) error) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
