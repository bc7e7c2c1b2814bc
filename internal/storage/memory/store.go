package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

// state — снимок всех данных in-memory хранилища.
type state struct {
	products  map[string]domain.Product
	customers map[string]domain.Customer
	staff     map[string]domain.Staff
	bills     map[string]domain.Bill
	details   map[string][]domain.BillDetail
	outbox    map[string]*outboxRecord
	outboxSeq int64
}

func newState() *state {
	return &state{
		products:  make(map[string]domain.Product),
		customers: make(map[string]domain.Customer),
		staff:     make(map[string]domain.Staff),
		bills:     make(map[string]domain.Bill),
		details:   make(map[string][]domain.BillDetail),
		outbox:    make(map[string]*outboxRecord),
	}
}

func (s *state) clone() *state {
	out := &state{
		products:  make(map[string]domain.Product, len(s.products)),
		customers: make(map[string]domain.Customer, len(s.customers)),
		staff:     make(map[string]domain.Staff, len(s.staff)),
		bills:     make(map[string]domain.Bill, len(s.bills)),
		details:   make(map[string][]domain.BillDetail, len(s.details)),
		outbox:    make(map[string]*outboxRecord, len(s.outbox)),
		outboxSeq: s.outboxSeq,
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.customers {
		out.customers[k] = v
	}
	for k, v := range s.staff {
		out.staff[k] = v
	}
	for k, v := range s.bills {
		out.bills[k] = v
	}
	for k, v := range s.details {
		out.details[k] = append([]domain.BillDetail(nil), v...)
	}
	for k, v := range s.outbox {
		rec := *v
		out.outbox[k] = &rec
	}
	return out
}

// Option настраивает Store.
type Option func(*Store)

// WithLocation задаёт часовой пояс для поиска по дате.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Store — in-memory хранилище для локальной разработки и тестов.
// Запись выполняется над копией состояния, которая подменяет текущее только
// при успехе, поэтому частичные изменения не видны читателям.
type Store struct {
	mu  sync.RWMutex
	st  *state
	loc *time.Location
}

// NewStore создаёт пустое хранилище.
func NewStore(opts ...Option) *Store {
	s := &Store{st: newState(), loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bills возвращает репозиторий счетов вне транзакции.
func (s *Store) Bills() domain.BillRepository {
	return &billRepository{store: s, loc: s.loc}
}

// Outbox возвращает outbox-репозиторий вне транзакции.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{store: s}
}

// OutboxPurger возвращает очистку обработанных сообщений outbox.
func (s *Store) OutboxPurger() domain.OutboxPurger {
	return &outboxRepository{store: s}
}

// Catalog возвращает каталог цен.
func (s *Store) Catalog() domain.ProductCatalog {
	return &catalog{store: s}
}

// WithinTx выполняет fn над копией состояния и применяет её только при успехе.
// Писатели сериализуются; внутри fn нельзя обращаться к репозиториям Store
// вне tx, иначе вызов заблокируется.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.TxScope) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	if err := fn(ctx, &txScope{st: staged, loc: s.loc}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = staged
	return nil
}

// Ping всегда успешен: хранилище в памяти процесса.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) view(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func (s *Store) update(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	if err := fn(staged); err != nil {
		return err
	}
	s.st = staged
	return nil
}

type txScope struct {
	st  *state
	loc *time.Location
}

func (t *txScope) Bills() domain.BillRepository {
	return &billRepository{tx: t.st, loc: t.loc}
}

func (t *txScope) Outbox() domain.OutboxWriter {
	return &outboxRepository{tx: t.st}
}

// Seed добавляет или заменяет справочные данные.
func (s *Store) Seed(ref domain.ReferenceData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range ref.Products {
		s.st.products[p.ID] = p
	}
	for _, c := range ref.Customers {
		s.st.customers[c.ID] = c
	}
	for _, st := range ref.Staff {
		s.st.staff[st.ID] = st
	}
}

// SetProductPrice меняет цену товара. Уже сохранённые строки счетов не меняются.
func (s *Store) SetProductPrice(ctx context.Context, productID string, priceMinor int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return domain.ErrProductNotFound
		}
		p.PriceMinor = priceMinor
		st.products[productID] = p
		return nil
	})
}

// DeleteProduct удаляет товар, если на него не ссылается ни одна строка счёта.
func (s *Store) DeleteProduct(productID string) error {
	return s.update(func(st *state) error {
		if _, ok := st.products[productID]; !ok {
			return domain.ErrProductNotFound
		}
		for _, details := range st.details {
			for _, d := range details {
				if d.ProductID == productID {
					return constraintErr(nil, "product %s is referenced by bill %s", productID, d.BillID)
				}
			}
		}
		delete(st.products, productID)
		return nil
	})
}

var (
	_ domain.UnitOfWork  = (*Store)(nil)
	_ domain.PriceWriter = (*Store)(nil)
	_ domain.TxScope     = (*txScope)(nil)
)
