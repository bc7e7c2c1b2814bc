// Package bill реализует жизненный цикл счёта: создание, изменение, удаление,
// поиск и пересчёт сумм поверх движка расчёта и транзакционного хранилища.
package bill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopbilling/internal/billing"
	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
	"github.com/vladislavdragonenkov/shopbilling/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopbilling/internal/metrics"
)

const (
	opCreate     = "create_bill"
	opUpdate     = "update_bill"
	opDelete     = "delete_bill"
	opGet        = "get_bill"
	opList       = "list_bills"
	opListByCust = "list_customer_bills"
	opSearch     = "search_bills"
	opTotal      = "compute_total"
	opAddLine    = "add_bill_detail"
	opRemoveLine = "remove_bill_detail"
)

// Store — хранилище, которое нужно сервису: транзакции и чтение счетов.
type Store interface {
	domain.UnitOfWork
	Bills() domain.BillRepository
}

// Service управляет жизненным циклом счетов.
type Service struct {
	engine   *billing.Engine
	uow      domain.UnitOfWork
	bills    domain.BillRepository
	metrics  *metrics.BillingMetrics
	validate *validator.Validate
	logger   *log.Entry
	now      func() time.Time
	newID    func(time.Time) string
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics включает запись Prometheus-метрик.
func WithMetrics(m *metrics.BillingMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов счетов.
func WithIDGenerator(gen func(time.Time) string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewService собирает сервис поверх движка и хранилища.
func NewService(engine *billing.Engine, store Store, opts ...Option) *Service {
	s := &Service{
		engine:   engine,
		uow:      store,
		bills:    store.Bills(),
		validate: newValidator(),
		logger:   log.WithField("component", "bill-service"),
		now:      time.Now,
		newID:    newULID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newULID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// CreateBill рассчитывает и сохраняет новый счёт вместе с событием bill.created.
// Ошибки расчёта прерывают операцию до любой записи.
func (s *Service) CreateBill(ctx context.Context, req CreateBillRequest) (res domain.Result[domain.Bill]) {
	done := s.metrics.Start(opCreate)
	defer func() { done(res.Err) }()

	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		return s.fail(opCreate, req.ID, validationError(err), "failed to create bill")
	}

	now := s.clock()
	if req.ID == "" {
		req.ID = s.newID(now)
	}

	draft := domain.Bill{
		ID:            req.ID,
		StaffID:       req.StaffID,
		CustomerID:    req.CustomerID,
		DiscountMinor: req.DiscountMinor,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	priced, err := s.engine.PriceBill(ctx, draft, req.Items)
	if err != nil {
		return s.fail(opCreate, req.ID, err, "failed to create bill")
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx domain.TxScope) error {
		if err := tx.Bills().Create(ctx, priced); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, kafka.EventTypeBillCreated, priced)
	})
	if err != nil {
		return s.fail(opCreate, priced.ID, err, "failed to create bill")
	}

	s.metrics.RecordBill(priced.OriginalMinor, priced.DiscountedTotalMinor, len(priced.Details))
	s.logger.WithFields(log.Fields{
		"bill_id":     priced.ID,
		"customer_id": priced.CustomerID,
		"total_minor": priced.DiscountedTotalMinor,
		"lines":       len(priced.Details),
	}).Info("bill created")

	return domain.OK(s.reload(ctx, priced), "Bill created successfully")
}

// UpdateBill перерасчитывает все позиции и заменяет строки, шапку и событие
// bill.updated атомарно. CreatedAt и ID сохраняются.
func (s *Service) UpdateBill(ctx context.Context, req UpdateBillRequest) (res domain.Result[domain.Bill]) {
	done := s.metrics.Start(opUpdate)
	defer func() { done(res.Err) }()

	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		return s.fail(opUpdate, req.ID, validationError(err), "failed to update bill")
	}

	existing, err := s.bills.Get(ctx, req.ID)
	if err != nil {
		return s.fail(opUpdate, req.ID, err, "failed to update bill")
	}
	if req.ExpectedVersion > 0 && existing.Version != req.ExpectedVersion {
		err := fmt.Errorf("%w: expected version %d, current %d", domain.ErrBillVersionConflict, req.ExpectedVersion, existing.Version)
		return s.fail(opUpdate, req.ID, err, "failed to update bill")
	}

	draft := domain.Bill{
		ID:            existing.ID,
		StaffID:       req.StaffID,
		CustomerID:    req.CustomerID,
		DiscountMinor: req.DiscountMinor,
		CreatedAt:     existing.CreatedAt,
		UpdatedAt:     s.clock(),
	}
	priced, err := s.engine.PriceBill(ctx, draft, req.Items)
	if err != nil {
		return s.fail(opUpdate, req.ID, err, "failed to update bill")
	}

	return s.replace(ctx, opUpdate, priced, req.ExpectedVersion, "update bill", "Bill updated successfully")
}

// DeleteBill удаляет счёт со всеми строками и пишет событие bill.deleted.
func (s *Service) DeleteBill(ctx context.Context, id string) (res domain.Result[domain.Bill]) {
	done := s.metrics.Start(opDelete)
	defer func() { done(res.Err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return s.fail(opDelete, id, domain.ErrInvalidBillID, "failed to delete bill")
	}

	var deleted domain.Bill
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx domain.TxScope) error {
		current, err := tx.Bills().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Bills().Delete(ctx, id); err != nil {
			return err
		}
		deleted = current
		return enqueueEvent(ctx, tx, kafka.EventTypeBillDeleted, current)
	})
	if err != nil {
		return s.fail(opDelete, id, err, "failed to delete bill")
	}

	s.logger.WithField("bill_id", id).Info("bill deleted")
	return domain.OK(deleted, "Bill deleted successfully")
}

// AddBillDetail добавляет позицию в счёт или увеличивает количество уже
// существующей строки. Цены остальных строк не меняются.
func (s *Service) AddBillDetail(ctx context.Context, billID string, item domain.LineItemRequest) (res domain.Result[domain.Bill]) {
	done := s.metrics.Start(opAddLine)
	defer func() { done(res.Err) }()

	existing, err := s.bills.Get(ctx, strings.TrimSpace(billID))
	if err != nil {
		return s.fail(opAddLine, billID, err, "failed to add bill detail")
	}

	updated, err := s.engine.AddLine(ctx, existing, item)
	if err != nil {
		return s.fail(opAddLine, billID, err, "failed to add bill detail")
	}
	updated.UpdatedAt = s.clock()

	return s.replace(ctx, opAddLine, updated, existing.Version, "add bill detail", "Bill detail added successfully")
}

// RemoveBillDetail убирает строку товара из счёта. Последнюю строку удалить нельзя.
func (s *Service) RemoveBillDetail(ctx context.Context, billID, productID string) (res domain.Result[domain.Bill]) {
	done := s.metrics.Start(opRemoveLine)
	defer func() { done(res.Err) }()

	existing, err := s.bills.Get(ctx, strings.TrimSpace(billID))
	if err != nil {
		return s.fail(opRemoveLine, billID, err, "failed to remove bill detail")
	}

	updated, err := s.engine.RemoveLine(existing, strings.TrimSpace(productID))
	if err != nil {
		return s.fail(opRemoveLine, billID, err, "failed to remove bill detail")
	}
	updated.UpdatedAt = s.clock()

	return s.replace(ctx, opRemoveLine, updated, existing.Version, "remove bill detail", "Bill detail removed successfully")
}

// replace сохраняет рассчитанный счёт и событие bill.updated в одной транзакции.
func (s *Service) replace(ctx context.Context, op string, priced domain.Bill, expectedVersion int64, action, message string) domain.Result[domain.Bill] {
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx domain.TxScope) error {
		version, err := tx.Bills().ReplaceDetails(ctx, priced, expectedVersion)
		if err != nil {
			return err
		}
		priced.Version = version
		return enqueueEvent(ctx, tx, kafka.EventTypeBillUpdated, priced)
	})
	if err != nil {
		return s.fail(op, priced.ID, err, "failed to "+action)
	}

	s.metrics.RecordBill(priced.OriginalMinor, priced.DiscountedTotalMinor, len(priced.Details))
	s.logger.WithFields(log.Fields{
		"bill_id":   priced.ID,
		"operation": op,
		"version":   priced.Version,
	}).Info("bill updated")

	return domain.OK(s.reload(ctx, priced), message)
}

// GetBill возвращает счёт со строками, клиентом и сотрудником.
func (s *Service) GetBill(ctx context.Context, id string) (b domain.Bill, err error) {
	done := s.metrics.Start(opGet)
	defer func() { done(err) }()

	b, err = s.bills.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		s.logFailure(opGet, id, err)
	}
	return b, err
}

// ListBills возвращает все счета, новые первыми.
func (s *Service) ListBills(ctx context.Context) (bills []domain.Bill, err error) {
	done := s.metrics.Start(opList)
	defer func() { done(err) }()

	bills, err = s.bills.List(ctx)
	if err != nil {
		s.logFailure(opList, "", err)
	}
	return bills, err
}

// ListCustomerBills возвращает счета одного клиента.
func (s *Service) ListCustomerBills(ctx context.Context, customerID string) (bills []domain.Bill, err error) {
	done := s.metrics.Start(opListByCust)
	defer func() { done(err) }()

	bills, err = s.bills.ListByCustomer(ctx, strings.TrimSpace(customerID))
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"operation":   opListByCust,
			"customer_id": customerID,
		}).Error("bill operation failed")
	}
	return bills, err
}

// SearchBills ищет счета по полю. Пустое значение возвращает все счета.
// Ошибки хранилища логируются, результат в этом случае пустой.
func (s *Service) SearchBills(ctx context.Context, searchType, searchValue string) []domain.Bill {
	var err error
	done := s.metrics.Start(opSearch)
	defer func() { done(err) }()

	var bills []domain.Bill
	bills, err = s.bills.Search(ctx, domain.NewSearchQuery(searchType, searchValue))
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"operation":    opSearch,
			"search_type":  searchType,
			"search_value": searchValue,
		}).Error("bill search failed")
		return []domain.Bill{}
	}
	return bills
}

// ComputeTotal пересчитывает сумму счёта по сохранённым строкам,
// не доверяя закешированному полю шапки.
func (s *Service) ComputeTotal(ctx context.Context, billID string) (total int64, err error) {
	done := s.metrics.Start(opTotal)
	defer func() { done(err) }()

	details, err := s.bills.Details(ctx, strings.TrimSpace(billID))
	if err != nil {
		s.logFailure(opTotal, billID, err)
		return 0, err
	}
	return s.engine.ComputeOrderTotal(details)
}

// reload перечитывает сохранённый счёт, чтобы вернуть его с клиентом и товарами.
func (s *Service) reload(ctx context.Context, fallback domain.Bill) domain.Bill {
	stored, err := s.bills.Get(ctx, fallback.ID)
	if err != nil {
		s.logger.WithError(err).WithField("bill_id", fallback.ID).Warn("reload after write failed")
		return fallback
	}
	return stored
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) fail(op, billID string, err error, action string) domain.Result[domain.Bill] {
	s.logFailure(op, billID, err)
	return domain.Fail[domain.Bill](err, fmt.Sprintf("%s: %v", capitalize(action), err))
}

func (s *Service) logFailure(op, billID string, err error) {
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation": op,
		"bill_id":   billID,
		"kind":      domain.KindOf(err),
	})
	if domain.KindOf(err) == domain.KindStorageFailure {
		entry.Error("bill operation failed")
		return
	}
	entry.Warn("bill operation rejected")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func enqueueEvent(ctx context.Context, tx domain.TxScope, eventType kafka.EventType, b domain.Bill) error {
	payload, err := json.Marshal(kafka.NewBillEvent(eventType, b))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	_, err = tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateBill,
		AggregateID:   b.ID,
		EventType:     string(eventType),
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s event: %w", eventType, err)
	}
	return nil
}
