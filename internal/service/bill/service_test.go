package bill_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vladislavdragonenkov/shopbilling/internal/billing"
	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
	"github.com/vladislavdragonenkov/shopbilling/internal/domain/mocks"
	"github.com/vladislavdragonenkov/shopbilling/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopbilling/internal/metrics"
	"github.com/vladislavdragonenkov/shopbilling/internal/service/bill"
	"github.com/vladislavdragonenkov/shopbilling/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newSeededStore(t *testing.T) *memory.Store {
	t.Helper()

	store := memory.NewStore()
	store.Seed(domain.ReferenceData{
		Products: []domain.Product{
			{ID: "P1", Name: "Ao thun", PriceMinor: 1000},
			{ID: "P2", Name: "Quan jean", PriceMinor: 500},
			{ID: "P3", Name: "Non", PriceMinor: 200},
		},
		Customers: []domain.Customer{
			{ID: "customer-1", FullName: "Nguyen Van An"},
			{ID: "customer-2", FullName: "Le Thi Binh"},
		},
		Staff: []domain.Staff{{ID: "staff-1", FullName: "Tran Minh Chau", Role: "cashier"}},
	})
	return store
}

func newService(t *testing.T, store bill.Store, catalog domain.ProductCatalog, opts ...bill.Option) *bill.Service {
	t.Helper()

	opts = append([]bill.Option{bill.WithClock(func() time.Time { return fixedNow })}, opts...)
	return bill.NewService(billing.NewEngine(catalog), store, opts...)
}

func sampleRequest(id string) bill.CreateBillRequest {
	return bill.CreateBillRequest{
		ID:            id,
		StaffID:       "staff-1",
		CustomerID:    "customer-1",
		DiscountMinor: 500,
		Items: []domain.LineItemRequest{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 3},
		},
	}
}

func pendingEvents(t *testing.T, store *memory.Store) []domain.OutboxMessage {
	t.Helper()

	msgs, err := store.Outbox().PullPending(context.Background(), 100)
	require.NoError(t, err)
	return msgs
}

func TestService_CreateBill(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog())

	res := svc.CreateBill(context.Background(), sampleRequest("bill-1"))
	require.True(t, res.Success, res.Message)
	require.Equal(t, "Bill created successfully", res.Message)
	require.Equal(t, domain.KindNone, res.Kind)

	got := res.Data
	require.Equal(t, "bill-1", got.ID)
	require.Equal(t, int64(3500), got.OriginalMinor)
	require.Equal(t, int64(3000), got.DiscountedTotalMinor)
	require.Equal(t, int64(1), got.Version)
	require.True(t, got.CreatedAt.Equal(fixedNow))
	require.Equal(t, "BILL_20240315_093000", got.Number())
	require.NotNil(t, got.Customer)
	require.Equal(t, "Nguyen Van An", got.Customer.FullName)
	require.Len(t, got.Details, 2)
	require.Equal(t, int64(2000), got.Details[0].TotalMinor)
	require.Equal(t, int64(1500), got.Details[1].TotalMinor)

	events := pendingEvents(t, store)
	require.Len(t, events, 1)
	require.Equal(t, string(kafka.EventTypeBillCreated), events[0].EventType)
	require.Equal(t, kafka.AggregateBill, events[0].AggregateType)
	require.Equal(t, "bill-1", events[0].AggregateID)

	var payload kafka.BillEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	require.Equal(t, int64(3000), payload.DiscountedTotalMinor)
	require.Len(t, payload.Items, 2)
}

func TestService_CreateBillAssignsULID(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog())

	res := svc.CreateBill(context.Background(), sampleRequest(""))
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data.ID, 26)

	custom := newService(t, store, store.Catalog(), bill.WithIDGenerator(func(time.Time) string { return "fixed-id" }))
	res = custom.CreateBill(context.Background(), sampleRequest(""))
	require.True(t, res.Success, res.Message)
	require.Equal(t, "fixed-id", res.Data.ID)
}

func TestService_CreateBillMergesDuplicateProducts(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog())

	req := sampleRequest("bill-merge")
	req.DiscountMinor = 0
	req.Items = []domain.LineItemRequest{
		{ProductID: "P1", Quantity: 1},
		{ProductID: "P1", Quantity: 2},
	}

	res := svc.CreateBill(context.Background(), req)
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data.Details, 1)
	require.Equal(t, int32(3), res.Data.Details[0].Quantity)
	require.Equal(t, int64(3000), res.Data.OriginalMinor)
}

func TestService_CreateBillRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*bill.CreateBillRequest)
		kind   domain.ErrorKind
		cause  error
	}{
		{
			name:   "missing staff",
			mutate: func(r *bill.CreateBillRequest) { r.StaffID = "  " },
			kind:   domain.KindInvalidRequest,
			cause:  domain.ErrStaffRequired,
		},
		{
			name:   "missing customer",
			mutate: func(r *bill.CreateBillRequest) { r.CustomerID = "" },
			kind:   domain.KindInvalidRequest,
			cause:  domain.ErrCustomerRequired,
		},
		{
			name:   "no items",
			mutate: func(r *bill.CreateBillRequest) { r.Items = nil },
			kind:   domain.KindInvalidRequest,
			cause:  domain.ErrItemsRequired,
		},
		{
			name:   "id too long",
			mutate: func(r *bill.CreateBillRequest) { r.ID = strings.Repeat("x", 51) },
			kind:   domain.KindInvalidRequest,
			cause:  domain.ErrInvalidBillID,
		},
		{
			name:   "unknown product",
			mutate: func(r *bill.CreateBillRequest) { r.Items[1].ProductID = "P404" },
			kind:   domain.KindInvalidProduct,
			cause:  domain.ErrInvalidProduct,
		},
		{
			name:   "zero quantity",
			mutate: func(r *bill.CreateBillRequest) { r.Items[0].Quantity = 0 },
			kind:   domain.KindInvalidQuantity,
			cause:  domain.ErrInvalidQuantity,
		},
		{
			name:   "discount above total",
			mutate: func(r *bill.CreateBillRequest) { r.DiscountMinor = 3501 },
			kind:   domain.KindInvalidDiscount,
			cause:  domain.ErrInvalidDiscount,
		},
		{
			name:   "negative discount",
			mutate: func(r *bill.CreateBillRequest) { r.DiscountMinor = -1 },
			kind:   domain.KindInvalidDiscount,
			cause:  domain.ErrInvalidDiscount,
		},
		{
			name:   "unknown customer",
			mutate: func(r *bill.CreateBillRequest) { r.CustomerID = "ghost" },
			kind:   domain.KindConstraintViolation,
			cause:  domain.ErrCustomerNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newSeededStore(t)
			svc := newService(t, store, store.Catalog())

			req := sampleRequest("bill-rejected")
			tt.mutate(&req)

			res := svc.CreateBill(context.Background(), req)
			require.False(t, res.Success)
			require.Equal(t, tt.kind, res.Kind)
			require.ErrorIs(t, res.Err, tt.cause)
			require.Contains(t, res.Message, "Failed to create bill")

			bills, err := store.Bills().List(context.Background())
			require.NoError(t, err)
			require.Empty(t, bills)
			require.Empty(t, pendingEvents(t, store))
		})
	}
}

func TestService_CreateBillDuplicateID(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog())

	require.True(t, svc.CreateBill(context.Background(), sampleRequest("bill-dup")).Success)
	res := svc.CreateBill(context.Background(), sampleRequest("bill-dup"))
	require.False(t, res.Success)
	require.Equal(t, domain.KindAlreadyExists, res.Kind)
	require.Len(t, pendingEvents(t, store), 1)
}

// failingOutboxStore проваливает запись в outbox внутри транзакции.
type failingOutboxStore struct {
	*memory.Store
}

type failingScope struct {
	domain.TxScope
}

type failingWriter struct{}

func (failingWriter) Enqueue(context.Context, domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, errors.New("outbox unavailable")
}

func (s failingOutboxStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.TxScope) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx domain.TxScope) error {
		return fn(ctx, failingScope{TxScope: tx})
	})
}

func (failingScope) Outbox() domain.OutboxWriter { return failingWriter{} }

func TestService_CreateBillIsAtomic(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, failingOutboxStore{Store: store}, store.Catalog())

	res := svc.CreateBill(context.Background(), sampleRequest("bill-atomic"))
	require.False(t, res.Success)
	require.Equal(t, domain.KindStorageFailure, res.Kind)

	_, err := store.Bills().Get(context.Background(), "bill-atomic")
	require.ErrorIs(t, err, domain.ErrBillNotFound)
	_, err = store.Bills().Details(context.Background(), "bill-atomic")
	require.ErrorIs(t, err, domain.ErrBillNotFound)
}

func TestService_UpdateBill(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog())
	ctx := context.Background()

	created := svc.CreateBill(ctx, sampleRequest("bill-upd"))
	require.True(t, created.Success, created.Message)

	require.NoError(t, store.SetProductPrice(context.Background(), "P1", 1200))

	res := svc.UpdateBill(ctx, bill.UpdateBillRequest{
		ID:            "bill-upd",
		StaffID:       "staff-1",
		CustomerID:    "customer-2",
		DiscountMinor: 100,
		Items:         []domain.LineItemRequest{{ProductID: "P1", Quantity: 1}},
	})
	require.True(t, res.Success, res.Message)
	require.Equal(t, "Bill updated successfully", res.Message)

	got := res.Data
	require.Equal(t, "customer-2", got.CustomerID)
	require.Len(t, got.Details, 1)
	require.Equal(t, int64(1200), got.Details[0].TotalMinor)
	require.Equal(t, int64(1200), got.OriginalMinor)
	require.Equal(t, int64(1100), got.DiscountedTotalMinor)
	require.Equal(t, int64(2), got.Version)
	require.True(t, got.CreatedAt.Equal(created.Data.CreatedAt))

	events := pendingEvents(t, store)
	require.Len(t, events, 2)
	require.Equal(t, string(kafka.EventTypeBillUpdated), events[1].EventType)
}

func TestService_UpdateBillFailures(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog())
	ctx := context.Background()

	require.True(t, svc.CreateBill(ctx, sampleRequest("bill-v")).Success)

	update := bill.UpdateBillRequest{
		ID:         "bill-v",
		StaffID:    "staff-1",
		CustomerID: "customer-1",
		Items:      []domain.LineItemRequest{{ProductID: "P2", Quantity: 1}},
	}

	missing := update
	missing.ID = "bill-missing"
	res := svc.UpdateBill(ctx, missing)
	require.False(t, res.Success)
	require.Equal(t, domain.KindNotFound, res.Kind)
	require.Contains(t, res.Message, "not found")

	stale := update
	stale.ExpectedVersion = 7
	res = svc.UpdateBill(ctx, stale)
	require.False(t, res.Success)
	require.Equal(t, domain.KindVersionConflict, res.Kind)

	badProduct := update
	badProduct.Items = []domain.LineItemRequest{{ProductID: "P404", Quantity: 1}}
	res = svc.UpdateBill(ctx, badProduct)
	require.False(t, res.Success)
	require.Equal(t, domain.KindInvalidProduct, res.Kind)

	got, err := svc.GetBill(ctx, "bill-v")
	require.NoError(t, err)
	require.Len(t, got.Details, 2)
	require.Equal(t, int64(1), got.Version)
	require.Len(t, pendingEvents(t, store), 1)

	current := update
	current.ExpectedVersion = 1
	res = svc.UpdateBill(ctx, current)
	require.True(t, res.Success, res.Message)
	require.Equal(t, int64(2), res.Data.Version)
}

func TestService_DeleteBill(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog())
	ctx := context.Background()

	require.True(t, svc.CreateBill(ctx, sampleRequest("bill-del")).Success)

	res := svc.DeleteBill(ctx, "bill-del")
	require.True(t, res.Success, res.Message)
	require.Equal(t, "bill-del", res.Data.ID)

	_, err := svc.GetBill(ctx, "bill-del")
	require.ErrorIs(t, err, domain.ErrBillNotFound)
	_, err = store.Bills().Details(ctx, "bill-del")
	require.ErrorIs(t, err, domain.ErrBillNotFound)

	events := pendingEvents(t, store)
	require.Len(t, events, 2)
	require.Equal(t, string(kafka.EventTypeBillDeleted), events[1].EventType)

	res = svc.DeleteBill(ctx, "bill-del")
	require.False(t, res.Success)
	require.Equal(t, domain.KindNotFound, res.Kind)
	require.Contains(t, res.Message, "not found")

	res = svc.DeleteBill(ctx, " ")
	require.False(t, res.Success)
	require.Equal(t, domain.KindInvalidRequest, res.Kind)
}

func TestService_AddAndRemoveBillDetail(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog())
	ctx := context.Background()

	require.True(t, svc.CreateBill(ctx, sampleRequest("bill-lines")).Success)

	// Цена P2 меняется: строка P2 сохраняет старый снимок, новая строка P1 берёт новую цену.
	require.NoError(t, store.SetProductPrice(context.Background(), "P2", 700))
	require.NoError(t, store.SetProductPrice(context.Background(), "P1", 1100))

	res := svc.AddBillDetail(ctx, "bill-lines", domain.LineItemRequest{ProductID: "P1", Quantity: 1})
	require.True(t, res.Success, res.Message)
	p1, ok := res.Data.Detail("P1")
	require.True(t, ok)
	require.Equal(t, int32(3), p1.Quantity)
	require.Equal(t, int64(3300), p1.TotalMinor)
	p2, ok := res.Data.Detail("P2")
	require.True(t, ok)
	require.Equal(t, int64(1500), p2.TotalMinor)
	require.Equal(t, int64(4800), res.Data.OriginalMinor)
	require.Equal(t, int64(4300), res.Data.DiscountedTotalMinor)
	require.Equal(t, int64(2), res.Data.Version)

	res = svc.AddBillDetail(ctx, "bill-lines", domain.LineItemRequest{ProductID: "P3", Quantity: 2})
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data.Details, 3)

	res = svc.RemoveBillDetail(ctx, "bill-lines", "P3")
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Data.Details, 2)
	require.Equal(t, int64(4800), res.Data.OriginalMinor)

	res = svc.RemoveBillDetail(ctx, "bill-lines", "P404")
	require.False(t, res.Success)
	require.Equal(t, domain.KindNotFound, res.Kind)

	// Без P1 сумма 1500 всё ещё покрывает скидку 500.
	res = svc.RemoveBillDetail(ctx, "bill-lines", "P1")
	require.True(t, res.Success, res.Message)

	res = svc.RemoveBillDetail(ctx, "bill-lines", "P2")
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, domain.ErrItemsRequired)

	res = svc.AddBillDetail(ctx, "bill-missing", domain.LineItemRequest{ProductID: "P1", Quantity: 1})
	require.False(t, res.Success)
	require.Equal(t, domain.KindNotFound, res.Kind)

	res = svc.AddBillDetail(ctx, "bill-lines", domain.LineItemRequest{ProductID: "P1", Quantity: -1})
	require.False(t, res.Success)
	require.Equal(t, domain.KindInvalidQuantity, res.Kind)
}

func TestService_RemoveBillDetailRejectsDiscountAboveTotal(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog())
	ctx := context.Background()

	req := sampleRequest("bill-discount")
	req.DiscountMinor = 1800
	require.True(t, svc.CreateBill(ctx, req).Success)

	res := svc.RemoveBillDetail(ctx, "bill-discount", "P1")
	require.False(t, res.Success)
	require.Equal(t, domain.KindInvalidDiscount, res.Kind)

	got, err := svc.GetBill(ctx, "bill-discount")
	require.NoError(t, err)
	require.Len(t, got.Details, 2)
}

func TestService_ListSearchAndComputeTotal(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	ctx := context.Background()
	clock := fixedNow
	svc := newService(t, store, store.Catalog(), bill.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))

	require.True(t, svc.CreateBill(ctx, sampleRequest("bill-a")).Success)
	second := sampleRequest("bill-b")
	second.CustomerID = "customer-2"
	require.True(t, svc.CreateBill(ctx, second).Success)

	all, err := svc.ListBills(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "bill-b", all[0].ID)

	mine, err := svc.ListCustomerBills(ctx, "customer-2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "bill-b", mine[0].ID)

	require.Len(t, svc.SearchBills(ctx, "customer", "le thi"), 1)
	require.Len(t, svc.SearchBills(ctx, "id", "bill-"), 2)
	require.Len(t, svc.SearchBills(ctx, "customer", ""), 2)
	require.Empty(t, svc.SearchBills(ctx, "date", "not-a-date"))

	total, err := svc.ComputeTotal(ctx, "bill-a")
	require.NoError(t, err)
	require.Equal(t, int64(3500), total)

	_, err = svc.ComputeTotal(ctx, "bill-missing")
	require.ErrorIs(t, err, domain.ErrBillNotFound)
}

type mockedStore struct {
	*memory.Store
	bills domain.BillRepository
}

func (s mockedStore) Bills() domain.BillRepository { return s.bills }

func TestService_SearchBillsFailsSoft(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := mocks.NewMockBillRepository(ctrl)
	repo.EXPECT().
		Search(gomock.Any(), domain.NewSearchQuery("customer", "an")).
		Return(nil, errors.New("connection refused"))

	store := newSeededStore(t)
	svc := newService(t, mockedStore{Store: store, bills: repo}, store.Catalog())

	got := svc.SearchBills(context.Background(), "customer", "an")
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestService_CatalogFailureAbortsBeforeWrite(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockProductCatalog(ctrl)
	catalog.EXPECT().GetPrice(gomock.Any(), "P1").Return(int64(1000), nil)
	catalog.EXPECT().GetPrice(gomock.Any(), "P2").Return(int64(0), errors.New("catalog timeout"))

	store := newSeededStore(t)
	svc := newService(t, store, catalog)

	res := svc.CreateBill(context.Background(), sampleRequest("bill-catalog"))
	require.False(t, res.Success)
	require.Equal(t, domain.KindStorageFailure, res.Kind)
	require.Empty(t, pendingEvents(t, store))
}

func TestService_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	store := newSeededStore(t)
	svc := newService(t, store, store.Catalog(), bill.WithMetrics(metrics.NewBillingMetricsWithRegisterer(reg)))
	ctx := context.Background()

	require.True(t, svc.CreateBill(ctx, sampleRequest("bill-m")).Success)
	require.False(t, svc.DeleteBill(ctx, "bill-unknown").Success)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "shop_bill_operations_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			key := ""
			for _, label := range m.GetLabel() {
				key += label.GetValue() + "/"
			}
			counts[key] = m.GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(1), counts["create_bill/success/"])
	require.Equal(t, float64(1), counts["delete_bill/failure/"])
}
