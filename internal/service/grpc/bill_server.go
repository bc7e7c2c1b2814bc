package grpcsvc

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
	"github.com/vladislavdragonenkov/shopbilling/internal/service/bill"
	billingv1 "github.com/vladislavdragonenkov/shopbilling/proto/billing/v1"
)

// BillLifecycle — операции над счетами, которые публикует gRPC-слой.
type BillLifecycle interface {
	CreateBill(ctx context.Context, req bill.CreateBillRequest) domain.Result[domain.Bill]
	UpdateBill(ctx context.Context, req bill.UpdateBillRequest) domain.Result[domain.Bill]
	DeleteBill(ctx context.Context, id string) domain.Result[domain.Bill]
	AddBillDetail(ctx context.Context, billID string, item domain.LineItemRequest) domain.Result[domain.Bill]
	RemoveBillDetail(ctx context.Context, billID, productID string) domain.Result[domain.Bill]
	GetBill(ctx context.Context, id string) (domain.Bill, error)
	ListBills(ctx context.Context) ([]domain.Bill, error)
	ListCustomerBills(ctx context.Context, customerID string) ([]domain.Bill, error)
	SearchBills(ctx context.Context, searchType, searchValue string) []domain.Bill
	ComputeTotal(ctx context.Context, billID string) (int64, error)
}

// BillServer реализует shop.billing.v1.BillService поверх сервиса счетов.
type BillServer struct {
	billingv1.UnimplementedBillServiceServer

	svc    BillLifecycle
	logger *log.Entry
}

// NewBillServer конструирует gRPC-обработчик.
func NewBillServer(svc BillLifecycle, logger *log.Entry) *BillServer {
	if logger == nil {
		logger = log.New().WithField("component", "bill-grpc")
	}
	return &BillServer{svc: svc, logger: logger}
}

// CreateBill создаёт счёт.
func (s *BillServer) CreateBill(ctx context.Context, req *billingv1.CreateBillRequest) (*billingv1.CreateBillResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	discount, err := domain.ParseAmount(req.Discount)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "discount: %v", err)
	}
	items, err := fromProtoItems(req.Items)
	if err != nil {
		return nil, err
	}

	res := s.svc.CreateBill(ctx, bill.CreateBillRequest{
		ID:            req.ID,
		StaffID:       req.StaffID,
		CustomerID:    req.CustomerID,
		DiscountMinor: discount,
		Items:         items,
	})
	if !res.Success {
		return nil, resultStatus(res)
	}
	return &billingv1.CreateBillResponse{Bill: toProtoBill(res.Data), Message: res.Message}, nil
}

// UpdateBill заменяет шапку и строки счёта.
func (s *BillServer) UpdateBill(ctx context.Context, req *billingv1.UpdateBillRequest) (*billingv1.UpdateBillResponse, error) {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	discount, err := domain.ParseAmount(req.Discount)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "discount: %v", err)
	}
	items, err := fromProtoItems(req.Items)
	if err != nil {
		return nil, err
	}

	res := s.svc.UpdateBill(ctx, bill.UpdateBillRequest{
		ID:              req.ID,
		StaffID:         req.StaffID,
		CustomerID:      req.CustomerID,
		DiscountMinor:   discount,
		Items:           items,
		ExpectedVersion: req.ExpectedVersion,
	})
	if !res.Success {
		return nil, resultStatus(res)
	}
	return &billingv1.UpdateBillResponse{Bill: toProtoBill(res.Data), Message: res.Message}, nil
}

// DeleteBill удаляет счёт.
func (s *BillServer) DeleteBill(ctx context.Context, req *billingv1.DeleteBillRequest) (*billingv1.DeleteBillResponse, error) {
	if strings.TrimSpace(req.GetBillID()) == "" {
		return nil, status.Error(codes.InvalidArgument, "bill_id is required")
	}

	res := s.svc.DeleteBill(ctx, req.BillID)
	if !res.Success {
		return nil, resultStatus(res)
	}
	return &billingv1.DeleteBillResponse{BillID: res.Data.ID, Message: res.Message}, nil
}

// GetBill возвращает счёт со строками.
func (s *BillServer) GetBill(ctx context.Context, req *billingv1.GetBillRequest) (*billingv1.GetBillResponse, error) {
	if strings.TrimSpace(req.GetBillID()) == "" {
		return nil, status.Error(codes.InvalidArgument, "bill_id is required")
	}

	b, err := s.svc.GetBill(ctx, req.BillID)
	if err != nil {
		return nil, s.errorStatus("GetBill", req.BillID, err)
	}
	return &billingv1.GetBillResponse{Bill: toProtoBill(b)}, nil
}

// ListBills возвращает все счета или счета одного клиента.
func (s *BillServer) ListBills(ctx context.Context, req *billingv1.ListBillsRequest) (*billingv1.ListBillsResponse, error) {
	var (
		bills []domain.Bill
		err   error
	)
	if req != nil && strings.TrimSpace(req.CustomerID) != "" {
		bills, err = s.svc.ListCustomerBills(ctx, req.CustomerID)
	} else {
		bills, err = s.svc.ListBills(ctx)
	}
	if err != nil {
		return nil, s.errorStatus("ListBills", "", err)
	}
	return &billingv1.ListBillsResponse{Bills: toProtoBills(bills)}, nil
}

// SearchBills ищет счета; ошибки хранилища дают пустой список.
func (s *BillServer) SearchBills(ctx context.Context, req *billingv1.SearchBillsRequest) (*billingv1.SearchBillsResponse, error) {
	if req == nil {
		req = &billingv1.SearchBillsRequest{}
	}
	bills := s.svc.SearchBills(ctx, req.SearchType, req.SearchValue)
	return &billingv1.SearchBillsResponse{Bills: toProtoBills(bills)}, nil
}

// ComputeTotal пересчитывает сумму счёта по сохранённым строкам.
func (s *BillServer) ComputeTotal(ctx context.Context, req *billingv1.ComputeTotalRequest) (*billingv1.ComputeTotalResponse, error) {
	if strings.TrimSpace(req.GetBillID()) == "" {
		return nil, status.Error(codes.InvalidArgument, "bill_id is required")
	}

	total, err := s.svc.ComputeTotal(ctx, req.BillID)
	if err != nil {
		return nil, s.errorStatus("ComputeTotal", req.BillID, err)
	}
	return &billingv1.ComputeTotalResponse{BillID: req.BillID, Total: domain.FormatAmount(total)}, nil
}

// AddBillDetail добавляет позицию в счёт.
func (s *BillServer) AddBillDetail(ctx context.Context, req *billingv1.AddBillDetailRequest) (*billingv1.AddBillDetailResponse, error) {
	if req == nil || req.Item == nil {
		return nil, status.Error(codes.InvalidArgument, "item is required")
	}

	res := s.svc.AddBillDetail(ctx, req.BillID, domain.LineItemRequest{
		ProductID: req.Item.ProductID,
		Quantity:  req.Item.Quantity,
	})
	if !res.Success {
		return nil, resultStatus(res)
	}
	return &billingv1.AddBillDetailResponse{Bill: toProtoBill(res.Data), Message: res.Message}, nil
}

// RemoveBillDetail убирает позицию из счёта.
func (s *BillServer) RemoveBillDetail(ctx context.Context, req *billingv1.RemoveBillDetailRequest) (*billingv1.RemoveBillDetailResponse, error) {
	if req == nil || strings.TrimSpace(req.ProductID) == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	res := s.svc.RemoveBillDetail(ctx, req.BillID, req.ProductID)
	if !res.Success {
		return nil, resultStatus(res)
	}
	return &billingv1.RemoveBillDetailResponse{Bill: toProtoBill(res.Data), Message: res.Message}, nil
}

func (s *BillServer) errorStatus(operation, billID string, err error) error {
	kind := domain.KindOf(err)
	s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"bill_id":   billID,
		"kind":      kind,
	}).Warn("bill request failed")

	if kind == domain.KindStorageFailure {
		return status.Error(codes.Internal, "bill storage failure")
	}
	return status.Error(codeForKind(kind), err.Error())
}

// resultStatus переводит неуспешный Result в gRPC-статус.
// Сообщение хранилища наружу не отдаётся.
func resultStatus(res domain.Result[domain.Bill]) error {
	if res.Kind == domain.KindStorageFailure {
		return status.Error(codes.Internal, "bill storage failure")
	}
	return status.Error(codeForKind(res.Kind), res.Message)
}

func codeForKind(kind domain.ErrorKind) codes.Code {
	switch kind {
	case domain.KindInvalidRequest,
		domain.KindInvalidProduct,
		domain.KindInvalidQuantity,
		domain.KindInvalidDiscount:
		return codes.InvalidArgument
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindConstraintViolation:
		return codes.FailedPrecondition
	case domain.KindAlreadyExists:
		return codes.AlreadyExists
	case domain.KindVersionConflict:
		return codes.Aborted
	default:
		return codes.Internal
	}
}

func fromProtoItems(items []*billingv1.LineItem) ([]domain.LineItemRequest, error) {
	result := make([]domain.LineItemRequest, 0, len(items))
	for idx, item := range items {
		if item == nil {
			return nil, status.Errorf(codes.InvalidArgument, "item[%d] is nil", idx)
		}
		result = append(result, domain.LineItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return result, nil
}

func toProtoBills(bills []domain.Bill) []*billingv1.Bill {
	result := make([]*billingv1.Bill, 0, len(bills))
	for _, b := range bills {
		result = append(result, toProtoBill(b))
	}
	return result
}

func toProtoBill(b domain.Bill) *billingv1.Bill {
	out := &billingv1.Bill{
		ID:              b.ID,
		Number:          b.Number(),
		StaffID:         b.StaffID,
		CustomerID:      b.CustomerID,
		Discount:        domain.FormatAmount(b.DiscountMinor),
		OriginalPrice:   domain.FormatAmount(b.OriginalMinor),
		DiscountedTotal: domain.FormatAmount(b.DiscountedTotalMinor),
		Version:         b.Version,
		CreatedAt:       b.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       b.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Lines:           make([]*billingv1.BillLine, 0, len(b.Details)),
	}
	if b.Staff != nil {
		out.StaffName = b.Staff.FullName
	}
	if b.Customer != nil {
		out.CustomerName = b.Customer.FullName
	}
	for _, d := range b.Details {
		line := &billingv1.BillLine{
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			UnitPrice: domain.FormatAmount(d.UnitPriceMinor),
			Total:     domain.FormatAmount(d.TotalMinor),
		}
		if d.Product != nil {
			line.ProductName = d.Product.Name
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

var (
	_ billingv1.BillServiceServer = (*BillServer)(nil)
	_ BillLifecycle               = (*bill.Service)(nil)
)
