package billingv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	BillService_ServiceName = "shop.billing.v1.BillService"

	BillService_CreateBill_FullMethodName       = "/shop.billing.v1.BillService/CreateBill"
	BillService_UpdateBill_FullMethodName       = "/shop.billing.v1.BillService/UpdateBill"
	BillService_DeleteBill_FullMethodName       = "/shop.billing.v1.BillService/DeleteBill"
	BillService_GetBill_FullMethodName          = "/shop.billing.v1.BillService/GetBill"
	BillService_ListBills_FullMethodName        = "/shop.billing.v1.BillService/ListBills"
	BillService_SearchBills_FullMethodName      = "/shop.billing.v1.BillService/SearchBills"
	BillService_ComputeTotal_FullMethodName     = "/shop.billing.v1.BillService/ComputeTotal"
	BillService_AddBillDetail_FullMethodName    = "/shop.billing.v1.BillService/AddBillDetail"
	BillService_RemoveBillDetail_FullMethodName = "/shop.billing.v1.BillService/RemoveBillDetail"
)

// BillServiceClient — клиентский API BillService.
type BillServiceClient interface {
	CreateBill(ctx context.Context, in *CreateBillRequest, opts ...grpc.CallOption) (*CreateBillResponse, error)
	UpdateBill(ctx context.Context, in *UpdateBillRequest, opts ...grpc.CallOption) (*UpdateBillResponse, error)
	DeleteBill(ctx context.Context, in *DeleteBillRequest, opts ...grpc.CallOption) (*DeleteBillResponse, error)
	GetBill(ctx context.Context, in *GetBillRequest, opts ...grpc.CallOption) (*GetBillResponse, error)
	ListBills(ctx context.Context, in *ListBillsRequest, opts ...grpc.CallOption) (*ListBillsResponse, error)
	SearchBills(ctx context.Context, in *SearchBillsRequest, opts ...grpc.CallOption) (*SearchBillsResponse, error)
	ComputeTotal(ctx context.Context, in *ComputeTotalRequest, opts ...grpc.CallOption) (*ComputeTotalResponse, error)
	AddBillDetail(ctx context.Context, in *AddBillDetailRequest, opts ...grpc.CallOption) (*AddBillDetailResponse, error)
	RemoveBillDetail(ctx context.Context, in *RemoveBillDetailRequest, opts ...grpc.CallOption) (*RemoveBillDetailResponse, error)
}

type billServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBillServiceClient создаёт клиента; все вызовы идут с content-subtype json.
func NewBillServiceClient(cc grpc.ClientConnInterface) BillServiceClient {
	return &billServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *billServiceClient) CreateBill(ctx context.Context, in *CreateBillRequest, opts ...grpc.CallOption) (*CreateBillResponse, error) {
	return invoke[CreateBillResponse](ctx, c.cc, BillService_CreateBill_FullMethodName, in, opts)
}

func (c *billServiceClient) UpdateBill(ctx context.Context, in *UpdateBillRequest, opts ...grpc.CallOption) (*UpdateBillResponse, error) {
	return invoke[UpdateBillResponse](ctx, c.cc, BillService_UpdateBill_FullMethodName, in, opts)
}

func (c *billServiceClient) DeleteBill(ctx context.Context, in *DeleteBillRequest, opts ...grpc.CallOption) (*DeleteBillResponse, error) {
	return invoke[DeleteBillResponse](ctx, c.cc, BillService_DeleteBill_FullMethodName, in, opts)
}

func (c *billServiceClient) GetBill(ctx context.Context, in *GetBillRequest, opts ...grpc.CallOption) (*GetBillResponse, error) {
	return invoke[GetBillResponse](ctx, c.cc, BillService_GetBill_FullMethodName, in, opts)
}

func (c *billServiceClient) ListBills(ctx context.Context, in *ListBillsRequest, opts ...grpc.CallOption) (*ListBillsResponse, error) {
	return invoke[ListBillsResponse](ctx, c.cc, BillService_ListBills_FullMethodName, in, opts)
}

func (c *billServiceClient) SearchBills(ctx context.Context, in *SearchBillsRequest, opts ...grpc.CallOption) (*SearchBillsResponse, error) {
	return invoke[SearchBillsResponse](ctx, c.cc, BillService_SearchBills_FullMethodName, in, opts)
}

func (c *billServiceClient) ComputeTotal(ctx context.Context, in *ComputeTotalRequest, opts ...grpc.CallOption) (*ComputeTotalResponse, error) {
	return invoke[ComputeTotalResponse](ctx, c.cc, BillService_ComputeTotal_FullMethodName, in, opts)
}

func (c *billServiceClient) AddBillDetail(ctx context.Context, in *AddBillDetailRequest, opts ...grpc.CallOption) (*AddBillDetailResponse, error) {
	return invoke[AddBillDetailResponse](ctx, c.cc, BillService_AddBillDetail_FullMethodName, in, opts)
}

func (c *billServiceClient) RemoveBillDetail(ctx context.Context, in *RemoveBillDetailRequest, opts ...grpc.CallOption) (*RemoveBillDetailResponse, error) {
	return invoke[RemoveBillDetailResponse](ctx, c.cc, BillService_RemoveBillDetail_FullMethodName, in, opts)
}

// BillServiceServer — серверная часть BillService.
// Реализации должны встраивать UnimplementedBillServiceServer.
type BillServiceServer interface {
	CreateBill(context.Context, *CreateBillRequest) (*CreateBillResponse, error)
	UpdateBill(context.Context, *UpdateBillRequest) (*UpdateBillResponse, error)
	DeleteBill(context.Context, *DeleteBillRequest) (*DeleteBillResponse, error)
	GetBill(context.Context, *GetBillRequest) (*GetBillResponse, error)
	ListBills(context.Context, *ListBillsRequest) (*ListBillsResponse, error)
	SearchBills(context.Context, *SearchBillsRequest) (*SearchBillsResponse, error)
	ComputeTotal(context.Context, *ComputeTotalRequest) (*ComputeTotalResponse, error)
	AddBillDetail(context.Context, *AddBillDetailRequest) (*AddBillDetailResponse, error)
	RemoveBillDetail(context.Context, *RemoveBillDetailRequest) (*RemoveBillDetailResponse, error)
	mustEmbedUnimplementedBillServiceServer()
}

// UnimplementedBillServiceServer отвечает codes.Unimplemented на все методы.
type UnimplementedBillServiceServer struct{}

func (UnimplementedBillServiceServer) CreateBill(context.Context, *CreateBillRequest) (*CreateBillResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateBill not implemented")
}
func (UnimplementedBillServiceServer) UpdateBill(context.Context, *UpdateBillRequest) (*UpdateBillResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateBill not implemented")
}
func (UnimplementedBillServiceServer) DeleteBill(context.Context, *DeleteBillRequest) (*DeleteBillResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteBill not implemented")
}
func (UnimplementedBillServiceServer) GetBill(context.Context, *GetBillRequest) (*GetBillResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBill not implemented")
}
func (UnimplementedBillServiceServer) ListBills(context.Context, *ListBillsRequest) (*ListBillsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListBills not implemented")
}
func (UnimplementedBillServiceServer) SearchBills(context.Context, *SearchBillsRequest) (*SearchBillsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SearchBills not implemented")
}
func (UnimplementedBillServiceServer) ComputeTotal(context.Context, *ComputeTotalRequest) (*ComputeTotalResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ComputeTotal not implemented")
}
func (UnimplementedBillServiceServer) AddBillDetail(context.Context, *AddBillDetailRequest) (*AddBillDetailResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddBillDetail not implemented")
}
func (UnimplementedBillServiceServer) RemoveBillDetail(context.Context, *RemoveBillDetailRequest) (*RemoveBillDetailResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveBillDetail not implemented")
}
func (UnimplementedBillServiceServer) mustEmbedUnimplementedBillServiceServer() {}

// RegisterBillServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterBillServiceServer(s grpc.ServiceRegistrar, srv BillServiceServer) {
	s.RegisterService(&BillService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(BillServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BillServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BillServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BillService_ServiceDesc описывает сервис для grpc.RegisterService.
var BillService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: BillService_ServiceName,
	HandlerType: (*BillServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateBill",
			Handler: unaryHandler(BillService_CreateBill_FullMethodName, func(s BillServiceServer, ctx context.Context, in *CreateBillRequest) (*CreateBillResponse, error) {
				return s.CreateBill(ctx, in)
			}),
		},
		{
			MethodName: "UpdateBill",
			Handler: unaryHandler(BillService_UpdateBill_FullMethodName, func(s BillServiceServer, ctx context.Context, in *UpdateBillRequest) (*UpdateBillResponse, error) {
				return s.UpdateBill(ctx, in)
			}),
		},
		{
			MethodName: "DeleteBill",
			Handler: unaryHandler(BillService_DeleteBill_FullMethodName, func(s BillServiceServer, ctx context.Context, in *DeleteBillRequest) (*DeleteBillResponse, error) {
				return s.DeleteBill(ctx, in)
			}),
		},
		{
			MethodName: "GetBill",
			Handler: unaryHandler(BillService_GetBill_FullMethodName, func(s BillServiceServer, ctx context.Context, in *GetBillRequest) (*GetBillResponse, error) {
				return s.GetBill(ctx, in)
			}),
		},
		{
			MethodName: "ListBills",
			Handler: unaryHandler(BillService_ListBills_FullMethodName, func(s BillServiceServer, ctx context.Context, in *ListBillsRequest) (*ListBillsResponse, error) {
				return s.ListBills(ctx, in)
			}),
		},
		{
			MethodName: "SearchBills",
			Handler: unaryHandler(BillService_SearchBills_FullMethodName, func(s BillServiceServer, ctx context.Context, in *SearchBillsRequest) (*SearchBillsResponse, error) {
				return s.SearchBills(ctx, in)
			}),
		},
		{
			MethodName: "ComputeTotal",
			Handler: unaryHandler(BillService_ComputeTotal_FullMethodName, func(s BillServiceServer, ctx context.Context, in *ComputeTotalRequest) (*ComputeTotalResponse, error) {
				return s.ComputeTotal(ctx, in)
			}),
		},
		{
			MethodName: "AddBillDetail",
			Handler: unaryHandler(BillService_AddBillDetail_FullMethodName, func(s BillServiceServer, ctx context.Context, in *AddBillDetailRequest) (*AddBillDetailResponse, error) {
				return s.AddBillDetail(ctx, in)
			}),
		},
		{
			MethodName: "RemoveBillDetail",
			Handler: unaryHandler(BillService_RemoveBillDetail_FullMethodName, func(s BillServiceServer, ctx context.Context, in *RemoveBillDetailRequest) (*RemoveBillDetailResponse, error) {
				return s.RemoveBillDetail(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shop/billing/v1/bill_service.json",
}
