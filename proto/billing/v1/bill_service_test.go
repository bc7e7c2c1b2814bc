package billingv1

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

type fakeClientConn struct {
	invoke func(context.Context, string, any, any, ...grpc.CallOption) error
}

func (f *fakeClientConn) Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error {
	if f.invoke == nil {
		return errors.New("unexpected Invoke call")
	}
	return f.invoke(ctx, method, args, reply, opts...)
}

func (f *fakeClientConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not implemented")
}

type grpcTestBillService struct {
	UnimplementedBillServiceServer
}

func (s *grpcTestBillService) CreateBill(_ context.Context, req *CreateBillRequest) (*CreateBillResponse, error) {
	return &CreateBillResponse{Bill: &Bill{ID: "bill-" + req.CustomerID}}, nil
}

func (s *grpcTestBillService) GetBill(_ context.Context, req *GetBillRequest) (*GetBillResponse, error) {
	return &GetBillResponse{Bill: &Bill{ID: req.GetBillID()}}, nil
}

func clientCalls(client BillServiceClient, ctx context.Context) map[string]func() error {
	return map[string]func() error{
		"CreateBill":       func() error { _, err := client.CreateBill(ctx, &CreateBillRequest{}); return err },
		"UpdateBill":       func() error { _, err := client.UpdateBill(ctx, &UpdateBillRequest{}); return err },
		"DeleteBill":       func() error { _, err := client.DeleteBill(ctx, &DeleteBillRequest{}); return err },
		"GetBill":          func() error { _, err := client.GetBill(ctx, &GetBillRequest{}); return err },
		"ListBills":        func() error { _, err := client.ListBills(ctx, &ListBillsRequest{}); return err },
		"SearchBills":      func() error { _, err := client.SearchBills(ctx, &SearchBillsRequest{}); return err },
		"ComputeTotal":     func() error { _, err := client.ComputeTotal(ctx, &ComputeTotalRequest{}); return err },
		"AddBillDetail":    func() error { _, err := client.AddBillDetail(ctx, &AddBillDetailRequest{}); return err },
		"RemoveBillDetail": func() error { _, err := client.RemoveBillDetail(ctx, &RemoveBillDetailRequest{}); return err },
	}
}

func TestBillServiceClientMethods(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		methods := map[string]int{}
		conn := &fakeClientConn{
			invoke: func(_ context.Context, method string, _ any, _ any, opts ...grpc.CallOption) error {
				methods[method]++
				found := false
				for _, opt := range opts {
					if sub, ok := opt.(grpc.ContentSubtypeCallOption); ok && sub.ContentSubtype == CodecName {
						found = true
					}
				}
				if !found {
					t.Fatalf("%s: json content subtype not set", method)
				}
				return nil
			},
		}

		client := NewBillServiceClient(conn)
		for name, call := range clientCalls(client, context.Background()) {
			if err := call(); err != nil {
				t.Fatalf("%s failed: %v", name, err)
			}
		}

		for _, method := range []string{
			BillService_CreateBill_FullMethodName,
			BillService_UpdateBill_FullMethodName,
			BillService_DeleteBill_FullMethodName,
			BillService_GetBill_FullMethodName,
			BillService_ListBills_FullMethodName,
			BillService_SearchBills_FullMethodName,
			BillService_ComputeTotal_FullMethodName,
			BillService_AddBillDetail_FullMethodName,
			BillService_RemoveBillDetail_FullMethodName,
		} {
			if methods[method] != 1 {
				t.Fatalf("expected method %s called exactly once, got %d", method, methods[method])
			}
		}
	})

	t.Run("error", func(t *testing.T) {
		conn := &fakeClientConn{
			invoke: func(context.Context, string, any, any, ...grpc.CallOption) error {
				return status.Error(codes.Internal, "boom")
			},
		}
		client := NewBillServiceClient(conn)

		for name, call := range clientCalls(client, context.Background()) {
			if err := call(); status.Code(err) != codes.Internal {
				t.Fatalf("%s expected Internal error, got %v", name, err)
			}
		}
	})
}

func TestUnimplementedBillServiceServer(t *testing.T) {
	var srv UnimplementedBillServiceServer
	ctx := context.Background()

	for name, call := range map[string]func() error{
		"CreateBill":       func() error { _, err := srv.CreateBill(ctx, &CreateBillRequest{}); return err },
		"UpdateBill":       func() error { _, err := srv.UpdateBill(ctx, &UpdateBillRequest{}); return err },
		"DeleteBill":       func() error { _, err := srv.DeleteBill(ctx, &DeleteBillRequest{}); return err },
		"GetBill":          func() error { _, err := srv.GetBill(ctx, &GetBillRequest{}); return err },
		"ListBills":        func() error { _, err := srv.ListBills(ctx, &ListBillsRequest{}); return err },
		"SearchBills":      func() error { _, err := srv.SearchBills(ctx, &SearchBillsRequest{}); return err },
		"ComputeTotal":     func() error { _, err := srv.ComputeTotal(ctx, &ComputeTotalRequest{}); return err },
		"AddBillDetail":    func() error { _, err := srv.AddBillDetail(ctx, &AddBillDetailRequest{}); return err },
		"RemoveBillDetail": func() error { _, err := srv.RemoveBillDetail(ctx, &RemoveBillDetailRequest{}); return err },
	} {
		if err := call(); status.Code(err) != codes.Unimplemented {
			t.Fatalf("%s expected Unimplemented error, got %v", name, err)
		}
	}

	srv.mustEmbedUnimplementedBillServiceServer()
}

func TestServiceDescHandlers(t *testing.T) {
	srv := &grpcTestBillService{}
	ctx := context.Background()

	if len(BillService_ServiceDesc.Methods) != 9 {
		t.Fatalf("expected 9 methods, got %d", len(BillService_ServiceDesc.Methods))
	}

	for _, desc := range BillService_ServiceDesc.Methods {
		desc := desc
		t.Run(desc.MethodName, func(t *testing.T) {
			if _, err := desc.Handler(srv, ctx, func(any) error { return errors.New("decode failed") }, nil); err == nil {
				t.Fatal("expected decode error")
			}

			decode := func(v any) error { return json.Unmarshal([]byte(`{}`), v) }
			_, errDirect := desc.Handler(srv, ctx, decode, nil)

			wantMethod := "/" + BillService_ServiceName + "/" + desc.MethodName
			interceptorCalled := false
			_, errIntercepted := desc.Handler(srv, ctx, decode, func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
				interceptorCalled = true
				if info.FullMethod != wantMethod {
					t.Fatalf("unexpected full method: got %s want %s", info.FullMethod, wantMethod)
				}
				return handler(ctx, req)
			})
			if !interceptorCalled {
				t.Fatal("interceptor was not called")
			}
			if status.Code(errDirect) != status.Code(errIntercepted) {
				t.Fatalf("interceptor changed the result: %v vs %v", errDirect, errIntercepted)
			}

			switch desc.MethodName {
			case "CreateBill", "GetBill":
				if errDirect != nil {
					t.Fatalf("implemented method failed: %v", errDirect)
				}
			default:
				if status.Code(errDirect) != codes.Unimplemented {
					t.Fatalf("expected Unimplemented, got %v", errDirect)
				}
			}
		})
	}
}

func TestJSONCodec(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	if codec == nil {
		t.Fatal("json codec is not registered")
	}

	in := &CreateBillRequest{
		StaffID:    "staff-1",
		CustomerID: "customer-1",
		Discount:   "5.00",
		Items:      []*LineItem{{ProductID: "P1", Quantity: 2}},
	}
	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out CreateBillRequest
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.CustomerID != "customer-1" || len(out.Items) != 1 || out.Items[0].Quantity != 2 {
		t.Fatalf("unexpected decoded request: %+v", out)
	}

	var empty GetBillRequest
	if err := codec.Unmarshal(nil, &empty); err != nil {
		t.Fatalf("empty payload must decode to zero message: %v", err)
	}
	if err := codec.Unmarshal([]byte("{"), &empty); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if _, err := codec.Marshal(func() {}); err == nil {
		t.Fatal("expected error for unsupported value")
	}
}
