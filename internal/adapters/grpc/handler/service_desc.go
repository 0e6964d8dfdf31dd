package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName は LifecycleService の完全修飾名です。
const ServiceName = "hr.lifecycle.v1.LifecycleService"

// LifecycleServer は LifecycleService のサーバー側インターフェースです。
// リクエストとレスポンスはいずれも google.protobuf.Struct です。
type LifecycleServer interface {
	CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ActivateContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetCurrentContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListContracts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TerminateContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ProposeExtension(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AcceptExtension(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RejectExtension(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetExtension(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListExtensions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SubmitResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ApproveResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	FinalizeResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WithdrawResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListResignations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type lifecycleMethod func(srv LifecycleServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call lifecycleMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LifecycleServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LifecycleServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// LifecycleServiceDesc は LifecycleService の grpc.ServiceDesc です。
var LifecycleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LifecycleServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateEmployee", LifecycleServer.CreateEmployee),
		unaryMethod("GetEmployee", LifecycleServer.GetEmployee),
		unaryMethod("ListEmployees", LifecycleServer.ListEmployees),
		unaryMethod("CreateContract", LifecycleServer.CreateContract),
		unaryMethod("ActivateContract", LifecycleServer.ActivateContract),
		unaryMethod("GetContract", LifecycleServer.GetContract),
		unaryMethod("GetCurrentContract", LifecycleServer.GetCurrentContract),
		unaryMethod("ListContracts", LifecycleServer.ListContracts),
		unaryMethod("TerminateContract", LifecycleServer.TerminateContract),
		unaryMethod("ProposeExtension", LifecycleServer.ProposeExtension),
		unaryMethod("AcceptExtension", LifecycleServer.AcceptExtension),
		unaryMethod("RejectExtension", LifecycleServer.RejectExtension),
		unaryMethod("GetExtension", LifecycleServer.GetExtension),
		unaryMethod("ListExtensions", LifecycleServer.ListExtensions),
		unaryMethod("SubmitResignation", LifecycleServer.SubmitResignation),
		unaryMethod("ApproveResignation", LifecycleServer.ApproveResignation),
		unaryMethod("FinalizeResignation", LifecycleServer.FinalizeResignation),
		unaryMethod("WithdrawResignation", LifecycleServer.WithdrawResignation),
		unaryMethod("GetResignation", LifecycleServer.GetResignation),
		unaryMethod("ListResignations", LifecycleServer.ListResignations),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hr/lifecycle/v1/lifecycle.proto",
}

// RegisterLifecycleServiceServer は srv を LifecycleService として登録します。
func RegisterLifecycleServiceServer(s grpc.ServiceRegistrar, srv LifecycleServer) {
	s.RegisterService(&LifecycleServiceDesc, srv)
}

// LifecycleClient は LifecycleService を呼び出すクライアントです。
type LifecycleClient struct {
	cc grpc.ClientConnInterface
}

// NewLifecycleClient は LifecycleClient を生成します。
func NewLifecycleClient(cc grpc.ClientConnInterface) *LifecycleClient {
	return &LifecycleClient{cc: cc}
}

// Call は method を呼び出します。method は "ProposeExtension" のようなメソッド名です。
func (c *LifecycleClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
