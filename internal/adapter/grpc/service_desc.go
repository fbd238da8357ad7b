package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ValuationServiceName is the fully-qualified gRPC service name
const ValuationServiceName = "wealthflow.valuation.v1.ValuationService"

const (
	methodGetCurrentValue       = "GetCurrentValue"
	methodGetGrowthRate         = "GetGrowthRate"
	methodInvalidateScriptCache = "InvalidateScriptCache"
	methodClearScriptCache      = "ClearScriptCache"
	methodRunScript             = "RunScript"
	methodGetNetWorth           = "GetNetWorth"
)

// ValuationServiceServer is the server API for the valuation service.
// Messages are protobuf well-known types so no generated code is needed.
type ValuationServiceServer interface {
	// GetCurrentValue takes {asset_id, bypass_cache, ttl_seconds}
	GetCurrentValue(context.Context, *structpb.Struct) (*wrapperspb.DoubleValue, error)
	// GetGrowthRate takes an asset id
	GetGrowthRate(context.Context, *wrapperspb.StringValue) (*wrapperspb.DoubleValue, error)
	// InvalidateScriptCache takes the script source whose entry is dropped
	InvalidateScriptCache(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ClearScriptCache(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	// RunScript executes a script body without touching the cache or any asset
	RunScript(context.Context, *wrapperspb.StringValue) (*wrapperspb.DoubleValue, error)
	GetNetWorth(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterValuationServiceServer registers srv on s
func RegisterValuationServiceServer(s grpc.ServiceRegistrar, srv ValuationServiceServer) {
	s.RegisterService(&ValuationServiceDesc, srv)
}

// ValuationServiceDesc describes the valuation service for grpc.Server
var ValuationServiceDesc = grpc.ServiceDesc{
	ServiceName: ValuationServiceName,
	HandlerType: (*ValuationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: methodGetCurrentValue,
			Handler:    unary(methodGetCurrentValue, ValuationServiceServer.GetCurrentValue),
		},
		{
			MethodName: methodGetGrowthRate,
			Handler:    unary(methodGetGrowthRate, ValuationServiceServer.GetGrowthRate),
		},
		{
			MethodName: methodInvalidateScriptCache,
			Handler:    unary(methodInvalidateScriptCache, ValuationServiceServer.InvalidateScriptCache),
		},
		{
			MethodName: methodClearScriptCache,
			Handler:    unary(methodClearScriptCache, ValuationServiceServer.ClearScriptCache),
		},
		{
			MethodName: methodRunScript,
			Handler:    unary(methodRunScript, ValuationServiceServer.RunScript),
		},
		{
			MethodName: methodGetNetWorth,
			Handler:    unary(methodGetNetWorth, ValuationServiceServer.GetNetWorth),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wealthflow/valuation/v1/valuation.proto",
}

// unary adapts a typed server method into a grpc.MethodHandler
func unary[Req any, Resp any](method string, call func(ValuationServiceServer, context.Context, *Req) (Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ValuationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ValuationServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func fullMethod(method string) string {
	return "/" + ValuationServiceName + "/" + method
}

// ValuationServiceClient is the client API for the valuation service
type ValuationServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewValuationServiceClient creates a client over cc
func NewValuationServiceClient(cc grpc.ClientConnInterface) *ValuationServiceClient {
	return &ValuationServiceClient{cc: cc}
}

// GetCurrentValue calls ValuationService.GetCurrentValue
func (c *ValuationServiceClient) GetCurrentValue(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.DoubleValue, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.cc.Invoke(ctx, fullMethod(methodGetCurrentValue), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetGrowthRate calls ValuationService.GetGrowthRate
func (c *ValuationServiceClient) GetGrowthRate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.DoubleValue, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.cc.Invoke(ctx, fullMethod(methodGetGrowthRate), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// InvalidateScriptCache calls ValuationService.InvalidateScriptCache
func (c *ValuationServiceClient) InvalidateScriptCache(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, fullMethod(methodInvalidateScriptCache), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearScriptCache calls ValuationService.ClearScriptCache
func (c *ValuationServiceClient) ClearScriptCache(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, fullMethod(methodClearScriptCache), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RunScript calls ValuationService.RunScript
func (c *ValuationServiceClient) RunScript(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.DoubleValue, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.cc.Invoke(ctx, fullMethod(methodRunScript), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetNetWorth calls ValuationService.GetNetWorth
func (c *ValuationServiceClient) GetNetWorth(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(methodGetNetWorth), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
