package api

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/tessellate"
)

// LayerServiceName is the fully-qualified gRPC service name.
const LayerServiceName = "globe.v1.LayerService"

// Full method names.
const (
	MethodGetEdgeLayer = "/" + LayerServiceName + "/GetEdgeLayer"
	MethodGetFillLayer = "/" + LayerServiceName + "/GetFillLayer"
	MethodListPins     = "/" + LayerServiceName + "/ListPins"
)

// LayerServer is the server API of globe.v1.LayerService. Layers travel
// as little-endian float32 xyz triples.
type LayerServer interface {
	GetEdgeLayer(context.Context, *wrapperspb.DoubleValue) (*wrapperspb.BytesValue, error)
	GetFillLayer(context.Context, *wrapperspb.DoubleValue) (*wrapperspb.BytesValue, error)
	ListPins(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// LayerServiceDesc describes globe.v1.LayerService. The messages are
// protobuf well-known types, so no generated code is needed.
var LayerServiceDesc = grpc.ServiceDesc{
	ServiceName: LayerServiceName,
	HandlerType: (*LayerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetEdgeLayer", Handler: getEdgeLayerHandler},
		{MethodName: "GetFillLayer", Handler: getFillLayerHandler},
		{MethodName: "ListPins", Handler: listPinsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "globe/v1/layer.proto",
}

// RegisterLayerServer registers srv on s.
func RegisterLayerServer(s grpc.ServiceRegistrar, srv LayerServer) {
	s.RegisterService(&LayerServiceDesc, srv)
}

func getEdgeLayerHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.DoubleValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LayerServer).GetEdgeLayer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetEdgeLayer}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LayerServer).GetEdgeLayer(ctx, req.(*wrapperspb.DoubleValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getFillLayerHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.DoubleValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LayerServer).GetFillLayer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetFillLayer}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LayerServer).GetFillLayer(ctx, req.(*wrapperspb.DoubleValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listPinsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LayerServer).ListPins(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListPins}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LayerServer).ListPins(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// GetEdgeLayer returns the outline layer for the requested density.
func (s *Service) GetEdgeLayer(ctx context.Context, in *wrapperspb.DoubleValue) (*wrapperspb.BytesValue, error) {
	return s.layerBytes(ctx, in, tessellate.KindEdge)
}

// GetFillLayer returns the interior layer for the requested density.
func (s *Service) GetFillLayer(ctx context.Context, in *wrapperspb.DoubleValue) (*wrapperspb.BytesValue, error) {
	return s.layerBytes(ctx, in, tessellate.KindFill)
}

func (s *Service) layerBytes(ctx context.Context, in *wrapperspb.DoubleValue, kind tessellate.Kind) (*wrapperspb.BytesValue, error) {
	layers, err := s.Layers(ctx, in.GetValue())
	if err != nil {
		loggerFrom(ctx, s.log).Warn(ctx, "layer request failed",
			logging.String("kind", string(kind)),
			logging.Float("tile_deg", in.GetValue()),
			logging.Err(err),
		)
		return nil, ToStatusError(err)
	}
	buf := layers.Edge
	if kind == tessellate.KindFill {
		buf = layers.Fill
	}
	data, err := buf.MarshalBinary()
	if err != nil {
		return nil, ToStatusError(err)
	}
	return wrapperspb.Bytes(data), nil
}

// ListPins returns one struct per configured pin.
func (s *Service) ListPins(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	views := s.Pins()
	values := make([]interface{}, 0, len(views))
	for _, v := range views {
		values = append(values, map[string]interface{}{
			"lon":         v.Pin.Lon,
			"lat":         v.Pin.Lat,
			"name":        v.Pin.Name,
			"address":     v.Pin.Address,
			"phone":       v.Pin.Phone,
			"always_show": v.Pin.AlwaysShow,
			"anchor":      []interface{}{v.Anchor[0], v.Anchor[1], v.Anchor[2]},
			"label_html":  v.LabelHTML,
			"visible":     v.Visible,
		})
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode pins: %w", err))
	}
	return list, nil
}

// NewGRPCServer returns a server with LayerService registered behind the
// request-id, tracing and metrics interceptors.
func NewGRPCServer(svc *Service, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(svc.log),
			TracingUnaryServerInterceptor(),
			svc.metrics.UnaryServerInterceptor(),
		),
	}
	server := grpc.NewServer(append(base, opts...)...)
	RegisterLayerServer(server, svc)
	return server
}

// LayerClient is the client API of globe.v1.LayerService.
type LayerClient struct {
	cc grpc.ClientConnInterface
}

// NewLayerClient wraps cc.
func NewLayerClient(cc grpc.ClientConnInterface) *LayerClient {
	return &LayerClient{cc: cc}
}

// GetEdgeLayer fetches and decodes the outline layer.
func (c *LayerClient) GetEdgeLayer(ctx context.Context, tileDeg float64, opts ...grpc.CallOption) (tessellate.Buffer, error) {
	return c.layer(ctx, MethodGetEdgeLayer, tileDeg, opts...)
}

// GetFillLayer fetches and decodes the interior layer.
func (c *LayerClient) GetFillLayer(ctx context.Context, tileDeg float64, opts ...grpc.CallOption) (tessellate.Buffer, error) {
	return c.layer(ctx, MethodGetFillLayer, tileDeg, opts...)
}

func (c *LayerClient) layer(ctx context.Context, method string, tileDeg float64, opts ...grpc.CallOption) (tessellate.Buffer, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, method, wrapperspb.Double(tileDeg), out, opts...); err != nil {
		return nil, err
	}
	var buf tessellate.Buffer
	if err := buf.UnmarshalBinary(out.GetValue()); err != nil {
		return nil, err
	}
	return buf, nil
}

// ListPins fetches the pin list.
func (c *LayerClient) ListPins(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, MethodListPins, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
