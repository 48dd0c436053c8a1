package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "deaddrop.SourceService"

const (
	GenerateMethod      = "/" + ServiceName + "/Generate"
	CreateMethod        = "/" + ServiceName + "/Create"
	LoginMethod         = "/" + ServiceName + "/Login"
	LogoutMethod        = "/" + ServiceName + "/Logout"
	LookupMethod        = "/" + ServiceName + "/Lookup"
	SubmitMethod        = "/" + ServiceName + "/Submit"
	DeleteAllMethod     = "/" + ServiceName + "/DeleteAll"
	MetadataMethod      = "/" + ServiceName + "/Metadata"
	JournalistKeyMethod = "/" + ServiceName + "/JournalistKey"
)

// SourceServiceServer is implemented by the deaddrop server.
type SourceServiceServer interface {
	Generate(context.Context, *Empty) (*GenerateResponse, error)
	Create(context.Context, *Empty) (*Empty, error)
	Login(context.Context, *LoginRequest) (*Empty, error)
	Logout(context.Context, *Empty) (*LogoutResponse, error)
	Lookup(context.Context, *Empty) (*LookupResponse, error)
	Submit(grpc.ClientStreamingServer[SubmitChunk, SubmitResponse]) error
	DeleteAll(context.Context, *Empty) (*DeleteAllResponse, error)
	Metadata(context.Context, *Empty) (*MetadataResponse, error)
	JournalistKey(context.Context, *Empty) (*JournalistKeyResponse, error)
}

func RegisterSourceServiceServer(s grpc.ServiceRegistrar, srv SourceServiceServer) {
	s.RegisterService(&SourceServiceDesc, srv)
}

// unary builds a method handler for a request type Req.
func unary[Req any](method string, call func(SourceServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SourceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SourceServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func submitHandler(srv any, stream grpc.ServerStream) error {
	return srv.(SourceServiceServer).Submit(&grpc.GenericServerStream[SubmitChunk, SubmitResponse]{ServerStream: stream})
}

var SourceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SourceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: unary(GenerateMethod, func(s SourceServiceServer, ctx context.Context, in *Empty) (any, error) {
			return s.Generate(ctx, in)
		})},
		{MethodName: "Create", Handler: unary(CreateMethod, func(s SourceServiceServer, ctx context.Context, in *Empty) (any, error) {
			return s.Create(ctx, in)
		})},
		{MethodName: "Login", Handler: unary(LoginMethod, func(s SourceServiceServer, ctx context.Context, in *LoginRequest) (any, error) {
			return s.Login(ctx, in)
		})},
		{MethodName: "Logout", Handler: unary(LogoutMethod, func(s SourceServiceServer, ctx context.Context, in *Empty) (any, error) {
			return s.Logout(ctx, in)
		})},
		{MethodName: "Lookup", Handler: unary(LookupMethod, func(s SourceServiceServer, ctx context.Context, in *Empty) (any, error) {
			return s.Lookup(ctx, in)
		})},
		{MethodName: "DeleteAll", Handler: unary(DeleteAllMethod, func(s SourceServiceServer, ctx context.Context, in *Empty) (any, error) {
			return s.DeleteAll(ctx, in)
		})},
		{MethodName: "Metadata", Handler: unary(MetadataMethod, func(s SourceServiceServer, ctx context.Context, in *Empty) (any, error) {
			return s.Metadata(ctx, in)
		})},
		{MethodName: "JournalistKey", Handler: unary(JournalistKeyMethod, func(s SourceServiceServer, ctx context.Context, in *Empty) (any, error) {
			return s.JournalistKey(ctx, in)
		})},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Submit", Handler: submitHandler, ClientStreams: true},
	},
}

// SourceServiceClient is the client API for deaddrop.SourceService.
type SourceServiceClient interface {
	Generate(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*GenerateResponse, error)
	Create(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*Empty, error)
	Logout(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*LogoutResponse, error)
	Lookup(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*LookupResponse, error)
	Submit(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[SubmitChunk, SubmitResponse], error)
	DeleteAll(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*DeleteAllResponse, error)
	Metadata(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*MetadataResponse, error)
	JournalistKey(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*JournalistKeyResponse, error)
}

type sourceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSourceServiceClient returns a client that always speaks the JSON codec.
func NewSourceServiceClient(cc grpc.ClientConnInterface) SourceServiceClient {
	return &sourceServiceClient{cc: cc}
}

func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sourceServiceClient) Generate(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*GenerateResponse, error) {
	return invoke[GenerateResponse](ctx, c.cc, GenerateMethod, in, opts)
}

func (c *sourceServiceClient) Create(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, CreateMethod, in, opts)
}

func (c *sourceServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, LoginMethod, in, opts)
}

func (c *sourceServiceClient) Logout(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, LogoutMethod, in, opts)
}

func (c *sourceServiceClient) Lookup(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*LookupResponse, error) {
	return invoke[LookupResponse](ctx, c.cc, LookupMethod, in, opts)
}

func (c *sourceServiceClient) DeleteAll(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*DeleteAllResponse, error) {
	return invoke[DeleteAllResponse](ctx, c.cc, DeleteAllMethod, in, opts)
}

func (c *sourceServiceClient) Metadata(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*MetadataResponse, error) {
	return invoke[MetadataResponse](ctx, c.cc, MetadataMethod, in, opts)
}

func (c *sourceServiceClient) JournalistKey(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*JournalistKeyResponse, error) {
	return invoke[JournalistKeyResponse](ctx, c.cc, JournalistKeyMethod, in, opts)
}

func (c *sourceServiceClient) Submit(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[SubmitChunk, SubmitResponse], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &SourceServiceDesc.Streams[0], SubmitMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[SubmitChunk, SubmitResponse]{ClientStream: stream}, nil
}
