package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/deaddrop/internal/buildinfo"
	"github.com/dmitrijs2005/deaddrop/internal/logging"
	"github.com/dmitrijs2005/deaddrop/internal/rpc"
	"github.com/dmitrijs2005/deaddrop/internal/server/auth"
	"github.com/dmitrijs2005/deaddrop/internal/server/models"
	"github.com/dmitrijs2005/deaddrop/internal/server/services"
	"github.com/dmitrijs2005/deaddrop/internal/server/session"
	"github.com/dmitrijs2005/deaddrop/internal/server/submission"
	"google.golang.org/grpc"
)

// SourceAPI is the subset of services.SourceService the transport calls.
type SourceAPI interface {
	GenerateCodename(ctx context.Context, st session.State) (session.State, string, error)
	CreateSource(ctx context.Context, st session.State) (session.State, error)
	ValidateAndLogin(ctx context.Context, raw string) (session.State, string, error)
	Authorize(ctx context.Context, st session.State) (session.State, *models.Source, error)
	Logout(ctx context.Context, st session.State) session.State
	Lookup(ctx context.Context, identity string) (*services.LookupResult, error)
	Submit(ctx context.Context, identity, message string, file *submission.File) (*services.SubmissionResult, error)
	DeleteAll(ctx context.Context, identity string) (int, error)
	JournalistKey() []byte
	Metadata() buildinfo.Info
}

type GRPCServer struct {
	address string
	sources SourceAPI
	tokens  *auth.JWTManager
	policy  session.Policy
	logger  logging.Logger
	opts    []grpc.ServerOption
}

func NewGRPCServer(a string, l logging.Logger, sources SourceAPI, tokens *auth.JWTManager, policy session.Policy, opts ...grpc.ServerOption) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		sources: sources,
		tokens:  tokens,
		policy:  policy,
		opts:    opts,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	opts := append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.sessionInterceptor),
		grpc.ChainStreamInterceptor(s.sessionStreamInterceptor),
	}, s.opts...)
	srv := grpc.NewServer(opts...)
	rpc.RegisterSourceServiceServer(srv, &handler{s: s})
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on l until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, l net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", l.Addr().String())

	return srv.Serve(l)
}
