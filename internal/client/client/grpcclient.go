package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/deaddrop/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const DefaultChunkSize = 64 * 1024

type GRPCClient struct {
	endpointURL string
	chunkSize   int
	conn        *grpc.ClientConn
	client      rpc.SourceServiceClient

	mu    sync.Mutex
	token string
}

func NewSourceClient(endpointURL string, chunkSize int, opts ...grpc.DialOption) (*GRPCClient, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	c := &GRPCClient{endpointURL: endpointURL, chunkSize: chunkSize}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.sessionInterceptor),
		grpc.WithStreamInterceptor(s.sessionStreamInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewSourceServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// Token returns the session token the next call will send.
func (s *GRPCClient) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *GRPCClient) withSession(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(rpc.SessionKey, s.Token())
	return metadata.NewOutgoingContext(ctx, md)
}

// adopt stores the successor token if the server sent one.
func (s *GRPCClient) adopt(md metadata.MD) {
	vals := md.Get(rpc.SessionKey)
	if len(vals) == 0 {
		return
	}
	s.mu.Lock()
	s.token = vals[len(vals)-1]
	s.mu.Unlock()
}

func (s *GRPCClient) sessionInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	var header metadata.MD
	opts = append(opts, grpc.Header(&header))

	err := invoker(s.withSession(ctx), method, req, reply, cc, opts...)
	s.adopt(header)
	return err
}

func (s *GRPCClient) sessionStreamInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(s.withSession(ctx), desc, cc, method, opts...)
}

func (s *GRPCClient) Generate(ctx context.Context) (string, error) {
	resp, err := s.client.Generate(ctx, &rpc.Empty{})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Codename, nil
}

func (s *GRPCClient) Create(ctx context.Context) error {
	if _, err := s.client.Create(ctx, &rpc.Empty{}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Login(ctx context.Context, codename string) error {
	if _, err := s.client.Login(ctx, &rpc.LoginRequest{Codename: codename}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Logout(ctx context.Context) (string, error) {
	resp, err := s.client.Logout(ctx, &rpc.Empty{})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Message, nil
}

func (s *GRPCClient) Lookup(ctx context.Context) (*rpc.LookupResponse, error) {
	resp, err := s.client.Lookup(ctx, &rpc.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) DeleteAll(ctx context.Context) (int, error) {
	resp, err := s.client.DeleteAll(ctx, &rpc.Empty{})
	if err != nil {
		return 0, s.mapError(err)
	}
	return resp.Deleted, nil
}

func (s *GRPCClient) Metadata(ctx context.Context) (*rpc.MetadataResponse, error) {
	resp, err := s.client.Metadata(ctx, &rpc.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) JournalistKey(ctx context.Context) ([]byte, error) {
	resp, err := s.client.JournalistKey(ctx, &rpc.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.PublicKey, nil
}

// Submit streams message and the optional document in chunkSize frames. The
// first frame carries the message and file name.
func (s *GRPCClient) Submit(ctx context.Context, message string, file *Upload) (*rpc.SubmitResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.client.Submit(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}

	first := &rpc.SubmitChunk{Message: message}
	if file != nil {
		first.Filename = file.Name
	}

	if err := s.send(stream, first, file); err != nil {
		return nil, err
	}

	resp, err := stream.CloseAndRecv()
	if md, herr := stream.Header(); herr == nil {
		s.adopt(md)
	}
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) send(stream grpc.ClientStreamingClient[rpc.SubmitChunk, rpc.SubmitResponse], first *rpc.SubmitChunk, file *Upload) error {
	if file == nil {
		return s.sendFrame(stream, first)
	}

	buf := make([]byte, s.chunkSize)
	chunk := first
	for {
		n, rerr := io.ReadFull(file.Body, buf)
		if n > 0 {
			chunk.Data = append([]byte(nil), buf[:n]...)
			if err := s.sendFrame(stream, chunk); err != nil {
				return err
			}
			chunk = &rpc.SubmitChunk{}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read %s: %w", file.Name, rerr)
		}
	}
	if chunk == first {
		return s.sendFrame(stream, first)
	}
	return nil
}

// sendFrame returns nil on io.EOF so the caller surfaces the server status
// from CloseAndRecv.
func (s *GRPCClient) sendFrame(stream grpc.ClientStreamingClient[rpc.SubmitChunk, rpc.SubmitResponse], chunk *rpc.SubmitChunk) error {
	err := stream.Send(chunk)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return s.mapError(err)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return &Error{Kind: ErrUnauthorized, Message: st.Message()}
	case codes.Unavailable, codes.DeadlineExceeded:
		return &Error{Kind: ErrUnavailable, Message: st.Message()}
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists, codes.NotFound:
		return &Error{Kind: ErrRejected, Message: st.Message()}
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
