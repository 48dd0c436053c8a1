package grpc

import (
	"context"

	"github.com/dmitrijs2005/deaddrop/internal/rpc"
	"github.com/dmitrijs2005/deaddrop/internal/server/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type ctxKey string

const sessionStateKey ctxKey = "sessionState"

// withSession decodes the incoming session token and attaches the resulting
// state and the session policy to ctx. Unreadable tokens count as anonymous.
func (s *GRPCServer) withSession(ctx context.Context) context.Context {
	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(rpc.SessionKey); len(values) > 0 {
			token = values[0]
		}
	}

	st, err := s.tokens.Decode(token)
	if err != nil {
		s.logger.Debug(ctx, "discarding unreadable session token", "error", err)
		st = session.State{}
	}

	ctx = session.WithPolicy(ctx, s.policy)
	return context.WithValue(ctx, sessionStateKey, st)
}

func stateFrom(ctx context.Context) session.State {
	st, _ := ctx.Value(sessionStateKey).(session.State)
	return st
}

func (s *GRPCServer) sessionInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	return handler(s.withSession(ctx), req)
}

type sessionStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *sessionStream) Context() context.Context { return w.ctx }

func (s *GRPCServer) sessionStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return handler(srv, &sessionStream{ServerStream: ss, ctx: s.withSession(ss.Context())})
}
