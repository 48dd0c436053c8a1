package grpc

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/rpc"
	"github.com/dmitrijs2005/deaddrop/internal/server/models"
	"github.com/dmitrijs2005/deaddrop/internal/server/session"
	"github.com/dmitrijs2005/deaddrop/internal/server/submission"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var errUploadAbandoned = errors.New("upload abandoned")

type handler struct {
	s *GRPCServer
}

// sessionHeader encodes st as the response session token.
func (h *handler) sessionHeader(st session.State) (metadata.MD, error) {
	token, err := h.s.tokens.Encode(st)
	if err != nil {
		return nil, err
	}
	return metadata.Pairs(rpc.SessionKey, token), nil
}

func (h *handler) setSession(ctx context.Context, st session.State) error {
	md, err := h.sessionHeader(st)
	if err != nil {
		return h.s.toStatus(ctx, err)
	}
	if err := grpc.SetHeader(ctx, md); err != nil {
		return h.s.toStatus(ctx, err)
	}
	return nil
}

// authorize resolves the request session and always returns the successor
// token, including the cleared one after expiry.
func (h *handler) authorize(ctx context.Context, send func(session.State) error) (*models.Source, error) {
	st, src, err := h.s.sources.Authorize(ctx, stateFrom(ctx))
	if serr := send(st); serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, h.s.toStatus(ctx, err)
	}
	return src, nil
}

func (h *handler) unarySession(ctx context.Context) func(session.State) error {
	return func(st session.State) error { return h.setSession(ctx, st) }
}

func (h *handler) Generate(ctx context.Context, _ *rpc.Empty) (*rpc.GenerateResponse, error) {
	st, cn, err := h.s.sources.GenerateCodename(ctx, stateFrom(ctx))
	if serr := h.setSession(ctx, st); serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, h.s.toStatus(ctx, err)
	}
	return &rpc.GenerateResponse{Codename: cn}, nil
}

func (h *handler) Create(ctx context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	st, err := h.s.sources.CreateSource(ctx, stateFrom(ctx))
	if serr := h.setSession(ctx, st); serr != nil {
		return nil, serr
	}
	if err != nil {
		return nil, h.s.toStatus(ctx, err)
	}
	h.s.logger.Info(ctx, "source created")
	return &rpc.Empty{}, nil
}

func (h *handler) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.Empty, error) {
	st, _, err := h.s.sources.ValidateAndLogin(ctx, req.Codename)
	if err != nil {
		if serr := h.setSession(ctx, session.State{}); serr != nil {
			return nil, serr
		}
		return nil, h.s.toStatus(ctx, err)
	}
	if err := h.setSession(ctx, st); err != nil {
		return nil, err
	}
	return &rpc.Empty{}, nil
}

func (h *handler) Logout(ctx context.Context, _ *rpc.Empty) (*rpc.LogoutResponse, error) {
	st := h.s.sources.Logout(ctx, stateFrom(ctx))
	if err := h.setSession(ctx, st); err != nil {
		return nil, err
	}
	return &rpc.LogoutResponse{Message: msgLoggedOut}, nil
}

func (h *handler) Lookup(ctx context.Context, _ *rpc.Empty) (*rpc.LookupResponse, error) {
	src, err := h.authorize(ctx, h.unarySession(ctx))
	if err != nil {
		return nil, err
	}
	res, err := h.s.sources.Lookup(ctx, src.FilesystemID)
	if err != nil {
		return nil, h.s.toStatus(ctx, err)
	}
	return &rpc.LookupResponse{
		JournalistDesignation: res.JournalistDesignation,
		HasReplies:            res.HasReplies,
		HasKey:                res.HasKey,
		Submissions:           res.Submissions,
	}, nil
}

func (h *handler) DeleteAll(ctx context.Context, _ *rpc.Empty) (*rpc.DeleteAllResponse, error) {
	src, err := h.authorize(ctx, h.unarySession(ctx))
	if err != nil {
		return nil, err
	}
	n, err := h.s.sources.DeleteAll(ctx, src.FilesystemID)
	if errors.Is(err, common.ErrNoRepliesFound) {
		return &rpc.DeleteAllResponse{}, nil
	}
	if err != nil {
		return nil, h.s.toStatus(ctx, err)
	}
	return &rpc.DeleteAllResponse{Deleted: n}, nil
}

func (h *handler) Metadata(context.Context, *rpc.Empty) (*rpc.MetadataResponse, error) {
	info := h.s.sources.Metadata()
	return &rpc.MetadataResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
	}, nil
}

func (h *handler) JournalistKey(context.Context, *rpc.Empty) (*rpc.JournalistKeyResponse, error) {
	return &rpc.JournalistKeyResponse{PublicKey: h.s.sources.JournalistKey()}, nil
}

// Submit reads the first frame for the message and file name, then pipes
// the remaining frames into the packager as the document body.
func (h *handler) Submit(stream grpc.ClientStreamingServer[rpc.SubmitChunk, rpc.SubmitResponse]) error {
	ctx := stream.Context()

	src, err := h.authorize(ctx, func(st session.State) error {
		md, err := h.sessionHeader(st)
		if err != nil {
			return h.s.toStatus(ctx, err)
		}
		return stream.SetHeader(md)
	})
	if err != nil {
		return err
	}

	first, err := stream.Recv()
	if errors.Is(err, io.EOF) {
		return status.Error(codes.InvalidArgument, msgNothingToSubmit)
	}
	if err != nil {
		return err
	}

	var file *submission.File
	pr, pw := io.Pipe()
	done := make(chan struct{})

	if first.Filename != "" {
		file = &submission.File{Name: first.Filename, Body: pr}
		go func() {
			defer close(done)
			pump(stream, first.Data, pw)
		}()
	} else {
		close(done)
		pw.Close()
	}

	res, err := h.s.sources.Submit(ctx, src.FilesystemID, first.Message, file)
	pr.CloseWithError(errUploadAbandoned)
	<-done
	if err != nil {
		return h.s.toStatus(ctx, err)
	}

	out := &rpc.SubmitResponse{OK: res.OK, IsFirst: res.IsFirst, KeyPending: res.KeyPending}
	for _, sub := range []*models.Submission{res.Message, res.Document} {
		if sub != nil {
			out.Artifacts = append(out.Artifacts, sub.Filename)
		}
	}
	return stream.SendAndClose(out)
}

// pump copies the upload frames into w until the client half-closes.
func pump(stream grpc.ClientStreamingServer[rpc.SubmitChunk, rpc.SubmitResponse], head []byte, w *io.PipeWriter) {
	if len(head) > 0 {
		if _, err := w.Write(head); err != nil {
			return
		}
	}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			w.Close()
			return
		}
		if err != nil {
			w.CloseWithError(err)
			return
		}
		if _, err := w.Write(chunk.Data); err != nil {
			return
		}
	}
}
