package client

import (
	"context"
	"io"

	"github.com/dmitrijs2005/deaddrop/internal/rpc"
)

// Client is the source-facing API of the deaddrop server.
type Client interface {
	Generate(ctx context.Context) (string, error)
	Create(ctx context.Context) error
	Login(ctx context.Context, codename string) error
	Logout(ctx context.Context) (string, error)
	Lookup(ctx context.Context) (*rpc.LookupResponse, error)
	Submit(ctx context.Context, message string, file *Upload) (*rpc.SubmitResponse, error)
	DeleteAll(ctx context.Context) (int, error)
	Metadata(ctx context.Context) (*rpc.MetadataResponse, error)
	JournalistKey(ctx context.Context) ([]byte, error)
	Close() error
}

// Upload is a document streamed alongside a submission.
type Upload struct {
	Name string
	Body io.Reader
}
