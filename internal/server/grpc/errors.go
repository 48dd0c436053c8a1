package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/deaddrop/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Messages shown to sources. They never say more than the error class.
const (
	msgInvalidInput    = "Invalid input."
	msgNothingToSubmit = "You must enter a message or choose a file to submit."
	msgAlreadyLoggedIn = "You are already logged in."
	msgNotRecognized   = "Sorry, that is not a recognized codename."
	msgNotLoggedIn     = "You need to log in first."
	msgSessionExpired  = "You have been logged out due to inactivity."
	msgDuplicate       = "There was a temporary problem creating your account. Please try again."
	msgInternal        = "Internal error."
	msgLoggedOut       = "You were logged out."
)

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, msgInvalidInput)
	case errors.Is(err, common.ErrNothingToSubmit):
		return status.Error(codes.InvalidArgument, msgNothingToSubmit)
	case errors.Is(err, common.ErrAlreadyLoggedIn):
		return status.Error(codes.FailedPrecondition, msgAlreadyLoggedIn)
	case errors.Is(err, common.ErrNotRecognized):
		return status.Error(codes.Unauthenticated, msgNotRecognized)
	case errors.Is(err, common.ErrNotLoggedIn):
		return status.Error(codes.Unauthenticated, msgNotLoggedIn)
	case errors.Is(err, common.ErrSessionExpired):
		return status.Error(codes.Unauthenticated, msgSessionExpired)
	case errors.Is(err, common.ErrDuplicateCodename):
		return status.Error(codes.AlreadyExists, msgDuplicate)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, msgInternal)
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, msgInternal)
}
