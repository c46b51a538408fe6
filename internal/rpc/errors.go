package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ruya/internal/artifacts"
	"github.com/dmitrijs2005/ruya/internal/core"
	"github.com/dmitrijs2005/ruya/internal/orchestrator"
	"github.com/dmitrijs2005/ruya/internal/purchase"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	errorDomain = "ruya"
	// metaRestored marks a failure whose credits went back to the user.
	metaRestored = "credits_restored"
)

type mapping struct {
	err    error
	code   codes.Code
	reason string
}

// Checked in order; the first errors.Is match wins.
var mappings = []mapping{
	{orchestrator.ErrPromptTooShort, codes.InvalidArgument, "PROMPT_TOO_SHORT"},
	{orchestrator.ErrInsufficientCredits, codes.FailedPrecondition, "INSUFFICIENT_CREDITS"},
	{orchestrator.ErrCancelled, codes.Canceled, "GENERATION_CANCELLED"},
	{orchestrator.ErrInterpretationFailed, codes.Unavailable, "INTERPRETATION_FAILED"},
	{orchestrator.ErrVideoUnavailable, codes.Unavailable, "VIDEO_UNAVAILABLE"},
	{orchestrator.ErrPersistenceFailed, codes.Unavailable, "PERSISTENCE_FAILED"},
	{artifacts.ErrNotFound, codes.NotFound, "DREAM_NOT_FOUND"},
	{core.ErrInvalidID, codes.InvalidArgument, "INVALID_ID"},
	{purchase.ErrProductNotFound, codes.NotFound, "PRODUCT_NOT_FOUND"},
	{purchase.ErrVerificationFailed, codes.PermissionDenied, "VERIFICATION_FAILED"},
	{purchase.ErrCancelled, codes.Aborted, "PURCHASE_CANCELLED"},
	{purchase.ErrPending, codes.Aborted, "PURCHASE_PENDING"},
	{purchase.ErrNoPurchasesToRestore, codes.NotFound, "NO_PURCHASES_TO_RESTORE"},
	{purchase.ErrUnknown, codes.Unknown, "PURCHASE_UNKNOWN"},
	{context.Canceled, codes.Canceled, "GENERATION_CANCELLED"},
	{context.DeadlineExceeded, codes.DeadlineExceeded, "DEADLINE_EXCEEDED"},
}

// toStatus converts a core error into a gRPC status carrying an ErrorInfo
// reason the client can map back.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range mappings {
		if !errors.Is(err, m.err) {
			continue
		}
		info := &errdetails.ErrorInfo{Reason: m.reason, Domain: errorDomain}
		if errors.Is(err, orchestrator.ErrCreditsRestored) {
			info.Metadata = map[string]string{metaRestored: "true"}
		}
		st := status.New(m.code, err.Error())
		if withInfo, derr := st.WithDetails(info); derr == nil {
			st = withInfo
		}
		return st.Err()
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus maps a gRPC error onto the sentinel the server started from.
// The returned error wraps the sentinel so errors.Is keeps working.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		for _, m := range mappings {
			if m.reason != info.GetReason() {
				continue
			}
			mapped := fmt.Errorf("%w: %s", m.err, st.Message())
			if errors.Is(m.err, context.Canceled) {
				mapped = orchestrator.ErrCancelled
			}
			if info.GetMetadata()[metaRestored] == "true" {
				mapped = fmt.Errorf("%w (%w)", mapped, orchestrator.ErrCreditsRestored)
			}
			return mapped
		}
	}

	switch st.Code() {
	case codes.Canceled:
		return orchestrator.ErrCancelled
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	}
	return err
}
