package contract

import (
	"fmt"

	apperrors "github.com/atelierhq/atelier/internal/errors"
)

// Operation describes a category of contract operation for policy checks.
type Operation int

const (
	// OpUnspecified represents an invalid operation.
	OpUnspecified Operation = iota
	// OpRead represents read-only operations, allowed for all statuses.
	OpRead
	// OpOpenTicket represents opening any negotiation ticket.
	OpOpenTicket
	// OpRespondTicket represents responding to an open ticket.
	OpRespondTicket
	// OpPayFee represents paying a resolved revision or change fee.
	OpPayFee
	// OpSubmitUpload represents submitting a deliverable for review.
	OpSubmitUpload
	// OpReviewUpload represents accepting or rejecting a deliverable.
	OpReviewUpload
	// OpApplyChange represents applying an accepted change set.
	OpApplyChange
)

// ErrStatusDisallowsOperation indicates a status that disallows the requested operation.
var ErrStatusDisallowsOperation = apperrors.New(apperrors.CodeContractStatusDisallowsOp, "contract status does not allow operation")

// ValidateOperation ensures the contract status allows the requested operation.
// Every mutating operation requires the active phase; dispute resolution
// tickets are the one exception and may also be responded to after the
// contract reached a terminal status.
func ValidateOperation(status Status, op Operation) error {
	if op == OpUnspecified {
		return newStatusOpError(status, op)
	}
	if op == OpRead {
		return nil
	}

	switch status {
	case StatusActive:
		return nil
	default:
		if status.Terminal() && op == OpRespondTicket {
			return nil
		}
		return newStatusOpError(status, op)
	}
}

// newStatusOpError creates a structured error for disallowed status/operation combinations.
func newStatusOpError(status Status, op Operation) *apperrors.Error {
	statusLabel := StatusLabel(status)
	opLabel := operationLabel(op)
	return apperrors.WithMetadata(
		apperrors.CodeContractStatusDisallowsOp,
		fmt.Sprintf("contract status %s does not allow operation %s", statusLabel, opLabel),
		map[string]string{"Status": statusLabel, "Operation": opLabel},
	)
}

func operationLabel(op Operation) string {
	switch op {
	case OpRead:
		return "READ"
	case OpOpenTicket:
		return "OPEN_TICKET"
	case OpRespondTicket:
		return "RESPOND_TICKET"
	case OpPayFee:
		return "PAY_FEE"
	case OpSubmitUpload:
		return "SUBMIT_UPLOAD"
	case OpReviewUpload:
		return "REVIEW_UPLOAD"
	case OpApplyChange:
		return "APPLY_CHANGE"
	default:
		return "UNSPECIFIED"
	}
}
