// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Authorization errors
	CodeForbidden Code = "FORBIDDEN"

	// Contract errors
	CodeContractInvalidFinance          Code = "CONTRACT_INVALID_FINANCE"
	CodeContractInvalidMilestoneSplit   Code = "CONTRACT_INVALID_MILESTONE_SPLIT"
	CodeContractInvalidStatusTransition Code = "CONTRACT_INVALID_STATUS_TRANSITION"
	CodeContractStatusDisallowsOp       Code = "CONTRACT_STATUS_DISALLOWS_OPERATION"
	CodeContractEmptyParty              Code = "CONTRACT_EMPTY_PARTY"
	CodeContractDeadlineInvalid         Code = "CONTRACT_DEADLINE_INVALID"

	// Milestone errors
	CodeMilestoneNotInProgress Code = "MILESTONE_NOT_IN_PROGRESS"
	CodeMilestoneOutOfRange    Code = "MILESTONE_OUT_OF_RANGE"

	// Ticket errors
	CodeTicketConflictingActive        Code = "TICKET_CONFLICTING_ACTIVE"
	CodeTicketInvalidStatusTransition  Code = "TICKET_INVALID_STATUS_TRANSITION"
	CodeTicketEmptyReason              Code = "TICKET_EMPTY_REASON"
	CodeTicketRevisionPolicyNone       Code = "TICKET_REVISION_POLICY_NONE"
	CodeTicketRevisionCapExhausted     Code = "TICKET_REVISION_CAP_EXHAUSTED"
	CodeTicketChangeNotAllowed         Code = "TICKET_CHANGE_NOT_ALLOWED"
	CodeTicketChangeFieldNotChangeable Code = "TICKET_CHANGE_FIELD_NOT_CHANGEABLE"
	CodeTicketProofRequired            Code = "TICKET_PROOF_REQUIRED"
	CodeTicketFeeMismatch              Code = "TICKET_FEE_MISMATCH"
	CodeTicketCounterproofWindowClosed Code = "TICKET_COUNTERPROOF_WINDOW_CLOSED"

	// Upload errors
	CodeUploadPendingExists           Code = "UPLOAD_PENDING_EXISTS"
	CodeUploadInvalidStatusTransition Code = "UPLOAD_INVALID_STATUS_TRANSITION"
	CodeUploadEmptyImages             Code = "UPLOAD_EMPTY_IMAGES"
	CodeUploadInvalidWorkProgress     Code = "UPLOAD_INVALID_WORK_PROGRESS"
	CodeUploadCancelNotAuthorized     Code = "UPLOAD_CANCEL_NOT_AUTHORIZED"

	// Wallet errors
	CodeWalletInsufficientFunds Code = "WALLET_INSUFFICIENT_FUNDS"
	CodeWalletInvalidAmount     Code = "WALLET_INVALID_AMOUNT"

	// Ledger errors
	CodeLedgerNegativeBalance Code = "LEDGER_NEGATIVE_BALANCE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed payloads
	case CodeContractInvalidFinance,
		CodeContractInvalidMilestoneSplit,
		CodeContractEmptyParty,
		CodeContractDeadlineInvalid,
		CodeMilestoneOutOfRange,
		CodeTicketEmptyReason,
		CodeTicketProofRequired,
		CodeUploadEmptyImages,
		CodeUploadInvalidWorkProgress,
		CodeWalletInvalidAmount:
		return http.StatusBadRequest

	// Forbidden - actor is not a party to the contract or has the wrong role
	case CodeForbidden,
		CodeUploadCancelNotAuthorized:
		return http.StatusForbidden

	// Not found
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - state disallows the operation or an exclusivity rule fired
	case CodeContractInvalidStatusTransition,
		CodeContractStatusDisallowsOp,
		CodeMilestoneNotInProgress,
		CodeTicketConflictingActive,
		CodeTicketInvalidStatusTransition,
		CodeTicketRevisionPolicyNone,
		CodeTicketRevisionCapExhausted,
		CodeTicketChangeNotAllowed,
		CodeTicketChangeFieldNotChangeable,
		CodeTicketFeeMismatch,
		CodeTicketCounterproofWindowClosed,
		CodeUploadPendingExists,
		CodeUploadInvalidStatusTransition,
		CodeLedgerNegativeBalance:
		return http.StatusConflict

	// Payment required - retry is safe after topping up
	case CodeWalletInsufficientFunds:
		return http.StatusPaymentRequired

	default:
		return http.StatusInternalServerError
	}
}
