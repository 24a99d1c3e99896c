package i18n

// Error codes must match the codes defined in internal/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeNotFound  = "NOT_FOUND"
	CodeForbidden = "FORBIDDEN"

	CodeContractInvalidFinance          = "CONTRACT_INVALID_FINANCE"
	CodeContractInvalidMilestoneSplit   = "CONTRACT_INVALID_MILESTONE_SPLIT"
	CodeContractInvalidStatusTransition = "CONTRACT_INVALID_STATUS_TRANSITION"
	CodeContractStatusDisallowsOp       = "CONTRACT_STATUS_DISALLOWS_OPERATION"
	CodeContractEmptyParty              = "CONTRACT_EMPTY_PARTY"
	CodeContractDeadlineInvalid         = "CONTRACT_DEADLINE_INVALID"

	CodeMilestoneNotInProgress = "MILESTONE_NOT_IN_PROGRESS"
	CodeMilestoneOutOfRange    = "MILESTONE_OUT_OF_RANGE"

	CodeTicketConflictingActive        = "TICKET_CONFLICTING_ACTIVE"
	CodeTicketInvalidStatusTransition  = "TICKET_INVALID_STATUS_TRANSITION"
	CodeTicketEmptyReason              = "TICKET_EMPTY_REASON"
	CodeTicketRevisionPolicyNone       = "TICKET_REVISION_POLICY_NONE"
	CodeTicketRevisionCapExhausted     = "TICKET_REVISION_CAP_EXHAUSTED"
	CodeTicketChangeNotAllowed         = "TICKET_CHANGE_NOT_ALLOWED"
	CodeTicketChangeFieldNotChangeable = "TICKET_CHANGE_FIELD_NOT_CHANGEABLE"
	CodeTicketProofRequired            = "TICKET_PROOF_REQUIRED"
	CodeTicketFeeMismatch              = "TICKET_FEE_MISMATCH"
	CodeTicketCounterproofWindowClosed = "TICKET_COUNTERPROOF_WINDOW_CLOSED"

	CodeUploadPendingExists           = "UPLOAD_PENDING_EXISTS"
	CodeUploadInvalidStatusTransition = "UPLOAD_INVALID_STATUS_TRANSITION"
	CodeUploadEmptyImages             = "UPLOAD_EMPTY_IMAGES"
	CodeUploadInvalidWorkProgress     = "UPLOAD_INVALID_WORK_PROGRESS"
	CodeUploadCancelNotAuthorized     = "UPLOAD_CANCEL_NOT_AUTHORIZED"

	CodeWalletInsufficientFunds = "WALLET_INSUFFICIENT_FUNDS"
	CodeWalletInvalidAmount     = "WALLET_INVALID_AMOUNT"

	CodeLedgerNegativeBalance = "LEDGER_NEGATIVE_BALANCE"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeNotFound:  "The requested resource was not found",
		CodeForbidden: "You are not allowed to perform this action",

		// Contract errors
		CodeContractInvalidFinance:          "Contract pricing does not add up",
		CodeContractInvalidMilestoneSplit:   "Milestone percentages must sum to 100",
		CodeContractInvalidStatusTransition: "Cannot move the contract from {{.FromStatus}} to {{.ToStatus}}",
		CodeContractStatusDisallowsOp:       "Contract status {{.Status}} does not allow {{.Operation}}",
		CodeContractEmptyParty:              "Both a client and an artist are required",
		CodeContractDeadlineInvalid:         "The contract deadline must be in the future",

		// Milestone errors
		CodeMilestoneNotInProgress: "Milestone {{.Index}} is not in progress",
		CodeMilestoneOutOfRange:    "Milestone {{.Index}} does not exist on this contract",

		// Ticket errors
		CodeTicketConflictingActive:        "Another {{.Kind}} ticket is still open on this contract",
		CodeTicketInvalidStatusTransition:  "This ticket no longer accepts that response",
		CodeTicketEmptyReason:              "A reason is required",
		CodeTicketRevisionPolicyNone:       "This contract does not allow revisions",
		CodeTicketRevisionCapExhausted:     "All included revisions have been used",
		CodeTicketChangeNotAllowed:         "This contract does not allow changes",
		CodeTicketChangeFieldNotChangeable: "Field {{.Field}} cannot be changed on this contract",
		CodeTicketProofRequired:            "Proof images are required to open a dispute",
		CodeTicketFeeMismatch:              "The paid amount does not match the agreed fee",
		CodeTicketCounterproofWindowClosed: "The counterproof window has closed",

		// Upload errors
		CodeUploadPendingExists:           "A delivery is already awaiting review",
		CodeUploadInvalidStatusTransition: "This delivery has already been reviewed",
		CodeUploadEmptyImages:             "At least one image is required",
		CodeUploadInvalidWorkProgress:     "Work progress must be between 0 and 100",
		CodeUploadCancelNotAuthorized:     "A partial final delivery requires an accepted cancellation",

		// Wallet errors
		CodeWalletInsufficientFunds: "Insufficient available funds",
		CodeWalletInvalidAmount:     "Amount must be greater than zero",

		// Ledger errors
		CodeLedgerNegativeBalance: "Escrow balance cannot go negative",
	},
}
