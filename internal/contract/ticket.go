package contract

// TicketKind discriminates the four negotiation ticket families.
type TicketKind int

const (
	// TicketKindUnspecified represents an invalid ticket kind.
	TicketKindUnspecified TicketKind = iota
	// TicketKindCancel negotiates early contract termination.
	TicketKindCancel
	// TicketKindRevision negotiates rework of a delivery.
	TicketKindRevision
	// TicketKindChange negotiates a contract terms change.
	TicketKindChange
	// TicketKindResolution escalates a dispute to staff.
	TicketKindResolution
)

// Ticket is the minimal surface shared by the four ticket variants.
// Each variant keeps its own status enum and payload; the shared
// interface exposes only identity, contract back-reference, and
// whether the ticket still blocks its exclusivity slot.
type Ticket interface {
	TicketID() string
	ContractRef() string
	OpenForExclusivity() bool
}

// TicketKindLabel returns the canonical string form of a ticket kind.
func TicketKindLabel(k TicketKind) string {
	switch k {
	case TicketKindCancel:
		return "CANCEL"
	case TicketKindRevision:
		return "REVISION"
	case TicketKindChange:
		return "CHANGE"
	case TicketKindResolution:
		return "RESOLUTION"
	default:
		return "UNSPECIFIED"
	}
}
