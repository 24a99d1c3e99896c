// Package contract holds the domain model for commissioned-artwork
// contracts: the aggregate root and its status machine, milestones,
// negotiation tickets, deliverable uploads, and payout arithmetic.
//
// All money values are int64 cents. All timestamps are UTC.
package contract

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/id"
)

// Status describes the lifecycle of a contract.
type Status int

const (
	// StatusUnspecified represents an invalid contract status value.
	StatusUnspecified Status = iota
	// StatusActive indicates the contract is in its active working phase.
	StatusActive
	// StatusCompleted indicates the final delivery was accepted on time.
	StatusCompleted
	// StatusCompletedLate indicates the final delivery was accepted after the deadline.
	StatusCompletedLate
	// StatusCancelledClient indicates a client-requested cancellation was finalized.
	StatusCancelledClient
	// StatusCancelledClientLate indicates a client-requested cancellation finalized late.
	StatusCancelledClientLate
	// StatusCancelledArtist indicates an artist-requested cancellation was finalized.
	StatusCancelledArtist
	// StatusCancelledArtistLate indicates an artist-requested cancellation finalized late.
	StatusCancelledArtistLate
	// StatusNotCompleted indicates the grace period elapsed with no delivery.
	StatusNotCompleted
)

// Flow describes how a contract tracks delivery progress.
type Flow int

const (
	// FlowUnspecified represents an invalid flow value.
	FlowUnspecified Flow = iota
	// FlowStandard tracks a single final delivery.
	FlowStandard
	// FlowMilestone tracks delivery through an ordered milestone list.
	FlowMilestone
)

// Role identifies the acting party relative to a contract.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleClient is the commissioning party.
	RoleClient
	// RoleArtist is the delivering party.
	RoleArtist
	// RoleAdmin is marketplace staff.
	RoleAdmin
)

var (
	// ErrEmptyParty indicates a missing client or artist reference.
	ErrEmptyParty = apperrors.New(apperrors.CodeContractEmptyParty, "client and artist are required")
	// ErrInvalidFinance indicates a finance snapshot whose total does not match its parts.
	ErrInvalidFinance = apperrors.New(apperrors.CodeContractInvalidFinance, "finance total does not match its components")
	// ErrInvalidMilestoneSplit indicates milestone percents that do not sum to 100.
	ErrInvalidMilestoneSplit = apperrors.New(apperrors.CodeContractInvalidMilestoneSplit, "milestone percents must sum to 100")
	// ErrInvalidDeadline indicates a deadline at or before the creation time.
	ErrInvalidDeadline = apperrors.New(apperrors.CodeContractDeadlineInvalid, "deadline must be after creation")
	// ErrInvalidStatusTransition indicates a disallowed contract status change.
	ErrInvalidStatusTransition = apperrors.New(apperrors.CodeContractInvalidStatusTransition, "contract status transition is not allowed")
)

// Finance is the money snapshot of a contract. Total must always equal
// BasePrice + OptionFees + Addons + RushFee - Discount + Surcharge + RuntimeFees.
type Finance struct {
	BasePrice   int64
	OptionFees  int64
	Addons      int64
	RushFee     int64
	Discount    int64
	Surcharge   int64
	RuntimeFees int64
	Total       int64
}

// ComputedTotal returns the total implied by the finance components.
func (f Finance) ComputedTotal() int64 {
	return f.BasePrice + f.OptionFees + f.Addons + f.RushFee - f.Discount + f.Surcharge + f.RuntimeFees
}

// Validate checks the finance invariant.
func (f Finance) Validate() error {
	if f.Total != f.ComputedTotal() || f.Total < 0 {
		return apperrors.WithMetadata(
			apperrors.CodeContractInvalidFinance,
			fmt.Sprintf("finance total %d does not match components %d", f.Total, f.ComputedTotal()),
			map[string]string{"Total": fmt.Sprintf("%d", f.Total)},
		)
	}
	return nil
}

// AddRuntimeFee records an accrued fee (revision or change) on the snapshot.
func (f Finance) AddRuntimeFee(amount int64) Finance {
	f.RuntimeFees += amount
	f.Total += amount
	return f
}

// CancellationFeePolicy resolves the cancellation fee for a contract.
// A non-zero Flat amount wins over Percent.
type CancellationFeePolicy struct {
	Flat    int64
	Percent int
}

// Amount resolves the fee against a contract total.
func (p CancellationFeePolicy) Amount(total int64) int64 {
	if p.Flat > 0 {
		return p.Flat
	}
	return total * int64(p.Percent) / 100
}

// RevisionPolicyKind describes how revisions are priced.
type RevisionPolicyKind int

const (
	// RevisionPolicyNone disallows revision tickets entirely.
	RevisionPolicyNone RevisionPolicyKind = iota
	// RevisionPolicyLimited includes a capped number of free revisions.
	RevisionPolicyLimited
	// RevisionPolicyUnlimited allows unlimited free revisions.
	RevisionPolicyUnlimited
)

// RevisionPolicy is the revision pricing frozen at contract creation.
// For capped policies, revisions beyond Included cost ExtraFee each;
// an ExtraFee of zero means the cap is hard.
type RevisionPolicy struct {
	Kind     RevisionPolicyKind
	Included int
	ExtraFee int64
}

// ChangeableField names a contract attribute a change ticket may touch.
type ChangeableField string

const (
	FieldDeadline        ChangeableField = "deadline"
	FieldGeneralOptions  ChangeableField = "generalOptions"
	FieldSubjectOptions  ChangeableField = "subjectOptions"
	FieldDescription     ChangeableField = "description"
	FieldReferenceImages ChangeableField = "referenceImages"
)

// MilestoneSpec is a milestone template entry inherited from the listing.
type MilestoneSpec struct {
	Title   string
	Percent int
}

// ProposalSnapshot freezes the negotiated terms at funding time.
// The contract never re-reads the live listing afterward.
type ProposalSnapshot struct {
	ListingID           string
	ProposalID          string
	Flow                Flow
	BasePrice           int64
	OptionFees          int64
	Addons              int64
	RushFee             int64
	Discount            int64
	Surcharge           int64
	RevisionPolicy      RevisionPolicy
	CancellationFee     CancellationFeePolicy
	LatePenaltyPercent  int
	AllowContractChange bool
	Changeable          []ChangeableField
	MilestoneTemplate   []MilestoneSpec
	Description         string
	ReferenceImages     []string
	GeneralOptions      map[string]string
	SubjectOptions      map[string]string
}

// AllowsChange reports whether field is listed in the changeable set.
func (s ProposalSnapshot) AllowsChange(field ChangeableField) bool {
	for _, f := range s.Changeable {
		if f == field {
			return true
		}
	}
	return false
}

// TermsVersion is one entry of the versioned contract terms history.
type TermsVersion struct {
	Version         int
	Description     string
	ReferenceImages []string
	GeneralOptions  map[string]string
	SubjectOptions  map[string]string
	CreatedAt       time.Time
}

// StatusChange is one audit entry of the contract status history.
type StatusChange struct {
	From    Status
	To      Status
	Note    string
	Changed time.Time
}

// LateExtension records a deadline extension granted during the active phase.
type LateExtension struct {
	OldDeadline time.Time
	NewDeadline time.Time
	GrantedAt   time.Time
}

// Completion freezes the settlement of a successfully completed contract.
type Completion struct {
	ArtistPayout int64
	ClientPayout int64
	Late         bool
	CompletedAt  time.Time
}

// CancelSummary freezes the settlement of a cancelled or expired contract.
// Once set it is never recomputed.
type CancelSummary struct {
	RequestedBy    Role
	WorkPercentage int
	Fee            int64
	LatePenalty    int64
	ArtistPayout   int64
	ClientPayout   int64
	DecidedAt      time.Time
}

// Contract is the aggregate root for one commissioned artwork.
// Tickets and uploads are owned by id arrays; the records themselves are
// stored separately and hold a back-reference to the contract.
type Contract struct {
	ID         string
	ClientID   string
	ArtistID   string
	ListingID  string
	ProposalID string

	Snapshot ProposalSnapshot
	Terms    []TermsVersion
	Version  int

	Status        Status
	StatusHistory []StatusChange

	WorkPercentage int
	Finance        Finance

	DeadlineAt     time.Time
	GraceEndsAt    time.Time
	LateExtensions []LateExtension

	Milestones []Milestone

	CancelTicketIDs     []string
	RevisionTicketIDs   []string
	ChangeTicketIDs     []string
	ResolutionTicketIDs []string

	ProgressUploadIDs  []string
	MilestoneUploadIDs []string
	RevisionUploadIDs  []string
	FinalUploadIDs     []string

	// RevisionsUsed counts accepted revisions for standard-flow contracts.
	// Milestone-flow contracts count per milestone instead.
	RevisionsUsed int

	Completion    *Completion
	CancelSummary *CancelSummary

	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// Terminal reports whether the status is one of the six end states.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedLate,
		StatusCancelledClient, StatusCancelledClientLate,
		StatusCancelledArtist, StatusCancelledArtistLate,
		StatusNotCompleted:
		return true
	}
	return false
}

// statusTransitions is the contract transition table. Every terminal status
// is reachable only from active, and terminal statuses have no exits.
var statusTransitions = map[Status][]Status{
	StatusActive: {
		StatusCompleted,
		StatusCompletedLate,
		StatusCancelledClient,
		StatusCancelledClientLate,
		StatusCancelledArtist,
		StatusCancelledArtistLate,
		StatusNotCompleted,
	},
}

// CanTransition reports whether the table declares the edge from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the contract to a new status, appending to the history.
// Transitions are irreversible; terminal statuses reject every edge.
func (c *Contract) Transition(to Status, note string, now time.Time) error {
	if !CanTransition(c.Status, to) {
		return apperrors.WithMetadata(
			apperrors.CodeContractInvalidStatusTransition,
			fmt.Sprintf("contract status transition %s -> %s is not allowed", StatusLabel(c.Status), StatusLabel(to)),
			map[string]string{"FromStatus": StatusLabel(c.Status), "ToStatus": StatusLabel(to)},
		)
	}
	now = now.UTC()
	c.StatusHistory = append(c.StatusHistory, StatusChange{
		From:    c.Status,
		To:      to,
		Note:    note,
		Changed: now,
	})
	c.Status = to
	c.UpdatedAt = now
	if to.Terminal() {
		closed := now
		c.ClosedAt = &closed
	}
	return nil
}

// RoleOf returns the role of userID on this contract.
func (c *Contract) RoleOf(userID string) Role {
	switch userID {
	case c.ClientID:
		return RoleClient
	case c.ArtistID:
		return RoleArtist
	default:
		return RoleUnspecified
	}
}

// Counterparty returns the opposite contract party for a role.
func (c *Contract) Counterparty(role Role) string {
	if role == RoleClient {
		return c.ArtistID
	}
	return c.ClientID
}

// Late reports whether at is past the contract deadline (not the grace end).
func (c *Contract) Late(at time.Time) bool {
	return at.After(c.DeadlineAt)
}

// CurrentTerms returns the newest terms version.
func (c *Contract) CurrentTerms() TermsVersion {
	if len(c.Terms) == 0 {
		return TermsVersion{}
	}
	return c.Terms[len(c.Terms)-1]
}

// CreateContractInput describes an accepted, funded proposal.
type CreateContractInput struct {
	ClientID    string
	ArtistID    string
	Snapshot    ProposalSnapshot
	DeadlineAt  time.Time
	GracePeriod time.Duration
}

// DefaultGracePeriod is the window after the deadline during which the
// contract stays active but is flagged late.
const DefaultGracePeriod = 14 * 24 * time.Hour

// CreateContract creates a new active contract with a generated ID,
// frozen proposal terms, and the first milestone started.
func CreateContract(input CreateContractInput, now func() time.Time, idGenerator func() (string, error)) (Contract, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if strings.TrimSpace(input.ClientID) == "" || strings.TrimSpace(input.ArtistID) == "" {
		return Contract{}, ErrEmptyParty
	}

	finance := Finance{
		BasePrice:  input.Snapshot.BasePrice,
		OptionFees: input.Snapshot.OptionFees,
		Addons:     input.Snapshot.Addons,
		RushFee:    input.Snapshot.RushFee,
		Discount:   input.Snapshot.Discount,
		Surcharge:  input.Snapshot.Surcharge,
	}
	finance.Total = finance.ComputedTotal()
	if err := finance.Validate(); err != nil {
		return Contract{}, err
	}

	createdAt := now().UTC()
	if !input.DeadlineAt.After(createdAt) {
		return Contract{}, ErrInvalidDeadline
	}
	grace := input.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	var milestones []Milestone
	if input.Snapshot.Flow == FlowMilestone {
		var err error
		milestones, err = milestonesFromTemplate(input.Snapshot.MilestoneTemplate, createdAt)
		if err != nil {
			return Contract{}, err
		}
	}

	contractID, err := idGenerator()
	if err != nil {
		return Contract{}, fmt.Errorf("generate contract id: %w", err)
	}

	return Contract{
		ID:         contractID,
		ClientID:   strings.TrimSpace(input.ClientID),
		ArtistID:   strings.TrimSpace(input.ArtistID),
		ListingID:  input.Snapshot.ListingID,
		ProposalID: input.Snapshot.ProposalID,
		Snapshot:   input.Snapshot,
		Terms: []TermsVersion{{
			Version:         1,
			Description:     input.Snapshot.Description,
			ReferenceImages: input.Snapshot.ReferenceImages,
			GeneralOptions:  input.Snapshot.GeneralOptions,
			SubjectOptions:  input.Snapshot.SubjectOptions,
			CreatedAt:       createdAt,
		}},
		Version: 1,
		Status:  StatusActive,
		StatusHistory: []StatusChange{{
			From:    StatusUnspecified,
			To:      StatusActive,
			Note:    "contract created from funded proposal",
			Changed: createdAt,
		}},
		Finance:     finance,
		DeadlineAt:  input.DeadlineAt.UTC(),
		GraceEndsAt: input.DeadlineAt.UTC().Add(grace),
		Milestones:  milestones,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// StatusLabel returns the canonical string form of a status.
func StatusLabel(s Status) string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCompletedLate:
		return "COMPLETED_LATE"
	case StatusCancelledClient:
		return "CANCELLED_CLIENT"
	case StatusCancelledClientLate:
		return "CANCELLED_CLIENT_LATE"
	case StatusCancelledArtist:
		return "CANCELLED_ARTIST"
	case StatusCancelledArtistLate:
		return "CANCELLED_ARTIST_LATE"
	case StatusNotCompleted:
		return "NOT_COMPLETED"
	default:
		return "UNSPECIFIED"
	}
}

// RoleLabel returns the canonical string form of a role.
func RoleLabel(r Role) string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleArtist:
		return "ARTIST"
	case RoleAdmin:
		return "ADMIN"
	default:
		return "UNSPECIFIED"
	}
}
