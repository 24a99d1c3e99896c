package contract

import (
	"fmt"

	apperrors "github.com/atelierhq/atelier/internal/errors"
)

// Payout is the settlement split for a terminal contract.
// Artist + Client always equals the input total.
type Payout struct {
	Artist int64
	Client int64
}

// PayoutInput carries everything the payout table needs.
type PayoutInput struct {
	Status             Status
	WorkPercentage     int
	Total              int64
	CancellationFee    CancellationFeePolicy
	LatePenaltyPercent int
}

// ComputePayout maps a terminal contract status to the artist/client split.
//
//	completed            -> total
//	completedLate        -> total - total*latePenalty%
//	cancelledClient      -> total*work% + fee
//	cancelledClientLate  -> total*work% - total*latePenalty%   (no fee)
//	cancelledArtist      -> total*work% - fee
//	cancelledArtistLate  -> total*work% - total*latePenalty% - fee
//	notCompleted         -> 0
//
// The artist payout is clamped to [0, total]; the client receives the
// remainder. The late-cancellation-by-client case deliberately charges no
// cancellation fee while the artist variant still deducts one.
func ComputePayout(in PayoutInput) (Payout, error) {
	if !in.Status.Terminal() {
		return Payout{}, apperrors.WithMetadata(
			apperrors.CodeContractInvalidStatusTransition,
			fmt.Sprintf("payout requires a terminal status, got %s", StatusLabel(in.Status)),
			map[string]string{"FromStatus": StatusLabel(in.Status)},
		)
	}

	earned := in.Total * int64(in.WorkPercentage) / 100
	penalty := in.Total * int64(in.LatePenaltyPercent) / 100
	fee := in.CancellationFee.Amount(in.Total)

	var artist int64
	switch in.Status {
	case StatusCompleted:
		artist = in.Total
	case StatusCompletedLate:
		artist = in.Total - penalty
	case StatusCancelledClient:
		artist = earned + fee
	case StatusCancelledClientLate:
		artist = earned - penalty
	case StatusCancelledArtist:
		artist = earned - fee
	case StatusCancelledArtistLate:
		artist = earned - penalty - fee
	case StatusNotCompleted:
		artist = 0
	}

	if artist < 0 {
		artist = 0
	}
	if artist > in.Total {
		artist = in.Total
	}
	return Payout{Artist: artist, Client: in.Total - artist}, nil
}
