package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/ledger"
	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/wallet"
)

const defaultListLimit = 50

// CreateContractInput carries the accepted, funded proposal terms.
type CreateContractInput struct {
	ClientID    string
	ArtistID    string
	Snapshot    contract.ProposalSnapshot
	DeadlineAt  time.Time
	GracePeriod time.Duration
}

// CreateContract funds and activates a contract: it moves the contract
// total from the client's available balance into escrow, appends the hold
// transaction, and persists the active contract. All of it is one atomic
// unit; an insufficient balance aborts before anything lands.
func (s *Service) CreateContract(ctx context.Context, actor Actor, in CreateContractInput) (contract.Contract, error) {
	if !actor.Admin && actor.UserID != in.ClientID {
		return contract.Contract{}, errForbidden("only the client may fund a contract")
	}
	if err := s.blobs.Verify(ctx, in.Snapshot.ReferenceImages); err != nil {
		return contract.Contract{}, fmt.Errorf("verify reference images: %w", err)
	}

	c, err := contract.CreateContract(contract.CreateContractInput{
		ClientID:    in.ClientID,
		ArtistID:    in.ArtistID,
		Snapshot:    in.Snapshot,
		DeadlineAt:  in.DeadlineAt,
		GracePeriod: in.GracePeriod,
	}, s.clock, s.idGenerator)
	if err != nil {
		return contract.Contract{}, err
	}

	err = s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		w, err := tx.Wallets.Get(ctx, c.ClientID)
		if err != nil {
			return err
		}
		if err := w.MoveAvailableToEscrow(c.Finance.Total, s.clock()); err != nil {
			return err
		}
		if err := tx.Wallets.Put(ctx, w); err != nil {
			return err
		}

		hold, err := ledger.NewTransaction(c.ID, ledger.TypeHold, ledger.PartyClient, ledger.PartyEscrow, c.Finance.Total, s.clock, s.idGenerator)
		if err != nil {
			return err
		}
		if err := tx.Ledger.Append(ctx, hold); err != nil {
			return err
		}
		return tx.Contracts.Put(ctx, c)
	})
	if err != nil {
		return contract.Contract{}, err
	}
	return c, nil
}

// GetContract returns one contract, restricted to its parties and staff.
func (s *Service) GetContract(ctx context.Context, actor Actor, contractID string) (contract.Contract, error) {
	c, err := s.db.Stores().Contracts.Get(ctx, contractID)
	if err != nil {
		return contract.Contract{}, err
	}
	if _, err := requireParty(&c, actor); err != nil {
		return contract.Contract{}, err
	}
	return c, nil
}

// ListContracts returns the actor's contracts, newest first.
func (s *Service) ListContracts(ctx context.Context, actor Actor, limit int) ([]contract.Contract, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.db.Stores().Contracts.ListByUser(ctx, actor.UserID, limit)
}

// Snapshot is the read model answering "what can happen next" for one
// contract, plus the reconciled escrow balance.
type Snapshot struct {
	Contract      contract.Contract
	Role          contract.Role
	EscrowBalance int64
	// Allowed maps operation labels to whether the contract status
	// currently permits them. Ticket-slot availability is reported
	// separately per kind.
	Allowed map[string]bool
	// OpenTicketSlots maps ticket kind labels to whether a new ticket of
	// that kind could be opened right now.
	OpenTicketSlots map[string]bool
}

// GetSnapshot builds the action snapshot for one contract.
func (s *Service) GetSnapshot(ctx context.Context, actor Actor, contractID string) (Snapshot, error) {
	stores := s.db.Stores()
	c, err := stores.Contracts.Get(ctx, contractID)
	if err != nil {
		return Snapshot{}, err
	}
	role, err := requireParty(&c, actor)
	if err != nil {
		return Snapshot{}, err
	}

	transactions, err := stores.Ledger.ListByContract(ctx, contractID)
	if err != nil {
		return Snapshot{}, err
	}

	allowed := make(map[string]bool)
	for op, label := range map[contract.Operation]string{
		contract.OpOpenTicket:    "OPEN_TICKET",
		contract.OpRespondTicket: "RESPOND_TICKET",
		contract.OpPayFee:        "PAY_FEE",
		contract.OpSubmitUpload:  "SUBMIT_UPLOAD",
		contract.OpReviewUpload:  "REVIEW_UPLOAD",
		contract.OpApplyChange:   "APPLY_CHANGE",
	} {
		allowed[label] = contract.ValidateOperation(c.Status, op) == nil
	}

	slots := make(map[string]bool)
	for _, kind := range []contract.TicketKind{
		contract.TicketKindCancel,
		contract.TicketKindRevision,
		contract.TicketKindChange,
		contract.TicketKindResolution,
	} {
		open := allowed["OPEN_TICKET"]
		if open {
			exists, err := activeTicketExists(ctx, stores, contractID, kind)
			if err != nil {
				return Snapshot{}, err
			}
			open = !exists
		}
		slots[contract.TicketKindLabel(kind)] = open
	}

	return Snapshot{
		Contract:        c,
		Role:            role,
		EscrowBalance:   ledger.EscrowBalance(transactions),
		Allowed:         allowed,
		OpenTicketSlots: slots,
	}, nil
}

// settle pays out a contract that just reached a terminal status. It
// releases the artist share, refunds the client share, credits both
// wallets, and leaves the per-contract escrow balance at exactly zero.
// Must run inside the same transaction that performed the transition.
func (s *Service) settle(ctx context.Context, tx storage.Stores, c *contract.Contract, at time.Time) (contract.Payout, error) {
	payout, err := contract.ComputePayout(contract.PayoutInput{
		Status:             c.Status,
		WorkPercentage:     c.WorkPercentage,
		Total:              c.Finance.Total,
		CancellationFee:    c.Snapshot.CancellationFee,
		LatePenaltyPercent: c.Snapshot.LatePenaltyPercent,
	})
	if err != nil {
		return contract.Payout{}, err
	}

	transactions, err := tx.Ledger.ListByContract(ctx, c.ID)
	if err != nil {
		return contract.Payout{}, err
	}
	balance := ledger.EscrowBalance(transactions)
	if balance != payout.Artist+payout.Client {
		return contract.Payout{}, apperrors.WithMetadata(
			apperrors.CodeLedgerNegativeBalance,
			fmt.Sprintf("escrow balance %d does not cover settlement %d", balance, payout.Artist+payout.Client),
			map[string]string{"Balance": fmt.Sprintf("%d", balance)},
		)
	}

	if payout.Artist > 0 {
		release, err := ledger.NewTransaction(c.ID, ledger.TypeRelease, ledger.PartyEscrow, ledger.PartyArtist, payout.Artist, s.clock, s.idGenerator)
		if err != nil {
			return contract.Payout{}, err
		}
		if err := tx.Ledger.Append(ctx, release); err != nil {
			return contract.Payout{}, err
		}
	}
	if payout.Client > 0 {
		refund, err := ledger.NewTransaction(c.ID, ledger.TypeRefund, ledger.PartyEscrow, ledger.PartyClient, payout.Client, s.clock, s.idGenerator)
		if err != nil {
			return contract.Payout{}, err
		}
		if err := tx.Ledger.Append(ctx, refund); err != nil {
			return contract.Payout{}, err
		}
	}

	clientWallet, err := tx.Wallets.Get(ctx, c.ClientID)
	if err != nil {
		return contract.Payout{}, err
	}
	if err := clientWallet.ReleaseEscrow(balance, at); err != nil {
		return contract.Payout{}, err
	}
	if payout.Client > 0 {
		if err := clientWallet.CreditAvailable(payout.Client, at); err != nil {
			return contract.Payout{}, err
		}
	}
	if err := tx.Wallets.Put(ctx, clientWallet); err != nil {
		return contract.Payout{}, err
	}

	if payout.Artist > 0 {
		artistWallet, err := tx.Wallets.Get(ctx, c.ArtistID)
		if err != nil {
			if !apperrors.IsCode(err, apperrors.CodeNotFound) {
				return contract.Payout{}, err
			}
			artistWallet = wallet.Wallet{UserID: c.ArtistID}
		}
		if err := artistWallet.CreditAvailable(payout.Artist, at); err != nil {
			return contract.Payout{}, err
		}
		if err := tx.Wallets.Put(ctx, artistWallet); err != nil {
			return contract.Payout{}, err
		}
	}

	return payout, nil
}

// GetWallet returns the actor's own wallet. A missing row reads as a zero
// balance rather than an error.
func (s *Service) GetWallet(ctx context.Context, actor Actor) (wallet.Wallet, error) {
	w, err := s.db.Stores().Wallets.Get(ctx, actor.UserID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return wallet.Wallet{UserID: actor.UserID}, nil
		}
		return wallet.Wallet{}, err
	}
	return w, nil
}

// Deposit credits the actor's available balance. In the full marketplace
// this is driven by the payment provider callback; here it is the single
// entry point for topping up.
func (s *Service) Deposit(ctx context.Context, actor Actor, amount int64) (wallet.Wallet, error) {
	var out wallet.Wallet
	err := s.db.InTx(ctx, func(ctx context.Context, tx storage.Stores) error {
		w, err := tx.Wallets.Get(ctx, actor.UserID)
		if err != nil {
			if !apperrors.IsCode(err, apperrors.CodeNotFound) {
				return err
			}
			w = wallet.Wallet{UserID: actor.UserID}
		}
		if err := w.CreditAvailable(amount, s.clock()); err != nil {
			return err
		}
		if err := tx.Wallets.Put(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return wallet.Wallet{}, err
	}
	return out, nil
}

// ListLedger returns the escrow transaction log for one contract.
func (s *Service) ListLedger(ctx context.Context, actor Actor, contractID string) ([]ledger.Transaction, error) {
	stores := s.db.Stores()
	c, err := stores.Contracts.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if _, err := requireParty(&c, actor); err != nil {
		return nil, err
	}
	return stores.Ledger.ListByContract(ctx, contractID)
}
