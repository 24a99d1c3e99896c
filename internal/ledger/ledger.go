// Package ledger is the append-only record of fund movement between client,
// escrow, and artist. Escrow balances are always reconciled from the log,
// never stored.
package ledger

import (
	"fmt"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
	"github.com/atelierhq/atelier/internal/id"
)

// TransactionType labels one escrow transaction.
type TransactionType string

const (
	// TypeHold moves the contract total from client to escrow at funding.
	TypeHold TransactionType = "hold"
	// TypeRelease moves settled funds from escrow to artist.
	TypeRelease TransactionType = "release"
	// TypeRefund moves settled funds from escrow back to client.
	TypeRefund TransactionType = "refund"
	// TypeRevisionFee moves a paid revision fee from client to escrow.
	TypeRevisionFee TransactionType = "revision_fee"
	// TypeChangeFee moves a paid change fee from client to escrow.
	TypeChangeFee TransactionType = "change_fee"
)

// Party names one end of a transaction.
type Party string

const (
	PartyClient Party = "client"
	PartyEscrow Party = "escrow"
	PartyArtist Party = "artist"
)

// Transaction is one append-only ledger row.
type Transaction struct {
	ID         string
	ContractID string
	Type       TransactionType
	From       Party
	To         Party
	Amount     int64
	CreatedAt  time.Time
}

// NewTransaction builds a ledger row with a generated id.
func NewTransaction(contractID string, txType TransactionType, from, to Party, amount int64, now func() time.Time, idGenerator func() (string, error)) (Transaction, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if amount <= 0 {
		return Transaction{}, apperrors.New(apperrors.CodeWalletInvalidAmount, "transaction amount must be greater than zero")
	}
	txID, err := idGenerator()
	if err != nil {
		return Transaction{}, fmt.Errorf("generate transaction id: %w", err)
	}
	return Transaction{
		ID:         txID,
		ContractID: contractID,
		Type:       txType,
		From:       from,
		To:         to,
		Amount:     amount,
		CreatedAt:  now().UTC(),
	}, nil
}

// EscrowBalance reconciles the escrow balance for one contract from its
// transaction log: inflows to escrow minus outflows from escrow.
func EscrowBalance(transactions []Transaction) int64 {
	var balance int64
	for _, tx := range transactions {
		if tx.To == PartyEscrow {
			balance += tx.Amount
		}
		if tx.From == PartyEscrow {
			balance -= tx.Amount
		}
	}
	return balance
}
