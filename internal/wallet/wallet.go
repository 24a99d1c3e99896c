// Package wallet holds per-user balances and the primitives that move money
// between the available and escrowed buckets. Balances are only ever mutated
// through these primitives so the sufficient-funds check and the movement
// happen on the same snapshot.
package wallet

import (
	"fmt"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
)

var (
	// ErrInsufficientFunds indicates a debit larger than the available balance.
	ErrInsufficientFunds = apperrors.New(apperrors.CodeWalletInsufficientFunds, "insufficient available funds")
	// ErrInvalidAmount indicates a non-positive movement amount.
	ErrInvalidAmount = apperrors.New(apperrors.CodeWalletInvalidAmount, "amount must be greater than zero")
)

// Wallet is one user's money position, in cents.
type Wallet struct {
	UserID    string
	Available int64
	Escrowed  int64
	UpdatedAt time.Time
}

// DebitAvailable removes amount from the available balance.
func (w *Wallet) DebitAvailable(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Available < amount {
		return apperrors.WithMetadata(
			apperrors.CodeWalletInsufficientFunds,
			fmt.Sprintf("available balance %d is below %d", w.Available, amount),
			map[string]string{"Available": fmt.Sprintf("%d", w.Available)},
		)
	}
	w.Available -= amount
	w.UpdatedAt = now.UTC()
	return nil
}

// CreditAvailable adds amount to the available balance.
func (w *Wallet) CreditAvailable(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	w.Available += amount
	w.UpdatedAt = now.UTC()
	return nil
}

// MoveAvailableToEscrow atomically shifts amount from available to escrowed.
func (w *Wallet) MoveAvailableToEscrow(amount int64, now time.Time) error {
	if err := w.DebitAvailable(amount, now); err != nil {
		return err
	}
	w.Escrowed += amount
	return nil
}

// ReleaseEscrow removes amount from the escrowed bucket, after settlement
// has decided where it goes.
func (w *Wallet) ReleaseEscrow(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Escrowed < amount {
		return apperrors.New(apperrors.CodeLedgerNegativeBalance,
			fmt.Sprintf("escrowed balance %d is below %d", w.Escrowed, amount))
	}
	w.Escrowed -= amount
	w.UpdatedAt = now.UTC()
	return nil
}
