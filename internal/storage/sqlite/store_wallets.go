package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/wallet"
)

type walletStore struct {
	q querier
}

func (s *walletStore) Put(ctx context.Context, w wallet.Wallet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(
		ctx,
		`INSERT INTO wallets (user_id, available, escrowed, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   available = excluded.available,
		   escrowed = excluded.escrowed,
		   updated_at = excluded.updated_at`,
		w.UserID,
		w.Available,
		w.Escrowed,
		toMillis(w.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put wallet: %w", err)
	}
	return nil
}

func (s *walletStore) Get(ctx context.Context, userID string) (wallet.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return wallet.Wallet{}, err
	}
	row := s.q.QueryRowContext(
		ctx,
		`SELECT user_id, available, escrowed, updated_at FROM wallets WHERE user_id = ?`,
		userID,
	)
	var w wallet.Wallet
	var updatedAt int64
	if err := row.Scan(&w.UserID, &w.Available, &w.Escrowed, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.Wallet{}, storage.ErrNotFound
		}
		return wallet.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}
	w.UpdatedAt = fromMillis(updatedAt)
	return w, nil
}
