package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atelierhq/atelier/internal/ledger"
)

type ledgerStore struct {
	q querier
}

// Append inserts one transaction. The log is append-only: an id collision is
// an error, never an update.
func (s *ledgerStore) Append(ctx context.Context, tx ledger.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(
		ctx,
		`INSERT INTO escrow_transactions (id, contract_id, tx_type, from_party, to_party, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.ContractID,
		string(tx.Type),
		string(tx.From),
		string(tx.To),
		tx.Amount,
		toMillis(tx.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append escrow transaction: %w", err)
	}
	return nil
}

func (s *ledgerStore) ListByContract(ctx context.Context, contractID string) ([]ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(
		ctx,
		`SELECT id, contract_id, tx_type, from_party, to_party, amount, created_at
		 FROM escrow_transactions WHERE contract_id = ? ORDER BY created_at ASC, id ASC`,
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("list escrow transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]ledger.Transaction, error) {
	var transactions []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var txType, from, to string
		var createdAt int64
		if err := rows.Scan(&tx.ID, &tx.ContractID, &txType, &from, &to, &tx.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan escrow transaction: %w", err)
		}
		tx.Type = ledger.TransactionType(txType)
		tx.From = ledger.Party(from)
		tx.To = ledger.Party(to)
		tx.CreatedAt = fromMillis(createdAt)
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrow transactions: %w", err)
	}
	return transactions, nil
}
