package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	"github.com/atelierhq/atelier/internal/storage"
)

type contractStore struct {
	q querier
}

// Put upserts one contract aggregate, milestones included.
func (s *contractStore) Put(ctx context.Context, c contract.Contract) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal contract: %w", err)
	}
	_, err = s.q.ExecContext(
		ctx,
		`INSERT INTO contracts (id, client_id, artist_id, status, grace_ends_at, created_at, updated_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   grace_ends_at = excluded.grace_ends_at,
		   updated_at = excluded.updated_at,
		   doc = excluded.doc`,
		c.ID,
		c.ClientID,
		c.ArtistID,
		int(c.Status),
		toMillis(c.GraceEndsAt),
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("put contract: %w", err)
	}
	return nil
}

// Get loads one contract aggregate by id.
func (s *contractStore) Get(ctx context.Context, id string) (contract.Contract, error) {
	if err := ctx.Err(); err != nil {
		return contract.Contract{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT doc FROM contracts WHERE id = ?`, id)
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contract.Contract{}, storage.ErrNotFound
		}
		return contract.Contract{}, fmt.Errorf("get contract: %w", err)
	}
	return unmarshalContract(doc)
}

// ListByUser returns contracts where the user is client or artist, newest first.
func (s *contractStore) ListByUser(ctx context.Context, userID string, limit int) ([]contract.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.QueryContext(
		ctx,
		`SELECT doc FROM contracts WHERE client_id = ? OR artist_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()
	return scanContracts(rows)
}

// ListGraceExpired returns active contracts whose grace window ended before
// the given time.
func (s *contractStore) ListGraceExpired(ctx context.Context, before time.Time) ([]contract.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(
		ctx,
		`SELECT doc FROM contracts WHERE status = ? AND grace_ends_at < ? ORDER BY grace_ends_at ASC`,
		int(contract.StatusActive),
		toMillis(before),
	)
	if err != nil {
		return nil, fmt.Errorf("list grace-expired contracts: %w", err)
	}
	defer rows.Close()
	return scanContracts(rows)
}

func scanContracts(rows *sql.Rows) ([]contract.Contract, error) {
	var contracts []contract.Contract
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		c, err := unmarshalContract(doc)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return contracts, nil
}

func unmarshalContract(doc string) (contract.Contract, error) {
	var c contract.Contract
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return contract.Contract{}, fmt.Errorf("unmarshal contract: %w", err)
	}
	return c, nil
}
