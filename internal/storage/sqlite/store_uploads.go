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

type uploadStore struct {
	q querier
}

func (s *uploadStore) Put(ctx context.Context, u contract.Upload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal upload: %w", err)
	}
	_, err = s.q.ExecContext(
		ctx,
		`INSERT INTO uploads (id, contract_id, scope, status, expires_at, created_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   expires_at = excluded.expires_at,
		   doc = excluded.doc`,
		u.ID,
		u.ContractID,
		u.Scope(),
		int(u.Status),
		toMillis(u.ExpiresAt),
		toMillis(u.CreatedAt),
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("put upload: %w", err)
	}
	return nil
}

func (s *uploadStore) Get(ctx context.Context, id string) (contract.Upload, error) {
	if err := ctx.Err(); err != nil {
		return contract.Upload{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT doc FROM uploads WHERE id = ?`, id)
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contract.Upload{}, storage.ErrNotFound
		}
		return contract.Upload{}, fmt.Errorf("get upload: %w", err)
	}
	return unmarshalUpload(doc)
}

func (s *uploadStore) ListByContract(ctx context.Context, contractID string) ([]contract.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(
		ctx,
		`SELECT doc FROM uploads WHERE contract_id = ? ORDER BY created_at ASC`,
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()
	return scanUploads(rows)
}

// GetSubmittedByScope returns the single submitted upload for one
// (contract, scope) pair. Scope is the review-gate key: at most one row can
// be submitted per pair.
func (s *uploadStore) GetSubmittedByScope(ctx context.Context, contractID, scope string) (contract.Upload, error) {
	if err := ctx.Err(); err != nil {
		return contract.Upload{}, err
	}
	row := s.q.QueryRowContext(
		ctx,
		`SELECT doc FROM uploads WHERE contract_id = ? AND scope = ? AND status = ? LIMIT 1`,
		contractID,
		scope,
		int(contract.UploadStatusSubmitted),
	)
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contract.Upload{}, storage.ErrNotFound
		}
		return contract.Upload{}, fmt.Errorf("get submitted upload: %w", err)
	}
	return unmarshalUpload(doc)
}

// ListExpired returns submitted uploads whose review window closed before
// the given time, oldest first.
func (s *uploadStore) ListExpired(ctx context.Context, before time.Time) ([]contract.Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(
		ctx,
		`SELECT doc FROM uploads WHERE status = ? AND expires_at < ? ORDER BY expires_at ASC`,
		int(contract.UploadStatusSubmitted),
		toMillis(before),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired uploads: %w", err)
	}
	defer rows.Close()
	return scanUploads(rows)
}

func scanUploads(rows *sql.Rows) ([]contract.Upload, error) {
	var uploads []contract.Upload
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		u, err := unmarshalUpload(doc)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return uploads, nil
}

func unmarshalUpload(doc string) (contract.Upload, error) {
	var u contract.Upload
	if err := json.Unmarshal([]byte(doc), &u); err != nil {
		return contract.Upload{}, fmt.Errorf("unmarshal upload: %w", err)
	}
	return u, nil
}
