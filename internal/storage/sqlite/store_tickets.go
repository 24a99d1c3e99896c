package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atelierhq/atelier/internal/contract"
	"github.com/atelierhq/atelier/internal/storage"
)

// The four ticket families share one table shape, so the stores share the
// same upsert/get/list plumbing parameterized over the table name.

func putTicketDoc(ctx context.Context, q querier, table, id, contractID string, status int, createdAtMillis int64, entity any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", table, err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (id, contract_id, status, created_at, doc)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   doc = excluded.doc`,
		table,
	)
	if _, err := q.ExecContext(ctx, query, id, contractID, status, createdAtMillis, string(doc)); err != nil {
		return fmt.Errorf("put %s: %w", table, err)
	}
	return nil
}

func getTicketDoc(ctx context.Context, q querier, table, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, table), id)
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("get %s: %w", table, err)
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", table, err)
	}
	return nil
}

func listTicketDocs(ctx context.Context, q querier, table, contractID string, decode func(doc string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := q.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE contract_id = ? ORDER BY created_at ASC`, table),
		contractID,
	)
	if err != nil {
		return fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		if err := decode(doc); err != nil {
			return fmt.Errorf("unmarshal %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}

type cancelTicketStore struct {
	q querier
}

func (s *cancelTicketStore) Put(ctx context.Context, t contract.CancelTicket) error {
	return putTicketDoc(ctx, s.q, "cancel_tickets", t.ID, t.ContractID, int(t.Status), toMillis(t.CreatedAt), t)
}

func (s *cancelTicketStore) Get(ctx context.Context, id string) (contract.CancelTicket, error) {
	var t contract.CancelTicket
	if err := getTicketDoc(ctx, s.q, "cancel_tickets", id, &t); err != nil {
		return contract.CancelTicket{}, err
	}
	return t, nil
}

func (s *cancelTicketStore) ListByContract(ctx context.Context, contractID string) ([]contract.CancelTicket, error) {
	var tickets []contract.CancelTicket
	err := listTicketDocs(ctx, s.q, "cancel_tickets", contractID, func(doc string) error {
		var t contract.CancelTicket
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return err
		}
		tickets = append(tickets, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

type revisionTicketStore struct {
	q querier
}

func (s *revisionTicketStore) Put(ctx context.Context, t contract.RevisionTicket) error {
	return putTicketDoc(ctx, s.q, "revision_tickets", t.ID, t.ContractID, int(t.Status), toMillis(t.CreatedAt), t)
}

func (s *revisionTicketStore) Get(ctx context.Context, id string) (contract.RevisionTicket, error) {
	var t contract.RevisionTicket
	if err := getTicketDoc(ctx, s.q, "revision_tickets", id, &t); err != nil {
		return contract.RevisionTicket{}, err
	}
	return t, nil
}

func (s *revisionTicketStore) ListByContract(ctx context.Context, contractID string) ([]contract.RevisionTicket, error) {
	var tickets []contract.RevisionTicket
	err := listTicketDocs(ctx, s.q, "revision_tickets", contractID, func(doc string) error {
		var t contract.RevisionTicket
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return err
		}
		tickets = append(tickets, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

type changeTicketStore struct {
	q querier
}

func (s *changeTicketStore) Put(ctx context.Context, t contract.ChangeTicket) error {
	return putTicketDoc(ctx, s.q, "change_tickets", t.ID, t.ContractID, int(t.Status), toMillis(t.CreatedAt), t)
}

func (s *changeTicketStore) Get(ctx context.Context, id string) (contract.ChangeTicket, error) {
	var t contract.ChangeTicket
	if err := getTicketDoc(ctx, s.q, "change_tickets", id, &t); err != nil {
		return contract.ChangeTicket{}, err
	}
	return t, nil
}

func (s *changeTicketStore) ListByContract(ctx context.Context, contractID string) ([]contract.ChangeTicket, error) {
	var tickets []contract.ChangeTicket
	err := listTicketDocs(ctx, s.q, "change_tickets", contractID, func(doc string) error {
		var t contract.ChangeTicket
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return err
		}
		tickets = append(tickets, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

type resolutionTicketStore struct {
	q querier
}

func (s *resolutionTicketStore) Put(ctx context.Context, t contract.ResolutionTicket) error {
	return putTicketDoc(ctx, s.q, "resolution_tickets", t.ID, t.ContractID, int(t.Status), toMillis(t.CreatedAt), t)
}

func (s *resolutionTicketStore) Get(ctx context.Context, id string) (contract.ResolutionTicket, error) {
	var t contract.ResolutionTicket
	if err := getTicketDoc(ctx, s.q, "resolution_tickets", id, &t); err != nil {
		return contract.ResolutionTicket{}, err
	}
	return t, nil
}

func (s *resolutionTicketStore) ListByContract(ctx context.Context, contractID string) ([]contract.ResolutionTicket, error) {
	var tickets []contract.ResolutionTicket
	err := listTicketDocs(ctx, s.q, "resolution_tickets", contractID, func(doc string) error {
		var t contract.ResolutionTicket
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return err
		}
		tickets = append(tickets, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
