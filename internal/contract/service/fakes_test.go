package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/atelierhq/atelier/internal/contract"
	"github.com/atelierhq/atelier/internal/ledger"
	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/wallet"
)

// memDB is an in-memory storage.DB. InTx snapshots the maps before running
// the callback and restores them on error, mirroring the rollback semantics
// of the SQLite implementation.
type memDB struct {
	contracts   map[string]contract.Contract
	cancels     map[string]contract.CancelTicket
	revisions   map[string]contract.RevisionTicket
	changes     map[string]contract.ChangeTicket
	resolutions map[string]contract.ResolutionTicket
	uploads     map[string]contract.Upload
	wallets     map[string]wallet.Wallet
	ledger      []ledger.Transaction
}

func newMemDB() *memDB {
	return &memDB{
		contracts:   make(map[string]contract.Contract),
		cancels:     make(map[string]contract.CancelTicket),
		revisions:   make(map[string]contract.RevisionTicket),
		changes:     make(map[string]contract.ChangeTicket),
		resolutions: make(map[string]contract.ResolutionTicket),
		uploads:     make(map[string]contract.Upload),
		wallets:     make(map[string]wallet.Wallet),
	}
}

func (db *memDB) Stores() storage.Stores {
	return storage.Stores{
		Contracts:         &memContractStore{db: db},
		CancelTickets:     &memCancelStore{db: db},
		RevisionTickets:   &memRevisionStore{db: db},
		ChangeTickets:     &memChangeStore{db: db},
		ResolutionTickets: &memResolutionStore{db: db},
		Uploads:           &memUploadStore{db: db},
		Wallets:           &memWalletStore{db: db},
		Ledger:            &memLedgerStore{db: db},
	}
}

func (db *memDB) InTx(ctx context.Context, fn func(ctx context.Context, s storage.Stores) error) error {
	snapshot := db.clone()
	if err := fn(ctx, db.Stores()); err != nil {
		*db = *snapshot
		return err
	}
	return nil
}

func (db *memDB) Close() error { return nil }

func (db *memDB) clone() *memDB {
	out := newMemDB()
	for k, v := range db.contracts {
		out.contracts[k] = v
	}
	for k, v := range db.cancels {
		out.cancels[k] = v
	}
	for k, v := range db.revisions {
		out.revisions[k] = v
	}
	for k, v := range db.changes {
		out.changes[k] = v
	}
	for k, v := range db.resolutions {
		out.resolutions[k] = v
	}
	for k, v := range db.uploads {
		out.uploads[k] = v
	}
	for k, v := range db.wallets {
		out.wallets[k] = v
	}
	out.ledger = append([]ledger.Transaction(nil), db.ledger...)
	return out
}

type memContractStore struct{ db *memDB }

func (s *memContractStore) Put(ctx context.Context, c contract.Contract) error {
	s.db.contracts[c.ID] = c
	return nil
}

func (s *memContractStore) Get(ctx context.Context, id string) (contract.Contract, error) {
	c, ok := s.db.contracts[id]
	if !ok {
		return contract.Contract{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *memContractStore) ListByUser(ctx context.Context, userID string, limit int) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, c := range s.db.contracts {
		if c.ClientID == userID || c.ArtistID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memContractStore) ListGraceExpired(ctx context.Context, before time.Time) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, c := range s.db.contracts {
		if c.Status == contract.StatusActive && c.GraceEndsAt.Before(before) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GraceEndsAt.Before(out[j].GraceEndsAt) })
	return out, nil
}

type memCancelStore struct{ db *memDB }

func (s *memCancelStore) Put(ctx context.Context, t contract.CancelTicket) error {
	s.db.cancels[t.ID] = t
	return nil
}

func (s *memCancelStore) Get(ctx context.Context, id string) (contract.CancelTicket, error) {
	t, ok := s.db.cancels[id]
	if !ok {
		return contract.CancelTicket{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *memCancelStore) ListByContract(ctx context.Context, contractID string) ([]contract.CancelTicket, error) {
	var out []contract.CancelTicket
	for _, t := range s.db.cancels {
		if t.ContractID == contractID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memRevisionStore struct{ db *memDB }

func (s *memRevisionStore) Put(ctx context.Context, t contract.RevisionTicket) error {
	s.db.revisions[t.ID] = t
	return nil
}

func (s *memRevisionStore) Get(ctx context.Context, id string) (contract.RevisionTicket, error) {
	t, ok := s.db.revisions[id]
	if !ok {
		return contract.RevisionTicket{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *memRevisionStore) ListByContract(ctx context.Context, contractID string) ([]contract.RevisionTicket, error) {
	var out []contract.RevisionTicket
	for _, t := range s.db.revisions {
		if t.ContractID == contractID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memChangeStore struct{ db *memDB }

func (s *memChangeStore) Put(ctx context.Context, t contract.ChangeTicket) error {
	s.db.changes[t.ID] = t
	return nil
}

func (s *memChangeStore) Get(ctx context.Context, id string) (contract.ChangeTicket, error) {
	t, ok := s.db.changes[id]
	if !ok {
		return contract.ChangeTicket{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *memChangeStore) ListByContract(ctx context.Context, contractID string) ([]contract.ChangeTicket, error) {
	var out []contract.ChangeTicket
	for _, t := range s.db.changes {
		if t.ContractID == contractID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memResolutionStore struct{ db *memDB }

func (s *memResolutionStore) Put(ctx context.Context, t contract.ResolutionTicket) error {
	s.db.resolutions[t.ID] = t
	return nil
}

func (s *memResolutionStore) Get(ctx context.Context, id string) (contract.ResolutionTicket, error) {
	t, ok := s.db.resolutions[id]
	if !ok {
		return contract.ResolutionTicket{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *memResolutionStore) ListByContract(ctx context.Context, contractID string) ([]contract.ResolutionTicket, error) {
	var out []contract.ResolutionTicket
	for _, t := range s.db.resolutions {
		if t.ContractID == contractID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memUploadStore struct{ db *memDB }

func (s *memUploadStore) Put(ctx context.Context, u contract.Upload) error {
	s.db.uploads[u.ID] = u
	return nil
}

func (s *memUploadStore) Get(ctx context.Context, id string) (contract.Upload, error) {
	u, ok := s.db.uploads[id]
	if !ok {
		return contract.Upload{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *memUploadStore) ListByContract(ctx context.Context, contractID string) ([]contract.Upload, error) {
	var out []contract.Upload
	for _, u := range s.db.uploads {
		if u.ContractID == contractID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memUploadStore) GetSubmittedByScope(ctx context.Context, contractID, scope string) (contract.Upload, error) {
	for _, u := range s.db.uploads {
		if u.ContractID == contractID && u.Scope() == scope && u.Status == contract.UploadStatusSubmitted {
			return u, nil
		}
	}
	return contract.Upload{}, storage.ErrNotFound
}

func (s *memUploadStore) ListExpired(ctx context.Context, before time.Time) ([]contract.Upload, error) {
	var out []contract.Upload
	for _, u := range s.db.uploads {
		if u.Status == contract.UploadStatusSubmitted && u.ExpiresAt.Before(before) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

type memWalletStore struct{ db *memDB }

func (s *memWalletStore) Put(ctx context.Context, w wallet.Wallet) error {
	s.db.wallets[w.UserID] = w
	return nil
}

func (s *memWalletStore) Get(ctx context.Context, userID string) (wallet.Wallet, error) {
	w, ok := s.db.wallets[userID]
	if !ok {
		return wallet.Wallet{}, storage.ErrNotFound
	}
	return w, nil
}

type memLedgerStore struct{ db *memDB }

func (s *memLedgerStore) Append(ctx context.Context, tx ledger.Transaction) error {
	s.db.ledger = append(s.db.ledger, tx)
	return nil
}

func (s *memLedgerStore) ListByContract(ctx context.Context, contractID string) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range s.db.ledger {
		if tx.ContractID == contractID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// sequentialIDs hands out id-1, id-2, ...
func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("id-%d", n), nil
	}
}
