// Package memory is an in-process implementation of the repositories and the
// credit ledger. It backs the server when no DATABASE_URL is configured and
// every service test.
package memory

import (
	"context"
	"maps"
	"sync"

	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
)

type txMarker struct{}

// state is everything a transaction may need to roll back
type state struct {
	projects     map[string]models.Project
	revisions    map[string][]*models.Revision // by project, ordered by version
	jobs         map[string]models.GenerationJob
	balances     map[string]int
	transactions map[string]models.CreditTransaction // by idempotency key
}

func newState() *state {
	return &state{
		projects:     map[string]models.Project{},
		revisions:    map[string][]*models.Revision{},
		jobs:         map[string]models.GenerationJob{},
		balances:     map[string]int{},
		transactions: map[string]models.CreditTransaction{},
	}
}

// clone copies the maps. Revisions are immutable so the slices' elements are shared.
func (s *state) clone() *state {
	revisions := make(map[string][]*models.Revision, len(s.revisions))
	for id, list := range s.revisions {
		revisions[id] = append([]*models.Revision(nil), list...)
	}
	return &state{
		projects:     maps.Clone(s.projects),
		revisions:    revisions,
		jobs:         maps.Clone(s.jobs),
		balances:     maps.Clone(s.balances),
		transactions: maps.Clone(s.transactions),
	}
}

// Store holds all data behind one mutex. A transaction holds the mutex for its
// whole duration, which makes transactions serializable.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{st: newState()}
}

// inTx reports whether ctx belongs to a transaction of this store
func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txMarker{}).(*Store)
	return owner == s
}

// read runs fn with the store locked unless ctx already holds the lock
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

// write is read for mutations. Outside a transaction a failed fn leaves no trace.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.ExecTx(ctx, func(ctx context.Context) error {
		return fn(s.st)
	})
}

// ExecTx runs fn with the store locked. If fn fails, every change it made is
// undone. Nested calls roll back only their own changes.
func (s *Store) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
		ctx = context.WithValue(ctx, txMarker{}, s)
	}

	snapshot := s.st.clone()
	if err := fn(ctx); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}
