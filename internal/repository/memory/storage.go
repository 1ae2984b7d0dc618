// Package memory keeps the whole storage in process memory.
// It backs service and handler unit tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/repository"
)

type Storage struct {
	txMu sync.Mutex // serializes InTx callers

	mu           sync.RWMutex
	users        map[uuid.UUID]models.User
	revoked      map[string]models.RevokedToken
	calculations map[uuid.UUID]models.Calculation

	now func() time.Time
}

func NewStorage() *Storage {
	return &Storage{
		users:        make(map[uuid.UUID]models.User),
		revoked:      make(map[string]models.RevokedToken),
		calculations: make(map[uuid.UUID]models.Calculation),
		now:          time.Now,
	}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{s: s}
}

func (s *Storage) Revoked() repository.RevokedTokenRepo {
	return &RevokedTokenRepo{s: s}
}

func (s *Storage) Calculation() repository.CalculationRepo {
	return &CalculationRepo{s: s}
}

// Run fn holding the transaction lock. On error writes made through the transaction are undone
// Writes made outside of InTx while fn runs are kept, revocations are never undone
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txStorage{s: s, undo: &undoLog{}}
	err := fn(tx)
	if err != nil {
		s.mu.Lock()
		tx.undo.rollback()
		s.mu.Unlock()
	}

	return err
}

// Storage view handed to InTx callback. Nested InTx runs fn in the same transaction
type txStorage struct {
	s    *Storage
	undo *undoLog
}

func (t *txStorage) User() repository.UserRepo               { return &UserRepo{s: t.s, undo: t.undo} }
func (t *txStorage) Revoked() repository.RevokedTokenRepo    { return t.s.Revoked() }
func (t *txStorage) Calculation() repository.CalculationRepo { return &CalculationRepo{s: t.s, undo: t.undo} }

func (t *txStorage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return fn(t)
}

// Steps restoring entries written by a transaction
// Guarded by Storage.mu like the maps it touches
type undoLog struct {
	steps []func()
}

func (l *undoLog) rollback() {
	for i := len(l.steps) - 1; i >= 0; i-- {
		l.steps[i]()
	}
	l.steps = nil
}

// Remember current state of m[key] before it is written. No-op outside of transaction
func remember[K comparable, V any](l *undoLog, m map[K]V, key K) {
	if l == nil {
		return
	}

	prev, existed := m[key]
	l.steps = append(l.steps, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}
