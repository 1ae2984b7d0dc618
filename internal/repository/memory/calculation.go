package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/models"
)

type CalculationRepo struct {
	s    *Storage
	undo *undoLog
}

func (r *CalculationRepo) CreateCalculation(ctx context.Context, c models.Calculation) (models.Calculation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c.Inputs = slices.Clone(c.Inputs)
	remember(r.undo, r.s.calculations, c.ID)
	r.s.calculations[c.ID] = c

	return c, nil
}

func (r *CalculationRepo) GetCalculation(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.Calculation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.calculations[id]
	if !ok || c.UserID != userID {
		return models.Calculation{}, apperrors.ErrCalculationNotFound
	}

	c.Inputs = slices.Clone(c.Inputs)
	return c, nil
}

func (r *CalculationRepo) ListCalculations(ctx context.Context, userID uuid.UUID) ([]models.Calculation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var list []models.Calculation
	for _, c := range r.s.calculations {
		if c.UserID == userID {
			c.Inputs = slices.Clone(c.Inputs)
			list = append(list, c)
		}
	}

	slices.SortFunc(list, func(a, b models.Calculation) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})

	return list, nil
}

func (r *CalculationRepo) UpdateCalculation(ctx context.Context, c models.Calculation) (models.Calculation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.calculations[c.ID]
	if !ok || stored.UserID != c.UserID {
		return models.Calculation{}, apperrors.ErrCalculationNotFound
	}

	c.CreatedAt = stored.CreatedAt
	c.Inputs = slices.Clone(c.Inputs)
	remember(r.undo, r.s.calculations, c.ID)
	r.s.calculations[c.ID] = c

	return c, nil
}

func (r *CalculationRepo) DeleteCalculation(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.calculations[id]
	if !ok || c.UserID != userID {
		return apperrors.ErrCalculationNotFound
	}

	remember(r.undo, r.s.calculations, id)
	delete(r.s.calculations, id)
	return nil
}
