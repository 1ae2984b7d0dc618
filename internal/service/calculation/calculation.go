package calculation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/repository"
)

type CalculationService struct {
	// Repository to access long term data
	storage repository.Storage

	now func() time.Time
}

func NewService(storage repository.Storage) *CalculationService {
	return &CalculationService{
		storage: storage,
		now:     time.Now,
	}
}

// Fields to change. Nil keeps the current value, result is recomputed anyway
type Update struct {
	Type   *models.CalculationType
	Inputs []decimal.Decimal
}

func (s *CalculationService) CreateCalculation(ctx context.Context, userID uuid.UUID, typ models.CalculationType, inputs []decimal.Decimal) (models.Calculation, error) {
	result, err := Compute(typ, inputs)
	if err != nil {
		return models.Calculation{}, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	return s.storage.Calculation().CreateCalculation(ctx, models.Calculation{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Inputs:    inputs,
		Result:    result,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *CalculationService) ListCalculations(ctx context.Context, userID uuid.UUID) ([]models.Calculation, error) {
	return s.storage.Calculation().ListCalculations(ctx, userID)
}

// Has to return apperrors.ErrCalculationNotFound if calculation is missing or owned by other user
func (s *CalculationService) GetCalculation(ctx context.Context, userID uuid.UUID, id uuid.UUID) (models.Calculation, error) {
	return s.storage.Calculation().GetCalculation(ctx, id, userID)
}

func (s *CalculationService) UpdateCalculation(ctx context.Context, userID uuid.UUID, id uuid.UUID, update Update) (models.Calculation, error) {
	var updated models.Calculation

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		c, err := storage.Calculation().GetCalculation(ctx, id, userID)
		if err != nil {
			return err
		}

		if update.Type != nil {
			c.Type = *update.Type
		}
		if update.Inputs != nil {
			c.Inputs = update.Inputs
		}

		c.Result, err = Compute(c.Type, c.Inputs)
		if err != nil {
			return err
		}
		c.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)

		updated, err = storage.Calculation().UpdateCalculation(ctx, c)
		return err
	})

	return updated, err
}

func (s *CalculationService) DeleteCalculation(ctx context.Context, userID uuid.UUID, id uuid.UUID) error {
	return s.storage.Calculation().DeleteCalculation(ctx, id, userID)
}
