package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/models"
)

type CalculationRepo struct {
	DB DBTX
}

const calculationColumns = `id, user_id, type, inputs, result, created_at, updated_at`

const createCalculation = `-- name: CreateCalculation
INSERT INTO calculations (id, user_id, type, inputs, result, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + calculationColumns

func (r *CalculationRepo) CreateCalculation(ctx context.Context, c models.Calculation) (models.Calculation, error) {
	inputs, err := json.Marshal(c.Inputs)
	if err != nil {
		return c, fmt.Errorf("can't encode inputs: %w", err)
	}

	rows, _ := r.DB.Query(ctx, createCalculation, c.ID, c.UserID, c.Type, inputs, c.Result, c.CreatedAt, c.UpdatedAt)
	return collectCalculation(rows)
}

const getCalculation = `-- name: GetCalculation
SELECT ` + calculationColumns + ` FROM calculations
WHERE id = $1 AND user_id = $2
`

func (r *CalculationRepo) GetCalculation(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.Calculation, error) {
	rows, _ := r.DB.Query(ctx, getCalculation, id, userID)
	return collectCalculation(rows)
}

const listCalculations = `-- name: ListCalculations
SELECT ` + calculationColumns + ` FROM calculations
WHERE user_id = $1
ORDER BY created_at, id
`

func (r *CalculationRepo) ListCalculations(ctx context.Context, userID uuid.UUID) ([]models.Calculation, error) {
	rows, _ := r.DB.Query(ctx, listCalculations, userID)
	calculations, err := pgx.CollectRows(rows, rowToCalculation)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return calculations, nil
}

const updateCalculation = `-- name: UpdateCalculation
UPDATE calculations
SET type = $3, inputs = $4, result = $5, updated_at = $6
WHERE id = $1 AND user_id = $2
RETURNING ` + calculationColumns

func (r *CalculationRepo) UpdateCalculation(ctx context.Context, c models.Calculation) (models.Calculation, error) {
	inputs, err := json.Marshal(c.Inputs)
	if err != nil {
		return c, fmt.Errorf("can't encode inputs: %w", err)
	}

	rows, _ := r.DB.Query(ctx, updateCalculation, c.ID, c.UserID, c.Type, inputs, c.Result, c.UpdatedAt)
	return collectCalculation(rows)
}

const deleteCalculation = `-- name: DeleteCalculation
DELETE FROM calculations
WHERE id = $1 AND user_id = $2
`

func (r *CalculationRepo) DeleteCalculation(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteCalculation, id, userID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrCalculationNotFound
	default:
		return nil
	}
}

func collectCalculation(rows pgx.Rows) (models.Calculation, error) {
	c, err := pgx.CollectOneRow(rows, rowToCalculation)

	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, pgx.ErrNoRows):
		return c, apperrors.ErrCalculationNotFound
	default:
		return c, fmt.Errorf("db error: %w", err)
	}
}

func rowToCalculation(row pgx.CollectableRow) (models.Calculation, error) {
	var (
		c      models.Calculation
		inputs []byte
	)

	err := row.Scan(&c.ID, &c.UserID, &c.Type, &inputs, &c.Result, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}

	err = json.Unmarshal(inputs, &c.Inputs)
	return c, err
}
