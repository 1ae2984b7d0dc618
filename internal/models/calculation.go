package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CalculationType string

const (
	CalculationAddition       CalculationType = "addition"
	CalculationSubtraction    CalculationType = "subtraction"
	CalculationMultiplication CalculationType = "multiplication"
	CalculationDivision       CalculationType = "division"
)

type Calculation struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      CalculationType
	Inputs    []decimal.Decimal
	Result    decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
