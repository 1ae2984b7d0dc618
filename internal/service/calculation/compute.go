package calculation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/models"
)

const MinInputs = 2

// Fold inputs left to right with operation of the type
func Compute(typ models.CalculationType, inputs []decimal.Decimal) (decimal.Decimal, error) {
	if len(inputs) < MinInputs {
		return decimal.Zero, fmt.Errorf("%w: at least %d inputs required", apperrors.ErrCalculationInvalid, MinInputs)
	}

	result := inputs[0]
	for _, x := range inputs[1:] {
		switch typ {
		case models.CalculationAddition:
			result = result.Add(x)
		case models.CalculationSubtraction:
			result = result.Sub(x)
		case models.CalculationMultiplication:
			result = result.Mul(x)
		case models.CalculationDivision:
			if x.IsZero() {
				return decimal.Zero, fmt.Errorf("%w: division by zero", apperrors.ErrCalculationInvalid)
			}
			result = result.Div(x)
		default:
			return decimal.Zero, fmt.Errorf("%w: unknown type %q", apperrors.ErrCalculationInvalid, typ)
		}
	}

	return result, nil
}
