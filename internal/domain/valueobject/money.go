package valueobject

import (
	"fmt"
	"math"

	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
)

// MaxBudget caps a single proposal at one hundred million pesos.
const MaxBudget = 100_000_000

// Money is an amount in Philippine pesos rounded to centavos.
type Money struct {
	Amount float64
}

func NewMoney(amount float64) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, apperror.Validation("amount must be a number")
	}
	if amount < 0 {
		return Money{}, apperror.Validation("amount cannot be negative")
	}
	if amount > MaxBudget {
		return Money{}, apperror.Validation("amount cannot exceed %d", MaxBudget)
	}
	return Money{Amount: math.Round(amount*100) / 100}, nil
}

// ApprovedBudget resolves the budget granted on approval: the requested
// amount when set, otherwise the estimate.
func ApprovedBudget(requested *float64, estimated float64) (Money, error) {
	if requested == nil {
		return NewMoney(estimated)
	}
	return NewMoney(*requested)
}

func (m Money) String() string {
	return fmt.Sprintf("PHP %.2f", m.Amount)
}
