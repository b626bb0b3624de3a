package reconcile

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

// Denominations are the accepted note and coin values, largest first.
var Denominations = []int{2000, 500, 200, 100, 50, 20, 10, 5, 2, 1}

func isDenomination(value int) bool {
	for _, d := range Denominations {
		if d == value {
			return true
		}
	}
	return false
}

// CrossCheckDenominations totals a drawer count and compares it with the
// cash declared on the shift.
func CrossCheckDenominations(counts map[int]int, declaredCash decimal.Decimal) (domain.DenominationCheck, error) {
	values := make([]int, 0, len(counts))
	for value, count := range counts {
		if !isDenomination(value) {
			return domain.DenominationCheck{}, &ValidationError{Err: ErrInvalidInput, Field: "counts", Issue: fmt.Sprintf("unknown denomination %d", value)}
		}
		if count < 0 {
			return domain.DenominationCheck{}, &ValidationError{Err: ErrInvalidInput, Field: "counts", Issue: fmt.Sprintf("negative count for %d", value)}
		}
		values = append(values, value)
	}
	if declaredCash.IsNegative() {
		return domain.DenominationCheck{}, &ValidationError{Err: ErrInvalidInput, Field: "declared_cash", Issue: "must not be negative"}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))

	check := domain.DenominationCheck{
		Lines:        make([]domain.DenominationLine, 0, len(values)),
		CountedTotal: decimal.Zero,
		DeclaredCash: declaredCash,
	}
	for _, value := range values {
		subtotal := decimal.NewFromInt(int64(value)).Mul(decimal.NewFromInt(int64(counts[value])))
		check.Lines = append(check.Lines, domain.DenominationLine{Value: value, Count: counts[value], Subtotal: subtotal})
		check.CountedTotal = check.CountedTotal.Add(subtotal)
	}
	check.Difference = check.CountedTotal.Sub(declaredCash)
	check.Matches = check.Difference.IsZero()
	return check, nil
}
