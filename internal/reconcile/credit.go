package reconcile

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

// ApplyCreditEntry returns the customer balance after one ledger line. A
// payment may never take the balance below zero; a charge past the credit
// limit is allowed and only flagged by the customer's OverLimit.
func ApplyCreditEntry(balance decimal.Decimal, typ domain.CreditEntryType, amount decimal.Decimal) (decimal.Decimal, error) {
	amount = amount.Round(moneyScale)
	if !amount.IsPositive() {
		return balance, &ValidationError{Err: ErrInvalidInput, Field: "amount", Issue: "must be positive"}
	}
	switch typ {
	case domain.CreditCharge:
		return balance.Add(amount), nil
	case domain.CreditPayment:
		if amount.GreaterThan(balance) {
			return balance, &ValidationError{Err: ErrInvalidInput, Field: "amount", Issue: "payment exceeds outstanding balance"}
		}
		return balance.Sub(amount), nil
	default:
		return balance, &ValidationError{Err: ErrInvalidInput, Field: "type", Issue: "unknown entry type"}
	}
}

// PlanCreditSales checks a shift's credit split against the ledger. Every
// customer must be known and active, appear once, and the amounts must add
// up to the shift's credit_out. An empty split leaves the credit
// unattributed.
func PlanCreditSales(customers []domain.CreditCustomer, sales []domain.CreditSale, credit decimal.Decimal) ([]domain.CreditSale, error) {
	if len(sales) == 0 {
		return nil, nil
	}
	known := make(map[string]domain.CreditCustomer, len(customers))
	for _, c := range customers {
		known[c.ID] = c
	}

	out := make([]domain.CreditSale, 0, len(sales))
	seen := make(map[string]struct{}, len(sales))
	sum := decimal.Zero
	for _, sale := range sales {
		id := strings.TrimSpace(sale.CustomerID)
		c, ok := known[id]
		if !ok || !c.Active {
			return nil, &ValidationError{Err: ErrInvalidInput, Field: "credits", Issue: "unknown or inactive customer " + id}
		}
		if _, dup := seen[id]; dup {
			return nil, &ValidationError{Err: ErrInvalidInput, Field: "credits", Issue: "duplicate customer " + id}
		}
		seen[id] = struct{}{}
		amount := sale.Amount.Round(moneyScale)
		if !amount.IsPositive() {
			return nil, &ValidationError{Err: ErrInvalidInput, Field: "credits", Issue: "amount must be positive"}
		}
		sum = sum.Add(amount)
		out = append(out, domain.CreditSale{CustomerID: id, Amount: amount})
	}
	if !sum.Equal(credit.Round(moneyScale)) {
		return nil, &ValidationError{Err: ErrInvalidInput, Field: "credits", Issue: "credit split " + sum.StringFixed(moneyScale) + " does not match credit " + credit.StringFixed(moneyScale)}
	}
	return out, nil
}

// SummarizeCredit totals the outstanding ledger.
func SummarizeCredit(customers []domain.CreditCustomer) domain.CreditSummary {
	sum := domain.CreditSummary{Outstanding: decimal.Zero}
	for _, c := range customers {
		sum.Customers++
		if c.Active {
			sum.ActiveCustomers++
		}
		if c.OverLimit() {
			sum.OverLimit++
		}
		sum.Outstanding = sum.Outstanding.Add(c.Balance)
	}
	return sum
}

// SummarizeSales rolls shift reports up per business date, oldest first.
// Reports outside [from, to] are ignored.
func SummarizeSales(reports []domain.ShiftReport, pumpID, from, to string) domain.SalesSummary {
	out := domain.SalesSummary{
		PumpID:     pumpID,
		FromDate:   from,
		ToDate:     to,
		TotalSales: decimal.Zero,
		Cash:       decimal.Zero,
		Card:       decimal.Zero,
		UPI:        decimal.Zero,
		CreditOut:  decimal.Zero,
		Collected:  decimal.Zero,
		Variance:   decimal.Zero,
		Days:       make([]domain.SalesDay, 0),
	}
	days := make(map[string]*domain.SalesDay)
	for _, r := range reports {
		if r.Date < from || r.Date > to || (pumpID != "" && r.PumpID != pumpID) {
			continue
		}
		out.Shifts++
		out.TotalSales = out.TotalSales.Add(r.TotalSales)
		out.Cash = out.Cash.Add(r.Cash)
		out.Card = out.Card.Add(r.Card)
		out.UPI = out.UPI.Add(r.UPI)
		out.CreditOut = out.CreditOut.Add(r.CreditOut)
		out.Collected = out.Collected.Add(r.Collected)
		out.Variance = out.Variance.Add(r.Variance)
		switch ClassifyVariance(r.Variance) {
		case domain.VarianceShort:
			out.Short++
		case domain.VarianceOver:
			out.Over++
		}

		day, ok := days[r.Date]
		if !ok {
			day = &domain.SalesDay{Date: r.Date, TotalSales: decimal.Zero, Collected: decimal.Zero, CreditOut: decimal.Zero, Variance: decimal.Zero}
			days[r.Date] = day
		}
		day.Shifts++
		day.TotalSales = day.TotalSales.Add(r.TotalSales)
		day.Collected = day.Collected.Add(r.Collected)
		day.CreditOut = day.CreditOut.Add(r.CreditOut)
		day.Variance = day.Variance.Add(r.Variance)
	}
	for _, d := range days {
		out.Days = append(out.Days, *d)
	}
	slices.SortFunc(out.Days, func(a, b domain.SalesDay) int { return strings.Compare(a.Date, b.Date) })
	return out
}
