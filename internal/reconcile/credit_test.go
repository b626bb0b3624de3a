package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelos/backend/internal/domain"
)

func TestApplyCreditEntry(t *testing.T) {
	balance, err := ApplyCreditEntry(dec("0"), domain.CreditCharge, dec("250.005"))
	require.NoError(t, err)
	assert.Equal(t, "250.01", balance.String())

	balance, err = ApplyCreditEntry(balance, domain.CreditPayment, dec("250.01"))
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	_, err = ApplyCreditEntry(dec("100"), domain.CreditPayment, dec("100.01"))
	assert.True(t, IsValidation(err))
	_, err = ApplyCreditEntry(dec("100"), domain.CreditCharge, dec("0.004"))
	assert.True(t, IsValidation(err))
	_, err = ApplyCreditEntry(dec("100"), "refund", dec("1"))
	assert.True(t, IsValidation(err))
}

func TestPlanCreditSales(t *testing.T) {
	customers := []domain.CreditCustomer{
		{ID: "cust_a", Name: "A", Active: true},
		{ID: "cust_b", Name: "B", Active: true},
		{ID: "cust_c", Name: "C", Active: false},
	}

	planned, err := PlanCreditSales(customers, nil, dec("200"))
	require.NoError(t, err)
	assert.Empty(t, planned)

	planned, err = PlanCreditSales(customers, []domain.CreditSale{
		{CustomerID: " cust_a", Amount: dec("120")},
		{CustomerID: "cust_b", Amount: dec("80")},
	}, dec("200"))
	require.NoError(t, err)
	require.Len(t, planned, 2)
	assert.Equal(t, "cust_a", planned[0].CustomerID)

	cases := map[string][]domain.CreditSale{
		"mismatch":  {{CustomerID: "cust_a", Amount: dec("150")}},
		"unknown":   {{CustomerID: "cust_x", Amount: dec("200")}},
		"inactive":  {{CustomerID: "cust_c", Amount: dec("200")}},
		"duplicate": {{CustomerID: "cust_a", Amount: dec("100")}, {CustomerID: "cust_a", Amount: dec("100")}},
		"zero":      {{CustomerID: "cust_a", Amount: dec("200")}, {CustomerID: "cust_b", Amount: dec("0")}},
	}
	for name, sales := range cases {
		_, err := PlanCreditSales(customers, sales, dec("200"))
		assert.True(t, IsValidation(err), name)
	}
}

func TestBuildSubmissionEmitsCreditCharges(t *testing.T) {
	snap := pumpSnapshot()
	snap.Customers = []domain.CreditCustomer{{ID: "cust_a", Active: true}}
	in := ShiftInput{
		PumpID: "P1", Date: "2025-02-20", Shift: domain.ShiftMorning,
		Closings: []domain.NozzleClosing{{NozzleID: "N1", CloseReading: "1050"}, {NozzleID: "N2", CloseReading: "2010"}},
		Payments: domain.PaymentSplit{Cash: dec("5000"), Credit: dec("700")},
		Credits:  []domain.CreditSale{{CustomerID: "cust_a", Amount: dec("700")}},
	}
	sub, err := DefaultPolicy().BuildSubmission(snap, in, "ravi", time.Now(), counterID())
	require.NoError(t, err)
	require.Len(t, sub.CreditCharges, 1)
	charge := sub.CreditCharges[0]
	assert.Equal(t, domain.CreditCharge, charge.Type)
	assert.Equal(t, sub.Report.ID, charge.ShiftReportID)
	assert.True(t, charge.Amount.Equal(dec("700")))

	in.Credits[0].Amount = dec("600")
	_, err = DefaultPolicy().BuildSubmission(snap, in, "ravi", time.Now(), counterID())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "credits", verr.Field)
	assert.Equal(t, "P1", verr.PumpID)
}

func TestSummarizeSales(t *testing.T) {
	reports := []domain.ShiftReport{
		{PumpID: "P1", Date: "2025-02-19", TotalSales: dec("1000"), Cash: dec("900"), CreditOut: dec("100"), Collected: dec("900"), Variance: dec("-100")},
		{PumpID: "P1", Date: "2025-02-20", TotalSales: dec("2000"), Cash: dec("2100"), Collected: dec("2100"), Variance: dec("100")},
		{PumpID: "P2", Date: "2025-02-20", TotalSales: dec("500"), UPI: dec("500"), Collected: dec("500"), Variance: dec("0")},
		{PumpID: "P1", Date: "2025-02-21", TotalSales: dec("9999")},
	}

	sum := SummarizeSales(reports, "", "2025-02-19", "2025-02-20")
	assert.Equal(t, 3, sum.Shifts)
	assert.True(t, sum.TotalSales.Equal(dec("3500")))
	assert.True(t, sum.CreditOut.Equal(dec("100")))
	assert.True(t, sum.Variance.IsZero())
	assert.Equal(t, 1, sum.Short)
	assert.Equal(t, 1, sum.Over)
	require.Len(t, sum.Days, 2)
	assert.Equal(t, "2025-02-19", sum.Days[0].Date)
	assert.Equal(t, 2, sum.Days[1].Shifts)

	sum = SummarizeSales(reports, "P2", "2025-02-19", "2025-02-20")
	assert.Equal(t, 1, sum.Shifts)
	assert.True(t, sum.UPI.Equal(dec("500")))
}

func TestSummarizeCredit(t *testing.T) {
	sum := SummarizeCredit([]domain.CreditCustomer{
		{ID: "a", Active: true, CreditLimit: dec("100"), Balance: dec("150")},
		{ID: "b", Active: true, Balance: dec("50")},
		{ID: "c", Active: false, Balance: dec("0")},
	})
	assert.Equal(t, 3, sum.Customers)
	assert.Equal(t, 2, sum.ActiveCustomers)
	assert.Equal(t, 1, sum.OverLimit)
	assert.True(t, sum.Outstanding.Equal(dec("200")))
}
