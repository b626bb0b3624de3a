package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelos/backend/internal/domain"
)

func TestCreditLedgerEndpoints(t *testing.T) {
	api := newTestAPI(t)
	manager := newClient(t, api, "manager")
	operator := newClient(t, api, "operator")

	res := operator.do(http.MethodPost, "/api/v1/credits", map[string]any{"name": "Sharma Transport"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = manager.do(http.MethodPost, "/api/v1/credits", map[string]any{"name": "Sharma Transport", "vehicle_no": "mh12ab1234", "credit_limit": "150"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created struct {
		Customer domain.CreditCustomer `json:"customer"`
	}
	decodeBody(t, res, &created)
	assert.Equal(t, "MH12AB1234", created.Customer.VehicleNo)
	customerID := created.Customer.ID

	shift := morningShift()
	shift["credits"] = []map[string]string{{"customer_id": customerID, "amount": "200"}}
	res = operator.do(http.MethodPost, "/api/v1/shifts", shift)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = operator.do(http.MethodGet, "/api/v1/credits/"+customerID, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var fetched struct {
		Customer domain.CreditCustomer `json:"customer"`
	}
	decodeBody(t, res, &fetched)
	assert.Equal(t, "200", fetched.Customer.Balance.String())

	res = manager.do(http.MethodPost, "/api/v1/credits/"+customerID+"/transactions", map[string]any{"type": "payment", "amount": "500"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = manager.do(http.MethodPost, "/api/v1/credits/"+customerID+"/transactions", map[string]any{"type": "payment", "amount": "120", "note": "cheque"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var posted struct {
		Transaction domain.CreditTransaction `json:"transaction"`
	}
	decodeBody(t, res, &posted)
	assert.Equal(t, "80", posted.Transaction.Balance.String())

	res = operator.do(http.MethodGet, "/api/v1/credits/"+customerID+"/transactions", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var ledger struct {
		Transactions []domain.CreditTransaction `json:"transactions"`
	}
	decodeBody(t, res, &ledger)
	require.Len(t, ledger.Transactions, 2)
	assert.Equal(t, domain.CreditPayment, ledger.Transactions[0].Type)
	assert.Equal(t, domain.CreditCharge, ledger.Transactions[1].Type)
	assert.NotEmpty(t, ledger.Transactions[1].ShiftReportID)

	res = manager.do(http.MethodGet, "/api/v1/credits/summary", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var summary domain.CreditSummary
	decodeBody(t, res, &summary)
	assert.Equal(t, 1, summary.Customers)
	assert.Equal(t, "80", summary.Outstanding.String())

	res = manager.do(http.MethodDelete, "/api/v1/credits/"+customerID, nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = operator.do(http.MethodGet, "/api/v1/credits", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var active struct {
		Customers []domain.CreditCustomer `json:"customers"`
	}
	decodeBody(t, res, &active)
	assert.Empty(t, active.Customers)
}

func TestPumpUpdateEndpoint(t *testing.T) {
	api := newTestAPI(t)
	admin := newClient(t, api, "admin")

	res := newClient(t, api, "operator").do(http.MethodPatch, "/api/v1/pumps/P1", map[string]any{"active": false})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = admin.do(http.MethodPatch, "/api/v1/pumps/P1", map[string]any{"name": "Forecourt 1", "active": false})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var updated struct {
		Pump domain.Pump `json:"pump"`
	}
	decodeBody(t, res, &updated)
	assert.Equal(t, "Forecourt 1", updated.Pump.Name)
	assert.False(t, updated.Pump.Active)

	res = newClient(t, api, "operator").do(http.MethodPost, "/api/v1/shifts", morningShift())
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = admin.do(http.MethodPatch, "/api/v1/pumps/P9", map[string]any{"active": true})
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestSalesSummaryEndpoint(t *testing.T) {
	api := newTestAPI(t)
	res := newClient(t, api, "operator").do(http.MethodPost, "/api/v1/shifts", morningShift())
	require.Equal(t, http.StatusCreated, res.Code)

	manager := newClient(t, api, "manager")
	res = manager.do(http.MethodGet, "/api/v1/reports/sales-summary?from=2025-02-19&to=2025-02-20", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var summary domain.SalesSummary
	decodeBody(t, res, &summary)
	assert.Equal(t, 1, summary.Shifts)
	assert.Equal(t, "8715", summary.TotalSales.String())
	assert.Equal(t, "200", summary.CreditOut.String())
	require.Len(t, summary.Days, 1)
	assert.Equal(t, "2025-02-20", summary.Days[0].Date)

	res = manager.do(http.MethodGet, "/api/v1/reports/sales-summary?from=2025-02-21&to=2025-02-20", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = newClient(t, api, "operator").do(http.MethodGet, "/api/v1/reports/sales-summary", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}
