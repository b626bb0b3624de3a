package httpapi

import (
	"net/http"
	"strings"

	"fuelos/backend/internal/domain"
)

func (a *API) handlePumpUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.PumpUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pump, err := a.service.UpdatePump(r.Context(), r.PathValue("pumpID"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pump": pump})
}

func (a *API) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	summary, err := a.service.SalesSummary(r.Context(), domain.SalesSummaryRequest{
		PumpID:   q.Get("pump_id"),
		FromDate: q.Get("from"),
		ToDate:   q.Get("to"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleCreditCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		includeInactive := r.URL.Query().Get("include_inactive") == "true"
		customers, err := a.service.ListCreditCustomers(r.Context(), includeInactive)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
	case http.MethodPost:
		var req domain.CreditCustomerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.CreateCreditCustomer(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCreditSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.service.CreditSummary(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleCreditCustomer(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("customerID"))
	var (
		customer domain.CreditCustomer
		err      error
	)
	switch r.Method {
	case http.MethodGet:
		customer, err = a.service.GetCreditCustomer(r.Context(), id)
	case http.MethodPatch:
		var req domain.CreditCustomerUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err = a.service.UpdateCreditCustomer(r.Context(), id, req)
	case http.MethodDelete:
		customer, err = a.service.DeactivateCreditCustomer(r.Context(), id)
	default:
		writeMethodNotAllowed(w)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleCreditTransactions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("customerID"))
	switch r.Method {
	case http.MethodGet:
		txns, err := a.service.ListCreditTransactions(r.Context(), id, parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
	case http.MethodPost:
		var req domain.CreditTransactionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		txn, err := a.service.AddCreditTransaction(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"transaction": txn})
	default:
		writeMethodNotAllowed(w)
	}
}
