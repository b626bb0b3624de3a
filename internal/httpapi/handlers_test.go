package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/metrics"
	"fuelos/backend/internal/service"
	"fuelos/backend/internal/store/memory"
)

var testNow = time.Date(2025, time.February, 20, 10, 30, 0, 0, time.UTC)

// newTestAPI wires the real service, auth manager and seeded memory store so
// handler tests cover the whole request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	for env, password := range map[string]string{
		"SEED_ADMIN_PASSWORD":    "admin12345",
		"SEED_OWNER_PASSWORD":    "owner12345",
		"SEED_MANAGER_PASSWORD":  "manager12345",
		"SEED_OPERATOR_PASSWORD": "operator12345",
	} {
		t.Setenv(env, password)
	}

	repo := memory.NewSeeded(zap.NewNop())
	rec := metrics.New()
	svc := service.New(repo, service.Options{
		Metrics: rec,
		Clock:   func() time.Time { return testNow },
	})
	auth, err := NewAuthManager(context.Background(), testSecret, time.Hour, testPIN, repo)
	require.NoError(t, err)
	api, err := New(svc, auth, "*", zap.NewNop(), rec)
	require.NoError(t, err)
	return api
}

type testClient struct {
	t       *testing.T
	handler http.Handler
	token   string
	csrf    string
}

func newClient(t *testing.T, api *API, username string) *testClient {
	t.Helper()
	c := &testClient{t: t, handler: api.Handler()}
	c.csrf = fetchCSRFToken(t, c.handler)
	if username != "" {
		c.token = login(t, c.handler, username, username+"12345")
	}
	return c
}

func (c *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	res := httptest.NewRecorder()
	c.handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(res.Body).Decode(dest), "body: %s", res.Body.String())
}

func fetchCSRFToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	require.NotEmpty(t, strings.TrimSpace(payload["csrf_token"]))
	return payload["csrf_token"]
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, "login %s: %s", username, res.Body.String())

	var payload domain.LoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	require.NotEmpty(t, payload.AccessToken)
	return payload.AccessToken
}

func morningShift() map[string]any {
	return map[string]any{
		"pump_id":  "P1",
		"date":     "2025-02-20",
		"shift":    "Morning",
		"operator": "ravi",
		"closings": []map[string]string{
			{"nozzle_id": "N1", "close_reading": "12500.250"},
			{"nozzle_id": "N2", "close_reading": "8970.100"},
		},
		"payments": map[string]string{"cash": "5000", "card": "2000", "upi": "1500", "credit": "200"},
	}
}

func TestHandleHealth(t *testing.T) {
	c := newClient(t, newTestAPI(t), "")
	res := c.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]any
	decodeBody(t, res, &body)
	assert.Equal(t, true, body["ok"])
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	c := newClient(t, newTestAPI(t), "")
	res := c.do(http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestPumpsRequireAuth(t *testing.T) {
	c := newClient(t, newTestAPI(t), "")
	res := c.do(http.MethodGet, "/api/v1/pumps", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestListPumpsAndNozzles(t *testing.T) {
	c := newClient(t, newTestAPI(t), "operator")

	res := c.do(http.MethodGet, "/api/v1/pumps", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var pumps struct {
		Pumps []domain.Pump `json:"pumps"`
	}
	decodeBody(t, res, &pumps)
	assert.Len(t, pumps.Pumps, 2)

	res = c.do(http.MethodGet, "/api/v1/pumps/P1/nozzles", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var nozzles struct {
		Nozzles []domain.Nozzle `json:"nozzles"`
	}
	decodeBody(t, res, &nozzles)
	assert.Len(t, nozzles.Nozzles, 2)

	res = c.do(http.MethodGet, "/api/v1/pumps/P9/nozzles", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestOperatorCannotAdministerPumps(t *testing.T) {
	c := newClient(t, newTestAPI(t), "operator")
	res := c.do(http.MethodPost, "/api/v1/pumps", domain.PumpCreateRequest{ID: "P3", Name: "Pump 3"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = c.do(http.MethodDelete, "/api/v1/pumps/P1/nozzles/N1", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestAdminManagesNozzles(t *testing.T) {
	c := newClient(t, newTestAPI(t), "admin")

	res := c.do(http.MethodPost, "/api/v1/pumps/P2/nozzles", map[string]any{
		"nozzle_id":       "N3",
		"fuel_type":       "cng",
		"initial_reading": "100.000",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = c.do(http.MethodDelete, "/api/v1/pumps/P2/nozzles/N3", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var body struct {
		Nozzle domain.Nozzle `json:"nozzle"`
	}
	decodeBody(t, res, &body)
	assert.False(t, body.Nozzle.Active)
}

func TestOpenReadingFallsBackToSeed(t *testing.T) {
	c := newClient(t, newTestAPI(t), "operator")
	res := c.do(http.MethodGet, "/api/v1/pumps/P1/nozzles/N1/open-reading?date=2025-02-20&shift=Morning", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var body domain.OpenReadingResponse
	decodeBody(t, res, &body)
	assert.Equal(t, "12450.25", body.Reading.String())
	assert.Equal(t, "seed", body.Source)
	assert.True(t, body.Gap)
}

func TestPreviewShiftComputesTotals(t *testing.T) {
	c := newClient(t, newTestAPI(t), "operator")
	res := c.do(http.MethodPost, "/api/v1/shifts/preview", morningShift())
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var body domain.ShiftPreviewResponse
	decodeBody(t, res, &body)
	require.NotNil(t, body.Totals)
	assert.True(t, body.CanSubmit)
	assert.Equal(t, "8715", body.Totals.TotalSales.String())
	assert.Equal(t, "-215", body.Totals.Variance.String())
}

func TestSubmitShiftThenDuplicateConflicts(t *testing.T) {
	c := newClient(t, newTestAPI(t), "operator")

	res := c.do(http.MethodPost, "/api/v1/shifts", morningShift())
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var submitted domain.ShiftSubmitResponse
	decodeBody(t, res, &submitted)
	assert.Equal(t, domain.ShiftStatusSubmitted, submitted.Report.Status)
	assert.Equal(t, "8715", submitted.Report.TotalSales.String())
	assert.Len(t, submitted.Readings, 2)

	res = c.do(http.MethodPost, "/api/v1/shifts", morningShift())
	require.Equal(t, http.StatusConflict, res.Code)
	var conflict map[string]any
	decodeBody(t, res, &conflict)
	assert.Equal(t, "already_submitted", conflict["code"])

	res = c.do(http.MethodGet, "/api/v1/shifts/status?pump_id=P1&date=2025-02-20&shift=Morning", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var status domain.ShiftStatusResponse
	decodeBody(t, res, &status)
	assert.True(t, status.Submitted)
	assert.Equal(t, submitted.Report.ID, status.ReportID)

	res = c.do(http.MethodGet, "/api/v1/shifts/"+submitted.Report.ID, nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestSubmitShiftMissingNozzleIsUnprocessable(t *testing.T) {
	c := newClient(t, newTestAPI(t), "operator")
	entry := morningShift()
	entry["closings"] = []map[string]string{{"nozzle_id": "N1", "close_reading": "12500.250"}}

	res := c.do(http.MethodPost, "/api/v1/shifts", entry)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())
	var body map[string]any
	decodeBody(t, res, &body)
	assert.Equal(t, "close_reading", body["field"])
}

func TestSubmitShiftRejectsUnknownFields(t *testing.T) {
	c := newClient(t, newTestAPI(t), "operator")
	entry := morningShift()
	entry["discount"] = "10"

	res := c.do(http.MethodPost, "/api/v1/shifts", entry)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestAuditShiftRequiresManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	operator := newClient(t, api, "operator")
	res := operator.do(http.MethodPost, "/api/v1/shifts", morningShift())
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var submitted domain.ShiftSubmitResponse
	decodeBody(t, res, &submitted)
	path := "/api/v1/audit/shifts/" + submitted.Report.ID

	audit := map[string]any{"cash": "5215", "reason": "late cash drop", "manager_pin": testPIN}
	res = operator.do(http.MethodPatch, path, audit)
	assert.Equal(t, http.StatusForbidden, res.Code)

	manager := newClient(t, api, "manager")
	audit["manager_pin"] = "000001"
	res = manager.do(http.MethodPatch, path, audit)
	assert.Equal(t, http.StatusForbidden, res.Code)

	audit["manager_pin"] = testPIN
	res = manager.do(http.MethodPatch, path, audit)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var audited domain.ShiftAuditResponse
	decodeBody(t, res, &audited)
	assert.Equal(t, domain.ShiftStatusAudited, audited.Shift.Status)
	assert.True(t, audited.Shift.Variance.IsZero())

	res = manager.do(http.MethodGet, path+"/history", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var history struct {
		Entries []domain.ShiftAuditEntry `json:"entries"`
	}
	decodeBody(t, res, &history)
	assert.Len(t, history.Entries, 1)
}

func TestAuditShiftWithoutReasonIsUnprocessable(t *testing.T) {
	api := newTestAPI(t)
	operator := newClient(t, api, "operator")
	res := operator.do(http.MethodPost, "/api/v1/shifts", morningShift())
	require.Equal(t, http.StatusCreated, res.Code)
	var submitted domain.ShiftSubmitResponse
	decodeBody(t, res, &submitted)

	manager := newClient(t, api, "manager")
	res = manager.do(http.MethodPatch, "/api/v1/audit/shifts/"+submitted.Report.ID, map[string]any{
		"cash":        "5215",
		"manager_pin": testPIN,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestPricesUpdateRequiresOwner(t *testing.T) {
	api := newTestAPI(t)
	update := map[string]any{"rates": map[string]string{"petrol": "104.00"}}

	res := newClient(t, api, "manager").do(http.MethodPost, "/api/v1/prices", update)
	assert.Equal(t, http.StatusForbidden, res.Code)

	owner := newClient(t, api, "owner")
	res = owner.do(http.MethodPost, "/api/v1/prices", update)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = owner.do(http.MethodGet, "/api/v1/prices/history?fuel_type=petrol", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var history struct {
		History []domain.FuelRate `json:"history"`
	}
	decodeBody(t, res, &history)
	assert.Len(t, history.History, 2)
}

func TestDenominationCheck(t *testing.T) {
	c := newClient(t, newTestAPI(t), "operator")
	res := c.do(http.MethodPost, "/api/v1/cash/denomination-check", map[string]any{
		"declared_cash": "5000",
		"counts":        map[string]int{"500": 8, "100": 10},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var check domain.DenominationCheck
	decodeBody(t, res, &check)
	assert.True(t, check.Matches)
	assert.Equal(t, "5000", check.CountedTotal.String())
}

func TestShiftExportReturnsWorkbook(t *testing.T) {
	api := newTestAPI(t)
	res := newClient(t, api, "operator").do(http.MethodPost, "/api/v1/shifts", morningShift())
	require.Equal(t, http.StatusCreated, res.Code)

	res = newClient(t, api, "manager").do(http.MethodGet, "/api/v1/reports/shifts.xlsx?date=2025-02-20", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", res.Header().Get("Content-Type"))
	assert.Contains(t, res.Header().Get("Content-Disposition"), "shifts-2025-02-20.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(res.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(shiftSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Report ID", rows[0][0])
	assert.Equal(t, "P1", rows[1][1])
	assert.Equal(t, "TOTAL", rows[2][0])
}

func TestDailySalesAndAuditLogs(t *testing.T) {
	api := newTestAPI(t)
	res := newClient(t, api, "operator").do(http.MethodPost, "/api/v1/shifts", morningShift())
	require.Equal(t, http.StatusCreated, res.Code)

	manager := newClient(t, api, "manager")
	res = manager.do(http.MethodGet, "/api/v1/reports/daily-sales?pump_id=P1&date=2025-02-20", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var sales struct {
		DailySales []domain.DailySales `json:"daily_sales"`
	}
	decodeBody(t, res, &sales)
	require.Len(t, sales.DailySales, 1)

	res = manager.do(http.MethodGet, "/api/v1/audit-logs?date=2025-02-20", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var logs struct {
		AuditLogs []domain.AuditLog `json:"audit_logs"`
	}
	decodeBody(t, res, &logs)
	assert.NotEmpty(t, logs.AuditLogs)
}

func TestOperatorsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	res := newClient(t, api, "operator").do(http.MethodGet, "/api/v1/users/operators", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	admin := newClient(t, api, "admin")
	req := domain.OperatorCreateRequest{Username: "meena", Password: "pass1234"}
	res = admin.do(http.MethodPost, "/api/v1/users/operators", req)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	res = admin.do(http.MethodPost, "/api/v1/users/operators", req)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = admin.do(http.MethodGet, "/api/v1/users/operators", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Operators []domain.OperatorUser `json:"operators"`
	}
	decodeBody(t, res, &body)
	assert.Len(t, body.Operators, 2)
}

func TestMetricsCountSubmissions(t *testing.T) {
	api := newTestAPI(t)
	c := newClient(t, api, "operator")
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/shifts", morningShift()).Code)
	require.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/api/v1/shifts", morningShift()).Code)

	res := c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `fuelos_shift_submissions_total{result="accepted"} 1`)
	assert.Contains(t, body, `fuelos_shift_submissions_total{result="duplicate"} 1`)
}
