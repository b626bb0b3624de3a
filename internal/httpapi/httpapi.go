package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/metrics"
	"fuelos/backend/internal/reconcile"
	"fuelos/backend/internal/service"
	"fuelos/backend/internal/store"
)

const (
	staffRoles   = "staff"
	adminRoles   = "admin"
	auditorRoles = "auditor"
)

var roleGroups = map[string][]string{
	staffRoles:   {domain.RoleOperator, domain.RoleManager, domain.RoleOwner, domain.RoleAdmin},
	adminRoles:   {domain.RoleOwner, domain.RoleAdmin},
	auditorRoles: {domain.RoleManager, domain.RoleOwner, domain.RoleAdmin},
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	logger        *zap.Logger
	metrics       *metrics.Recorder
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger, rec *metrics.Recorder) (*API, error) {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		return nil, fmt.Errorf("generate csrf secret: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		logger:        logger,
		metrics:       rec,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
	}, nil
}

// csrfTokenForHour is an HMAC of the hour bucket, hex encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	for _, bucket := range []int64{current, current - 3600} {
		if hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(bucket))) {
			return true
		}
	}
	return false
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[key][:0]
	for _, ts := range l.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)
	if a.metrics != nil {
		mux.Handle("/metrics", a.metrics.Handler())
	}

	mux.HandleFunc("/api/v1/pumps", a.requireAuth(a.handlePumps, staffRoles))
	mux.HandleFunc("/api/v1/pumps/{pumpID}", a.requireAuth(a.handlePumpUpdate, adminRoles))
	mux.HandleFunc("/api/v1/pumps/{pumpID}/nozzles", a.requireAuth(a.handleNozzles, staffRoles))
	mux.HandleFunc("/api/v1/pumps/{pumpID}/nozzles/{nozzleID}", a.requireAuth(a.handleNozzleDeactivate, adminRoles))
	mux.HandleFunc("/api/v1/pumps/{pumpID}/nozzles/{nozzleID}/open-reading", a.requireAuth(a.handleOpenReading, staffRoles))

	mux.HandleFunc("/api/v1/prices", a.requireAuth(a.handlePrices, staffRoles))
	mux.HandleFunc("/api/v1/prices/history", a.requireAuth(a.handlePriceHistory, staffRoles))
	mux.HandleFunc("/api/v1/machine-tests", a.requireAuth(a.handleMachineTests, staffRoles))

	mux.HandleFunc("/api/v1/shifts", a.requireAuth(a.handleShifts, staffRoles))
	mux.HandleFunc("/api/v1/shifts/current", a.requireAuth(a.handleCurrentShift, staffRoles))
	mux.HandleFunc("/api/v1/shifts/status", a.requireAuth(a.handleShiftStatus, staffRoles))
	mux.HandleFunc("/api/v1/shifts/preview", a.requireAuth(a.handleShiftPreview, staffRoles))
	mux.HandleFunc("/api/v1/shifts/{shiftID}", a.requireAuth(a.handleShiftDetail, staffRoles))

	mux.HandleFunc("/api/v1/audit/shifts/{shiftID}", a.requireAuth(a.handleShiftAudit, auditorRoles))
	mux.HandleFunc("/api/v1/audit/shifts/{shiftID}/history", a.requireAuth(a.handleShiftAuditHistory, auditorRoles))
	mux.HandleFunc("/api/v1/cash/denomination-check", a.requireAuth(a.handleDenominationCheck, staffRoles))

	mux.HandleFunc("/api/v1/reports/daily-sales", a.requireAuth(a.handleDailySales, auditorRoles))
	mux.HandleFunc("/api/v1/reports/shifts.xlsx", a.requireAuth(a.handleShiftExport, auditorRoles))
	mux.HandleFunc("/api/v1/reports/sales-summary", a.requireAuth(a.handleSalesSummary, auditorRoles))

	mux.HandleFunc("/api/v1/credits", a.requireAuth(a.handleCreditCustomers, staffRoles))
	mux.HandleFunc("/api/v1/credits/summary", a.requireAuth(a.handleCreditSummary, auditorRoles))
	mux.HandleFunc("/api/v1/credits/{customerID}", a.requireAuth(a.handleCreditCustomer, staffRoles))
	mux.HandleFunc("/api/v1/credits/{customerID}/transactions", a.requireAuth(a.handleCreditTransactions, staffRoles))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, auditorRoles))
	mux.HandleFunc("/api/v1/users/operators", a.requireAuth(a.handleOperators, adminRoles))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, group string) http.HandlerFunc {
	allowed := roleGroups[group]
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if !isRoleAllowed(actor.Role, allowed) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInactiveAccount) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken hands out the token mutating requests must echo in
// X-CSRF-Token.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": a.generateCSRFToken()})
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handlePumps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pumps, err := a.service.ListPumps(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pumps": pumps})
	case http.MethodPost:
		var req domain.PumpCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		pump, err := a.service.CreatePump(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"pump": pump})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleNozzles(w http.ResponseWriter, r *http.Request) {
	pumpID := r.PathValue("pumpID")
	switch r.Method {
	case http.MethodGet:
		includeInactive := r.URL.Query().Get("include_inactive") == "true"
		nozzles, err := a.service.ListNozzles(r.Context(), pumpID, includeInactive)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"nozzles": nozzles})
	case http.MethodPost:
		var req domain.NozzleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		nozzle, err := a.service.AddNozzle(r.Context(), pumpID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"nozzle": nozzle})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleNozzleDeactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	nozzle, err := a.service.DeactivateNozzle(r.Context(), r.PathValue("pumpID"), r.PathValue("nozzleID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nozzle": nozzle})
}

func (a *API) handleOpenReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	date, shift := a.slotFromQuery(r)
	resp, err := a.service.ResolveOpenReading(r.Context(), r.PathValue("pumpID"), r.PathValue("nozzleID"), date, shift)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePrices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rates, err := a.service.GetRates(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.RatesResponse{Rates: rates})
	case http.MethodPost:
		var req domain.RatesUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rates, err := a.service.SetRates(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.RatesResponse{Rates: rates})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	fuel := domain.FuelType(strings.TrimSpace(r.URL.Query().Get("fuel_type")))
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	history, err := a.service.ListRateHistory(r.Context(), fuel, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (a *API) handleMachineTests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := domain.MachineTestFilter{
			PumpID:   strings.TrimSpace(q.Get("pump_id")),
			NozzleID: strings.TrimSpace(q.Get("nozzle_id")),
			Date:     strings.TrimSpace(q.Get("date")),
			Limit:    parsePositiveLimit(q.Get("limit"), 100, 500),
		}
		if raw := strings.TrimSpace(q.Get("shift")); raw != "" {
			shift, err := reconcile.ParseShift(raw)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			filter.Shift = shift
		}
		tests, err := a.service.ListMachineTests(r.Context(), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"machine_tests": tests})
	case http.MethodPost:
		var req domain.MachineTestRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		test, err := a.service.RecordMachineTest(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"machine_test": test})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleShifts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		reports, err := a.service.ListShiftReports(r.Context(), domain.ShiftReportFilter{
			PumpID: strings.TrimSpace(q.Get("pump_id")),
			Date:   strings.TrimSpace(q.Get("date")),
			Status: strings.TrimSpace(q.Get("status")),
			Limit:  parsePositiveLimit(q.Get("limit"), 100, 500),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"shifts": reports})
	case http.MethodPost:
		var req domain.ShiftEntryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.SubmitShift(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCurrentShift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.service.CurrentShift(r.Context()))
}

func (a *API) handleShiftStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	date, shift := a.slotFromQuery(r)
	resp, err := a.service.ShiftStatus(r.Context(), r.URL.Query().Get("pump_id"), date, shift)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.ShiftEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.PreviewShift(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	resp, err := a.service.GetShiftReport(r.Context(), r.PathValue("shiftID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.ShiftAuditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.pinLimiter.Allow("pin:audit:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	resp, err := a.service.AuditShift(r.Context(), r.PathValue("shiftID"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftAuditHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	entries, err := a.service.ListShiftAudits(r.Context(), r.PathValue("shiftID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleDenominationCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.DenominationCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	check, err := a.service.CheckDenominations(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (a *API) handleDailySales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	days, err := a.service.GetDailySales(r.Context(), q.Get("pump_id"), q.Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"daily_sales": days})
}

func (a *API) handleShiftExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		date = a.service.CurrentShift(r.Context()).Date
	}
	reports, err := a.service.ListShiftReports(r.Context(), domain.ShiftReportFilter{
		PumpID: strings.TrimSpace(q.Get("pump_id")),
		Date:   date,
		Limit:  500,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	body, err := shiftReportsWorkbook(reports)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="shifts-%s.xlsx"`, date))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	logs, err := a.service.ListAuditLogs(r.Context(), q.Get("pump_id"), q.Get("date"), parsePositiveLimit(q.Get("limit"), 100, 500))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) handleOperators(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		operators, err := a.auth.ListOperators(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"operators": operators})
	case http.MethodPost:
		var req domain.OperatorCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		operator, err := a.auth.CreateOperator(r.Context(), req)
		if err != nil {
			if errors.Is(err, ErrUsernameTaken) || errors.Is(err, store.ErrConflict) {
				writeError(w, http.StatusConflict, err)
				return
			}
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"operator": operator})
	default:
		writeMethodNotAllowed(w)
	}
}

// slotFromQuery falls back to the station's current business date and shift
// when the caller omits them.
func (a *API) slotFromQuery(r *http.Request) (string, string) {
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	shift := strings.TrimSpace(q.Get("shift"))
	if date == "" || shift == "" {
		cur := a.service.CurrentShift(r.Context())
		if date == "" {
			date = cur.Date
		}
		if shift == "" {
			shift = string(cur.Shift)
		}
	}
	return date, shift
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	if parsed, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && parsed > 0 {
		limit = parsed
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeServiceError maps engine and store errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *reconcile.ValidationError
	var perr *reconcile.PreconditionError
	switch {
	case errors.As(err, &verr):
		payload := map[string]any{"error": verr.Error(), "code": "validation"}
		if verr.Field != "" {
			payload["field"] = verr.Field
		}
		writeJSON(w, http.StatusUnprocessableEntity, payload)
	case errors.As(err, &perr):
		writeJSON(w, http.StatusConflict, map[string]any{"error": perr.Error(), "code": preconditionCode(perr)})
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func preconditionCode(err *reconcile.PreconditionError) string {
	switch {
	case errors.Is(err, reconcile.ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, reconcile.ErrIncompleteShift):
		return "incomplete_shift"
	case errors.Is(err, service.ErrSubmissionInProgress):
		return "submission_in_progress"
	default:
		return "precondition_failed"
	}
}

// writeError hides the cause of 5xx responses from the client and logs it.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		zap.L().Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
