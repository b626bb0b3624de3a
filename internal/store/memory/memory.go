package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/store"
	"fuelos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	pumps           map[string]domain.Pump
	nozzles         map[string]domain.Nozzle
	rates           map[domain.FuelType]domain.FuelRate
	rateHistory     []domain.FuelRate
	readings        []domain.NozzleReading
	machineTests    []domain.MachineTest
	reportsByID     map[string]domain.ShiftReport
	reportBySlot    map[string]string
	shiftAudits     map[string][]domain.ShiftAuditEntry
	dailySales      map[string]domain.DailySales
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
	creditCustomers map[string]domain.CreditCustomer
	creditTxns      []domain.CreditTransaction
}

// Seed rates apply to every business date the demo station can book.
var seedRatesEffective = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// New returns an empty store. Most callers want NewSeeded.
func New() *Store {
	return &Store{
		pumps:           make(map[string]domain.Pump),
		nozzles:         make(map[string]domain.Nozzle),
		rates:           make(map[domain.FuelType]domain.FuelRate),
		rateHistory:     make([]domain.FuelRate, 0, 16),
		readings:        make([]domain.NozzleReading, 0, 64),
		machineTests:    make([]domain.MachineTest, 0, 16),
		reportsByID:     make(map[string]domain.ShiftReport),
		reportBySlot:    make(map[string]string),
		shiftAudits:     make(map[string][]domain.ShiftAuditEntry),
		dailySales:      make(map[string]domain.DailySales),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
		creditCustomers: make(map[string]domain.CreditCustomer),
		creditTxns:      make([]domain.CreditTransaction, 0, 32),
	}
}

// NewSeeded builds the dev/demo station: two pumps, four nozzles, current
// rates and one account per role. Passwords come from SEED_*_PASSWORD and
// fall back to dev defaults with a warning.
func NewSeeded(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := New()
	now := time.Now().UTC()

	for _, p := range []domain.Pump{
		{ID: "P1", Name: "Pump 1", Active: true, CreatedAt: now},
		{ID: "P2", Name: "Pump 2", Active: true, CreatedAt: now},
	} {
		s.pumps[p.ID] = p
	}
	for _, n := range []domain.Nozzle{
		{PumpID: "P1", NozzleID: "N1", FuelType: domain.FuelPetrol, CurrentReading: decimal.RequireFromString("12450.250"), Active: true},
		{PumpID: "P1", NozzleID: "N2", FuelType: domain.FuelDiesel, CurrentReading: decimal.RequireFromString("8930.100"), Active: true},
		{PumpID: "P2", NozzleID: "N1", FuelType: domain.FuelPremiumPetrol, CurrentReading: decimal.RequireFromString("4321.000"), Active: true},
		{PumpID: "P2", NozzleID: "N2", FuelType: domain.FuelDiesel, CurrentReading: decimal.RequireFromString("15002.750"), Active: true},
	} {
		s.nozzles[nozzleKey(n.PumpID, n.NozzleID)] = n
	}
	for _, r := range []domain.FuelRate{
		{FuelType: domain.FuelPetrol, Rate: decimal.RequireFromString("102.50"), EffectiveAt: seedRatesEffective, ChangedBy: "seed"},
		{FuelType: domain.FuelDiesel, Rate: decimal.RequireFromString("89.75"), EffectiveAt: seedRatesEffective, ChangedBy: "seed"},
		{FuelType: domain.FuelPremiumPetrol, Rate: decimal.RequireFromString("110.20"), EffectiveAt: seedRatesEffective, ChangedBy: "seed"},
		{FuelType: domain.FuelCNG, Rate: decimal.RequireFromString("76.00"), EffectiveAt: seedRatesEffective, ChangedBy: "seed"},
	} {
		s.rates[r.FuelType] = r
		s.rateHistory = append(s.rateHistory, r)
	}
	s.usersByUsername = seedUsers(logger, now)
	return s
}

func seedUsers(logger *zap.Logger, now time.Time) map[string]domain.UserAccount {
	seeds := []struct {
		username string
		env      string
		fallback string
		role     string
	}{
		{"admin", "SEED_ADMIN_PASSWORD", "admin12345", domain.RoleAdmin},
		{"owner", "SEED_OWNER_PASSWORD", "owner12345", domain.RoleOwner},
		{"manager", "SEED_MANAGER_PASSWORD", "manager12345", domain.RoleManager},
		{"operator", "SEED_OPERATOR_PASSWORD", "operator12345", domain.RoleOperator},
	}

	users := make(map[string]domain.UserAccount, len(seeds))
	for _, u := range seeds {
		password := os.Getenv(u.env)
		if password == "" {
			password = u.fallback
			logger.Warn("using default dev credential", zap.String("username", u.username), zap.String("env", u.env))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("hash seed password", zap.String("username", u.username), zap.Error(err))
			continue
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func (s *Store) ListPumps(_ context.Context) ([]domain.Pump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pumps := make([]domain.Pump, 0, len(s.pumps))
	for _, p := range s.pumps {
		pumps = append(pumps, p)
	}
	slices.SortFunc(pumps, func(a, b domain.Pump) int { return strings.Compare(a.ID, b.ID) })
	return pumps, nil
}

func (s *Store) GetPump(_ context.Context, pumpID string) (*domain.Pump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pump, ok := s.pumps[pumpID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &pump, nil
}

func (s *Store) CreatePump(_ context.Context, pump domain.Pump) (*domain.Pump, error) {
	pump.ID = strings.TrimSpace(pump.ID)
	pump.Name = strings.TrimSpace(pump.Name)
	if pump.ID == "" || pump.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pumps[pump.ID]; exists {
		return nil, store.ErrConflict
	}
	if pump.CreatedAt.IsZero() {
		pump.CreatedAt = time.Now().UTC()
	}
	pump.Active = true
	s.pumps[pump.ID] = pump
	created := pump
	return &created, nil
}

func (s *Store) UpdatePump(_ context.Context, pump domain.Pump) (*domain.Pump, error) {
	pump.Name = strings.TrimSpace(pump.Name)
	if pump.ID == "" || pump.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.pumps[pump.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	current.Name = pump.Name
	current.Active = pump.Active
	s.pumps[pump.ID] = current
	updated := current
	return &updated, nil
}

func (s *Store) ListNozzles(_ context.Context, pumpID string, includeInactive bool) ([]domain.Nozzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nozzles := make([]domain.Nozzle, 0, 8)
	for _, n := range s.nozzles {
		if pumpID != "" && n.PumpID != pumpID {
			continue
		}
		if !includeInactive && !n.Active {
			continue
		}
		nozzles = append(nozzles, n)
	}
	slices.SortFunc(nozzles, func(a, b domain.Nozzle) int {
		if a.PumpID == b.PumpID {
			return strings.Compare(a.NozzleID, b.NozzleID)
		}
		return strings.Compare(a.PumpID, b.PumpID)
	})
	return nozzles, nil
}

func (s *Store) GetNozzle(_ context.Context, pumpID string, nozzleID string) (*domain.Nozzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nozzle, ok := s.nozzles[nozzleKey(pumpID, nozzleID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &nozzle, nil
}

func (s *Store) CreateNozzle(_ context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error) {
	nozzle.NozzleID = strings.TrimSpace(nozzle.NozzleID)
	if nozzle.NozzleID == "" || nozzle.FuelType == "" || nozzle.CurrentReading.IsNegative() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pumps[nozzle.PumpID]; !ok {
		return nil, store.ErrNotFound
	}
	key := nozzleKey(nozzle.PumpID, nozzle.NozzleID)
	if _, exists := s.nozzles[key]; exists {
		return nil, store.ErrConflict
	}
	nozzle.Active = true
	s.nozzles[key] = nozzle
	created := nozzle
	return &created, nil
}

func (s *Store) SetNozzleActive(_ context.Context, pumpID string, nozzleID string, active bool) (*domain.Nozzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nozzleKey(pumpID, nozzleID)
	nozzle, ok := s.nozzles[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	nozzle.Active = active
	s.nozzles[key] = nozzle
	return &nozzle, nil
}

func (s *Store) ListRates(_ context.Context) ([]domain.FuelRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rates := make([]domain.FuelRate, 0, len(s.rates))
	for _, r := range s.rates {
		rates = append(rates, r)
	}
	slices.SortFunc(rates, func(a, b domain.FuelRate) int { return strings.Compare(string(a.FuelType), string(b.FuelType)) })
	return rates, nil
}

func (s *Store) SetRates(_ context.Context, rates []domain.FuelRate) error {
	for _, r := range rates {
		if r.FuelType == "" || !r.Rate.IsPositive() {
			return store.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, r := range rates {
		if r.EffectiveAt.IsZero() {
			r.EffectiveAt = now
		}
		s.rates[r.FuelType] = r
		s.rateHistory = append(s.rateHistory, r)
	}
	return nil
}

func (s *Store) ListRateHistory(_ context.Context, fuel domain.FuelType, limit int) ([]domain.FuelRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]domain.FuelRate, 0, len(s.rateHistory))
	for _, r := range s.rateHistory {
		if fuel != "" && r.FuelType != fuel {
			continue
		}
		history = append(history, r)
	}
	slices.SortStableFunc(history, func(a, b domain.FuelRate) int { return b.EffectiveAt.Compare(a.EffectiveAt) })
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// RateAt returns the latest rate that was effective at the given instant.
func (s *Store) RateAt(_ context.Context, fuel domain.FuelType, at time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.FuelRate
	for i := range s.rateHistory {
		r := &s.rateHistory[i]
		if r.FuelType != fuel || r.EffectiveAt.After(at) {
			continue
		}
		if found == nil || !r.EffectiveAt.Before(found.EffectiveAt) {
			found = r
		}
	}
	if found == nil {
		return decimal.Zero, store.ErrNotFound
	}
	return found.Rate, nil
}

func (s *Store) ListNozzleReadings(_ context.Context, filter domain.NozzleReadingFilter) ([]domain.NozzleReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.NozzleReading, 0, 32)
	for _, r := range s.readings {
		if filter.PumpID != "" && r.PumpID != filter.PumpID {
			continue
		}
		if filter.NozzleID != "" && r.NozzleID != filter.NozzleID {
			continue
		}
		if filter.ShiftReportID != "" && r.ShiftReportID != filter.ShiftReportID {
			continue
		}
		if filter.ToDate != "" && r.Date > filter.ToDate {
			continue
		}
		result = append(result, r)
	}
	slices.SortStableFunc(result, compareReadingsDesc)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) CreateMachineTest(_ context.Context, test domain.MachineTest) (*domain.MachineTest, error) {
	if test.PumpID == "" || test.NozzleID == "" || test.Date == "" || test.Shift == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nozzles[nozzleKey(test.PumpID, test.NozzleID)]; !ok {
		return nil, store.ErrNotFound
	}
	if _, submitted := s.reportBySlot[slotKey(test.PumpID, test.Date, test.Shift)]; submitted {
		return nil, store.ErrAlreadySubmitted
	}
	if test.ID == "" {
		test.ID = xid.New("test")
	}
	if test.CreatedAt.IsZero() {
		test.CreatedAt = time.Now().UTC()
	}
	s.machineTests = append(s.machineTests, test)
	created := test
	return &created, nil
}

func (s *Store) ListMachineTests(_ context.Context, filter domain.MachineTestFilter) ([]domain.MachineTest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.MachineTest, 0, 16)
	for _, t := range s.machineTests {
		if filter.PumpID != "" && t.PumpID != filter.PumpID {
			continue
		}
		if filter.NozzleID != "" && t.NozzleID != filter.NozzleID {
			continue
		}
		if filter.Date != "" && t.Date != filter.Date {
			continue
		}
		if filter.Shift != "" && t.Shift != filter.Shift {
			continue
		}
		result = append(result, t)
	}
	slices.SortStableFunc(result, func(a, b domain.MachineTest) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) FindShiftReport(_ context.Context, pumpID string, date string, shift domain.ShiftName) (*domain.ShiftReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.reportBySlot[slotKey(pumpID, date, shift)]
	if !ok {
		return nil, store.ErrNotFound
	}
	report := cloneReport(s.reportsByID[id])
	return &report, nil
}

func (s *Store) GetShiftReport(_ context.Context, id string) (*domain.ShiftReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reportsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneReport(report)
	return &dup, nil
}

func (s *Store) ListShiftReports(_ context.Context, filter domain.ShiftReportFilter) ([]domain.ShiftReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ShiftReport, 0, 32)
	for _, r := range s.reportsByID {
		if filter.PumpID != "" && r.PumpID != filter.PumpID {
			continue
		}
		if filter.Date != "" && r.Date != filter.Date {
			continue
		}
		if (filter.FromDate != "" && r.Date < filter.FromDate) || (filter.ToDate != "" && r.Date > filter.ToDate) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		result = append(result, cloneReport(r))
	}
	slices.SortFunc(result, func(a, b domain.ShiftReport) int {
		if a.Date != b.Date {
			return strings.Compare(b.Date, a.Date)
		}
		if ia, ib := shiftOrder(a.Shift), shiftOrder(b.Shift); ia != ib {
			return ib - ia
		}
		return strings.Compare(a.PumpID, b.PumpID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// CommitShiftSubmission applies the whole write set under one lock, so a
// reader never sees a report without its readings.
func (s *Store) CommitShiftSubmission(_ context.Context, submission domain.ShiftSubmission) (*domain.ShiftReport, error) {
	report := submission.Report
	if report.ID == "" || report.PumpID == "" || report.Date == "" || report.Shift == "" || len(submission.Readings) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey(report.PumpID, report.Date, report.Shift)
	if _, exists := s.reportBySlot[key]; exists {
		return nil, store.ErrAlreadySubmitted
	}
	for _, u := range submission.NozzleUpdates {
		if _, ok := s.nozzles[nozzleKey(u.PumpID, u.NozzleID)]; !ok {
			return nil, store.ErrNotFound
		}
	}
	// The readings were computed from a snapshot; a test booked since then
	// would be left undeducted.
	for _, r := range submission.Readings {
		if !s.slotTestVolume(r.PumpID, r.NozzleID, r.Date, r.Shift).Equal(r.TestVolume) {
			return nil, store.ErrConflict
		}
	}
	charged, err := s.planCharges(submission.CreditCharges)
	if err != nil {
		return nil, err
	}

	s.reportsByID[report.ID] = cloneReport(report)
	s.reportBySlot[key] = report.ID
	s.readings = append(s.readings, submission.Readings...)
	for _, u := range submission.NozzleUpdates {
		nk := nozzleKey(u.PumpID, u.NozzleID)
		nozzle := s.nozzles[nk]
		nozzle.CurrentReading = u.Reading
		s.nozzles[nk] = nozzle
	}

	delta := submission.DailySales
	dk := dailyKey(delta.PumpID, delta.Date)
	day, ok := s.dailySales[dk]
	if !ok {
		day = domain.DailySales{PumpID: delta.PumpID, Date: delta.Date, TotalSales: decimal.Zero, Volume: decimal.Zero}
	}
	day.TotalSales = day.TotalSales.Add(delta.TotalSales)
	day.Volume = day.Volume.Add(delta.Volume)
	day.Shifts += delta.Shifts
	s.dailySales[dk] = day
	s.applyCharges(charged)

	created := cloneReport(report)
	return &created, nil
}

func (s *Store) slotTestVolume(pumpID, nozzleID, date string, shift domain.ShiftName) decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.machineTests {
		if t.PumpID == pumpID && t.NozzleID == nozzleID && t.Date == date && t.Shift == shift && t.ExtractedQty.IsPositive() {
			total = total.Add(t.ExtractedQty)
		}
	}
	return total.Round(3)
}

func (s *Store) CommitShiftAudit(_ context.Context, report domain.ShiftReport, entry domain.ShiftAuditEntry) (*domain.ShiftReport, error) {
	if strings.TrimSpace(entry.Reason) == "" || len(entry.Changes) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.reportsByID[report.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	// Only the payment split, variance and status are editable.
	current.Cash = report.Cash
	current.Card = report.Card
	current.UPI = report.UPI
	current.Collected = report.Collected
	current.Variance = report.Variance
	current.Status = domain.ShiftStatusAudited
	current.UpdatedAt = report.UpdatedAt
	s.reportsByID[report.ID] = current

	if entry.ID == "" {
		entry.ID = xid.New("saudit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ShiftReportID = report.ID
	s.shiftAudits[report.ID] = append(s.shiftAudits[report.ID], entry)

	updated := cloneReport(current)
	return &updated, nil
}

func (s *Store) ListShiftAudits(_ context.Context, shiftReportID string) ([]domain.ShiftAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.reportsByID[shiftReportID]; !ok {
		return nil, store.ErrNotFound
	}
	entries := s.shiftAudits[shiftReportID]
	result := make([]domain.ShiftAuditEntry, len(entries))
	for i, e := range entries {
		e.Changes = slices.Clone(e.Changes)
		result[i] = e
	}
	return result, nil
}

func (s *Store) GetDailySales(_ context.Context, pumpID string, date string) ([]domain.DailySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DailySales, 0, len(s.dailySales))
	for _, d := range s.dailySales {
		if pumpID != "" && d.PumpID != pumpID {
			continue
		}
		if date != "" && d.Date != date {
			continue
		}
		result = append(result, d)
	}
	slices.SortFunc(result, func(a, b domain.DailySales) int {
		if a.Date != b.Date {
			return strings.Compare(b.Date, a.Date)
		}
		return strings.Compare(a.PumpID, b.PumpID)
	})
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, pumpID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if pumpID != "" && entry.PumpID != pumpID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleOperator
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func nozzleKey(pumpID string, nozzleID string) string {
	return pumpID + "::" + nozzleID
}

func slotKey(pumpID string, date string, shift domain.ShiftName) string {
	return pumpID + "::" + date + "::" + string(shift)
}

func dailyKey(pumpID string, date string) string {
	return pumpID + "::" + date
}

func shiftOrder(shift domain.ShiftName) int {
	return slices.Index(domain.ShiftNames, shift)
}

func compareReadingsDesc(a, b domain.NozzleReading) int {
	if a.Date != b.Date {
		return strings.Compare(b.Date, a.Date)
	}
	if ia, ib := shiftOrder(a.Shift), shiftOrder(b.Shift); ia != ib {
		return ib - ia
	}
	return strings.Compare(a.NozzleID, b.NozzleID)
}

func cloneReport(src domain.ShiftReport) domain.ShiftReport {
	dup := src
	dup.ReadingIDs = slices.Clone(src.ReadingIDs)
	return dup
}
