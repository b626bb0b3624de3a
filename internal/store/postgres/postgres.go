package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/store"
	"fuelos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ListPumps(ctx context.Context) ([]domain.Pump, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, active, created_at
		FROM pumps
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pumps := make([]domain.Pump, 0, 8)
	for rows.Next() {
		var p domain.Pump
		if err := rows.Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		pumps = append(pumps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pumps, nil
}

func (s *Store) GetPump(ctx context.Context, pumpID string) (*domain.Pump, error) {
	var p domain.Pump
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, active, created_at
		FROM pumps
		WHERE id = $1
	`, pumpID).Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) CreatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error) {
	pump.ID = strings.TrimSpace(pump.ID)
	pump.Name = strings.TrimSpace(pump.Name)
	if pump.ID == "" || pump.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if pump.CreatedAt.IsZero() {
		pump.CreatedAt = time.Now().UTC()
	}
	pump.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pumps (id, name, active, created_at)
		VALUES ($1,$2,$3,$4)
	`, pump.ID, pump.Name, pump.Active, pump.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := pump
	return &created, nil
}

func (s *Store) UpdatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error) {
	pump.Name = strings.TrimSpace(pump.Name)
	if pump.ID == "" || pump.Name == "" {
		return nil, store.ErrInvalidInput
	}
	var p domain.Pump
	err := s.db.QueryRowContext(ctx, `
		UPDATE pumps SET name = $2, active = $3
		WHERE id = $1
		RETURNING id, name, active, created_at
	`, pump.ID, pump.Name, pump.Active).Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

const nozzleColumns = `pump_id, nozzle_id, fuel_type, current_reading, operator, active`

func scanNozzle(row interface{ Scan(...any) error }) (domain.Nozzle, error) {
	var n domain.Nozzle
	var fuel string
	err := row.Scan(&n.PumpID, &n.NozzleID, &fuel, &n.CurrentReading, &n.Operator, &n.Active)
	n.FuelType = domain.FuelType(fuel)
	return n, err
}

func (s *Store) ListNozzles(ctx context.Context, pumpID string, includeInactive bool) ([]domain.Nozzle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nozzleColumns+`
		FROM nozzles
		WHERE ($1::text = '' OR pump_id = $1)
			AND ($2 OR active = true)
		ORDER BY pump_id, nozzle_id
	`, pumpID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nozzles := make([]domain.Nozzle, 0, 8)
	for rows.Next() {
		n, err := scanNozzle(rows)
		if err != nil {
			return nil, err
		}
		nozzles = append(nozzles, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nozzles, nil
}

func (s *Store) GetNozzle(ctx context.Context, pumpID string, nozzleID string) (*domain.Nozzle, error) {
	n, err := scanNozzle(s.db.QueryRowContext(ctx, `
		SELECT `+nozzleColumns+`
		FROM nozzles
		WHERE pump_id = $1 AND nozzle_id = $2
	`, pumpID, nozzleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *Store) CreateNozzle(ctx context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error) {
	nozzle.NozzleID = strings.TrimSpace(nozzle.NozzleID)
	if nozzle.NozzleID == "" || nozzle.FuelType == "" || nozzle.CurrentReading.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	if _, err := s.GetPump(ctx, nozzle.PumpID); err != nil {
		return nil, err
	}
	nozzle.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nozzles (pump_id, nozzle_id, fuel_type, current_reading, operator, active, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, nozzle.PumpID, nozzle.NozzleID, string(nozzle.FuelType), nozzle.CurrentReading, nozzle.Operator, nozzle.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := nozzle
	return &created, nil
}

func (s *Store) SetNozzleActive(ctx context.Context, pumpID string, nozzleID string, active bool) (*domain.Nozzle, error) {
	n, err := scanNozzle(s.db.QueryRowContext(ctx, `
		UPDATE nozzles
		SET active = $3, updated_at = now()
		WHERE pump_id = $1 AND nozzle_id = $2
		RETURNING `+nozzleColumns, pumpID, nozzleID, active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *Store) ListRates(ctx context.Context) ([]domain.FuelRate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fuel_type, rate, effective_at, changed_by
		FROM fuel_rates
		ORDER BY fuel_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRates(rows)
}

// SetRates replaces the current rate of each fuel and appends to history in
// one transaction.
func (s *Store) SetRates(ctx context.Context, rates []domain.FuelRate) error {
	for _, r := range rates {
		if r.FuelType == "" || !r.Rate.IsPositive() {
			return store.ErrInvalidInput
		}
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	now := time.Now().UTC()
	for _, r := range rates {
		if r.EffectiveAt.IsZero() {
			r.EffectiveAt = now
		}
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO fuel_rates (fuel_type, rate, effective_at, changed_by)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (fuel_type)
			DO UPDATE SET rate = EXCLUDED.rate, effective_at = EXCLUDED.effective_at, changed_by = EXCLUDED.changed_by
		`, string(r.FuelType), r.Rate, r.EffectiveAt, r.ChangedBy); err != nil {
			return err
		}
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO fuel_rate_history (fuel_type, rate, effective_at, changed_by)
			VALUES ($1,$2,$3,$4)
		`, string(r.FuelType), r.Rate, r.EffectiveAt, r.ChangedBy); err != nil {
			return err
		}
	}
	return pgTx.Commit()
}

func (s *Store) ListRateHistory(ctx context.Context, fuel domain.FuelType, limit int) ([]domain.FuelRate, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT fuel_type, rate, effective_at, changed_by
		FROM fuel_rate_history
		WHERE ($1::text = '' OR fuel_type = $1)
		ORDER BY effective_at DESC, id DESC
		LIMIT $2
	`, string(fuel), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRates(rows)
}

func (s *Store) RateAt(ctx context.Context, fuel domain.FuelType, at time.Time) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT rate
		FROM fuel_rate_history
		WHERE fuel_type = $1 AND effective_at <= $2
		ORDER BY effective_at DESC, id DESC
		LIMIT 1
	`, string(fuel), at).Scan(&rate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, store.ErrNotFound
		}
		return decimal.Zero, err
	}
	return rate, nil
}

func scanRates(rows *sql.Rows) ([]domain.FuelRate, error) {
	rates := make([]domain.FuelRate, 0, 8)
	for rows.Next() {
		var r domain.FuelRate
		var fuel string
		if err := rows.Scan(&fuel, &r.Rate, &r.EffectiveAt, &r.ChangedBy); err != nil {
			return nil, err
		}
		r.FuelType = domain.FuelType(fuel)
		r.EffectiveAt = r.EffectiveAt.UTC()
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rates, nil
}

func (s *Store) ListNozzleReadings(ctx context.Context, filter domain.NozzleReadingFilter) ([]domain.NozzleReading, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 10000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pump_id, nozzle_id, shift_date::text, shift_name, fuel_type,
			open_reading, close_reading, test_volume, gross_volume, net_volume, revenue, rate,
			status, shift_report_id, created_at
		FROM nozzle_readings
		WHERE ($1::text = '' OR pump_id = $1)
			AND ($2::text = '' OR nozzle_id = $2)
			AND ($3::text = '' OR shift_report_id = $3)
			AND ($4::text = '' OR shift_date <= NULLIF($4::text, '')::date)
		ORDER BY shift_date DESC,
			CASE shift_name WHEN 'Night' THEN 2 WHEN 'Afternoon' THEN 1 ELSE 0 END DESC,
			nozzle_id
		LIMIT $5
	`, filter.PumpID, filter.NozzleID, filter.ShiftReportID, filter.ToDate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]domain.NozzleReading, 0, 64)
	for rows.Next() {
		var r domain.NozzleReading
		var shift, fuel string
		if err := rows.Scan(
			&r.ID, &r.PumpID, &r.NozzleID, &r.Date, &shift, &fuel,
			&r.OpenReading, &r.CloseReading, &r.TestVolume, &r.GrossVolume, &r.NetVolume, &r.Revenue, &r.Rate,
			&r.Status, &r.ShiftReportID, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Shift = domain.ShiftName(shift)
		r.FuelType = domain.FuelType(fuel)
		r.CreatedAt = r.CreatedAt.UTC()
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}

func (s *Store) CreateMachineTest(ctx context.Context, test domain.MachineTest) (*domain.MachineTest, error) {
	if test.PumpID == "" || test.NozzleID == "" || test.Date == "" || test.Shift == "" {
		return nil, store.ErrInvalidInput
	}
	if _, err := s.GetNozzle(ctx, test.PumpID, test.NozzleID); err != nil {
		return nil, err
	}
	if test.ID == "" {
		test.ID = xid.New("test")
	}
	if test.CreatedAt.IsZero() {
		test.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var submitted bool
	if err := pgTx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM shift_reports
			WHERE pump_id = $1 AND shift_date = $2::date AND shift_name = $3
		)
	`, test.PumpID, test.Date, string(test.Shift)).Scan(&submitted); err != nil {
		return nil, mapWriteError(err)
	}
	if submitted {
		return nil, store.ErrAlreadySubmitted
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO machine_tests (
			id, pump_id, nozzle_id, shift_date, shift_name, extracted_qty, meter_before, meter_after,
			jar_reading, variance_ml, result, returned_to_tank, tested_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, test.ID, test.PumpID, test.NozzleID, test.Date, string(test.Shift), test.ExtractedQty, test.MeterBefore, test.MeterAfter,
		test.JarReading, test.VarianceML, string(test.Result), test.ReturnedToTank, test.TestedBy, test.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapWriteError(err)
	}
	created := test
	return &created, nil
}

func (s *Store) ListMachineTests(ctx context.Context, filter domain.MachineTestFilter) ([]domain.MachineTest, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pump_id, nozzle_id, shift_date::text, shift_name, extracted_qty, meter_before, meter_after,
			jar_reading, variance_ml, result, returned_to_tank, tested_by, created_at
		FROM machine_tests
		WHERE ($1::text = '' OR pump_id = $1)
			AND ($2::text = '' OR nozzle_id = $2)
			AND ($3::text = '' OR shift_date = NULLIF($3::text, '')::date)
			AND ($4::text = '' OR shift_name = $4)
		ORDER BY created_at DESC
		LIMIT $5
	`, filter.PumpID, filter.NozzleID, filter.Date, string(filter.Shift), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tests := make([]domain.MachineTest, 0, 16)
	for rows.Next() {
		var t domain.MachineTest
		var shift, result string
		if err := rows.Scan(
			&t.ID, &t.PumpID, &t.NozzleID, &t.Date, &shift, &t.ExtractedQty, &t.MeterBefore, &t.MeterAfter,
			&t.JarReading, &t.VarianceML, &result, &t.ReturnedToTank, &t.TestedBy, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.Shift = domain.ShiftName(shift)
		t.Result = domain.TestResult(result)
		t.CreatedAt = t.CreatedAt.UTC()
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tests, nil
}

const reportColumns = `id, pump_id, shift_date::text, shift_name, total_sales, cash, card, upi, credit_out,
	collected, variance, status, operator, submitted_by, submitted_at, updated_at`

func scanReport(row interface{ Scan(...any) error }) (domain.ShiftReport, error) {
	var r domain.ShiftReport
	var shift string
	err := row.Scan(&r.ID, &r.PumpID, &r.Date, &shift, &r.TotalSales, &r.Cash, &r.Card, &r.UPI, &r.CreditOut,
		&r.Collected, &r.Variance, &r.Status, &r.Operator, &r.SubmittedBy, &r.SubmittedAt, &r.UpdatedAt)
	r.Shift = domain.ShiftName(shift)
	r.SubmittedAt = r.SubmittedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, err
}

func (s *Store) FindShiftReport(ctx context.Context, pumpID string, date string, shift domain.ShiftName) (*domain.ShiftReport, error) {
	report, err := scanReport(s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM shift_reports
		WHERE pump_id = $1 AND shift_date = $2::date AND shift_name = $3
	`, pumpID, date, string(shift)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := s.attachReadingIDs(ctx, s.db, []*domain.ShiftReport{&report}); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Store) GetShiftReport(ctx context.Context, id string) (*domain.ShiftReport, error) {
	report, err := scanReport(s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM shift_reports
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := s.attachReadingIDs(ctx, s.db, []*domain.ShiftReport{&report}); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Store) ListShiftReports(ctx context.Context, filter domain.ShiftReportFilter) ([]domain.ShiftReport, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM shift_reports
		WHERE ($1::text = '' OR pump_id = $1)
			AND ($2::text = '' OR shift_date = NULLIF($2::text, '')::date)
			AND ($3::text = '' OR status = $3)
			AND ($5::text = '' OR shift_date >= NULLIF($5::text, '')::date)
			AND ($6::text = '' OR shift_date <= NULLIF($6::text, '')::date)
		ORDER BY shift_date DESC,
			CASE shift_name WHEN 'Night' THEN 2 WHEN 'Afternoon' THEN 1 ELSE 0 END DESC,
			pump_id
		LIMIT $4
	`, filter.PumpID, filter.Date, filter.Status, limit, filter.FromDate, filter.ToDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]domain.ShiftReport, 0, min(limit, 128))
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*domain.ShiftReport, len(reports))
	for i := range reports {
		ptrs[i] = &reports[i]
	}
	if err := s.attachReadingIDs(ctx, s.db, ptrs); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *Store) attachReadingIDs(ctx context.Context, q querier, reports []*domain.ShiftReport) error {
	if len(reports) == 0 {
		return nil
	}
	byID := make(map[string]*domain.ShiftReport, len(reports))
	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		r.ReadingIDs = []string{}
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT shift_report_id, id
		FROM nozzle_readings
		WHERE shift_report_id = ANY($1)
		ORDER BY shift_report_id, nozzle_id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var reportID, readingID string
		if err := rows.Scan(&reportID, &readingID); err != nil {
			return err
		}
		if r, ok := byID[reportID]; ok {
			r.ReadingIDs = append(r.ReadingIDs, readingID)
		}
	}
	return rows.Err()
}

// CommitShiftSubmission writes the whole submission in one serializable
// transaction. The unique index on (pump_id, shift_date, shift_name) turns a
// racing second writer into ErrAlreadySubmitted.
func (s *Store) CommitShiftSubmission(ctx context.Context, submission domain.ShiftSubmission) (*domain.ShiftReport, error) {
	report := submission.Report
	if report.ID == "" || report.PumpID == "" || report.Date == "" || report.Shift == "" || len(submission.Readings) == 0 {
		return nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO shift_reports (
			id, pump_id, shift_date, shift_name, total_sales, cash, card, upi, credit_out,
			collected, variance, status, operator, submitted_by, submitted_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, report.ID, report.PumpID, report.Date, string(report.Shift), report.TotalSales, report.Cash, report.Card, report.UPI, report.CreditOut,
		report.Collected, report.Variance, report.Status, report.Operator, report.SubmittedBy, report.SubmittedAt, report.UpdatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}

	for _, r := range submission.Readings {
		var booked decimal.Decimal
		if err := pgTx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(extracted_qty), 0)
			FROM machine_tests
			WHERE pump_id = $1 AND nozzle_id = $2 AND shift_date = $3::date AND shift_name = $4 AND extracted_qty > 0
		`, r.PumpID, r.NozzleID, r.Date, string(r.Shift)).Scan(&booked); err != nil {
			return nil, mapWriteError(err)
		}
		if !booked.Round(3).Equal(r.TestVolume) {
			return nil, fmt.Errorf("%w: machine tests changed for nozzle %s", store.ErrConflict, r.NozzleID)
		}
	}

	for _, r := range submission.Readings {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO nozzle_readings (
				id, pump_id, nozzle_id, shift_date, shift_name, fuel_type, open_reading, close_reading,
				test_volume, gross_volume, net_volume, revenue, rate, status, shift_report_id, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		`, r.ID, r.PumpID, r.NozzleID, r.Date, string(r.Shift), string(r.FuelType), r.OpenReading, r.CloseReading,
			r.TestVolume, r.GrossVolume, r.NetVolume, r.Revenue, r.Rate, r.Status, report.ID, r.CreatedAt)
		if err != nil {
			return nil, mapWriteError(err)
		}
	}

	for _, u := range submission.NozzleUpdates {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE nozzles
			SET current_reading = $3, updated_at = now()
			WHERE pump_id = $1 AND nozzle_id = $2
		`, u.PumpID, u.NozzleID, u.Reading)
		if err != nil {
			return nil, mapWriteError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrNotFound
		}
	}

	delta := submission.DailySales
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO daily_sales (pump_id, sales_date, total_sales, volume, shifts)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (pump_id, sales_date)
		DO UPDATE SET
			total_sales = daily_sales.total_sales + EXCLUDED.total_sales,
			volume = daily_sales.volume + EXCLUDED.volume,
			shifts = daily_sales.shifts + EXCLUDED.shifts
	`, delta.PumpID, delta.Date, delta.TotalSales, delta.Volume, delta.Shifts)
	if err != nil {
		return nil, mapWriteError(err)
	}

	for _, charge := range submission.CreditCharges {
		if _, err := postCredit(ctx, pgTx, charge); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, mapWriteError(err)
	}

	created := report
	created.ReadingIDs = make([]string, 0, len(submission.Readings))
	for _, r := range submission.Readings {
		created.ReadingIDs = append(created.ReadingIDs, r.ID)
	}
	return &created, nil
}

func (s *Store) CommitShiftAudit(ctx context.Context, report domain.ShiftReport, entry domain.ShiftAuditEntry) (*domain.ShiftReport, error) {
	if strings.TrimSpace(entry.Reason) == "" || len(entry.Changes) == 0 {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("saudit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	updated, err := scanReport(pgTx.QueryRowContext(ctx, `
		UPDATE shift_reports
		SET cash = $2, card = $3, upi = $4, collected = $5, variance = $6, status = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+reportColumns,
		report.ID, report.Cash, report.Card, report.UPI, report.Collected, report.Variance, domain.ShiftStatusAudited, report.UpdatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO shift_audits (id, shift_report_id, reason, changes, changed_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, report.ID, entry.Reason, string(changes), entry.ChangedBy, entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := s.attachReadingIDs(ctx, pgTx, []*domain.ShiftReport{&updated}); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapWriteError(err)
	}
	return &updated, nil
}

func (s *Store) ListShiftAudits(ctx context.Context, shiftReportID string) ([]domain.ShiftAuditEntry, error) {
	if _, err := s.GetShiftReport(ctx, shiftReportID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shift_report_id, reason, changes, changed_by, created_at
		FROM shift_audits
		WHERE shift_report_id = $1
		ORDER BY created_at, id
	`, shiftReportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.ShiftAuditEntry, 0, 4)
	for rows.Next() {
		var e domain.ShiftAuditEntry
		var changes []byte
		if err := rows.Scan(&e.ID, &e.ShiftReportID, &e.Reason, &changes, &e.ChangedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return nil, fmt.Errorf("decode shift audit %s: %w", e.ID, err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) GetDailySales(ctx context.Context, pumpID string, date string) ([]domain.DailySales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pump_id, sales_date::text, total_sales, volume, shifts
		FROM daily_sales
		WHERE ($1::text = '' OR pump_id = $1)
			AND ($2::text = '' OR sales_date = NULLIF($2::text, '')::date)
		ORDER BY sales_date DESC, pump_id
		LIMIT 366
	`, pumpID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.DailySales, 0, 8)
	for rows.Next() {
		var d domain.DailySales
		if err := rows.Scan(&d.PumpID, &d.Date, &d.TotalSales, &d.Volume, &d.Shifts); err != nil {
			return nil, err
		}
		sales = append(sales, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, pump_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.PumpID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, pumpID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pump_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1::text = '' OR pump_id = $1)
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, pumpID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.PumpID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleOperator
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// mapWriteError turns the slot uniqueness violation and a serialization
// failure between two racing submitters into ErrAlreadySubmitted.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == "23505" && (pgErr.ConstraintName == "uq_shift_reports_slot" || pgErr.ConstraintName == "uq_nozzle_readings_slot"):
		return store.ErrAlreadySubmitted
	case pgErr.Code == "40001":
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
	case pgErr.Code == "23503":
		return store.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
