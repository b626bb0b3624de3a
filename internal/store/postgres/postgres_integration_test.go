package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/store"
)

func TestCommitShiftSubmissionIsUniquePerSlot(t *testing.T) {
	databaseURL := os.Getenv("FUELOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set FUELOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	pumpID := fmt.Sprintf("IT-%d", stamp)
	reportID := fmt.Sprintf("shift_it_%d", stamp)
	date := "2025-02-20"

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM machine_tests WHERE pump_id = $1`, pumpID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM nozzle_readings WHERE pump_id = $1`, pumpID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shift_audits WHERE shift_report_id = $1`, reportID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shift_reports WHERE pump_id = $1`, pumpID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM daily_sales WHERE pump_id = $1`, pumpID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM nozzles WHERE pump_id = $1`, pumpID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM pumps WHERE id = $1`, pumpID)
	})

	if _, err := s.CreatePump(ctx, domain.Pump{ID: pumpID, Name: "Integration"}); err != nil {
		t.Fatalf("create pump: %v", err)
	}
	if _, err := s.CreateNozzle(ctx, domain.Nozzle{PumpID: pumpID, NozzleID: "N1", FuelType: domain.FuelPetrol, CurrentReading: decimal.NewFromInt(1000)}); err != nil {
		t.Fatalf("create nozzle: %v", err)
	}

	now := time.Now().UTC()
	submission := func(id string) domain.ShiftSubmission {
		return domain.ShiftSubmission{
			Report: domain.ShiftReport{
				ID: id, PumpID: pumpID, Date: date, Shift: domain.ShiftMorning,
				TotalSales: decimal.NewFromInt(4800), Cash: decimal.NewFromInt(4800), Card: decimal.Zero, UPI: decimal.Zero, CreditOut: decimal.Zero,
				Collected: decimal.NewFromInt(4800), Variance: decimal.Zero, Status: domain.ShiftStatusSubmitted,
				SubmittedAt: now, UpdatedAt: now,
			},
			Readings: []domain.NozzleReading{{
				ID: id + "_rd", PumpID: pumpID, NozzleID: "N1", Date: date, Shift: domain.ShiftMorning, FuelType: domain.FuelPetrol,
				OpenReading: decimal.NewFromInt(1000), CloseReading: decimal.NewFromInt(1050), TestVolume: decimal.NewFromInt(2),
				GrossVolume: decimal.NewFromInt(50), NetVolume: decimal.NewFromInt(48), Revenue: decimal.NewFromInt(4800), Rate: decimal.NewFromInt(100),
				Status: domain.ReadingStatusSubmitted, CreatedAt: now,
			}},
			NozzleUpdates: []domain.NozzleReadingUpdate{{PumpID: pumpID, NozzleID: "N1", Reading: decimal.NewFromInt(1050)}},
			DailySales:    domain.DailySales{PumpID: pumpID, Date: date, TotalSales: decimal.NewFromInt(4800), Volume: decimal.NewFromInt(48), Shifts: 1},
		}
	}

	calibration := func(id string) domain.MachineTest {
		return domain.MachineTest{
			ID: id, PumpID: pumpID, NozzleID: "N1", Date: date, Shift: domain.ShiftMorning,
			ExtractedQty: decimal.NewFromInt(2), JarReading: decimal.NewFromInt(2), Result: domain.TestPass, CreatedAt: now,
		}
	}

	_, err = s.CommitShiftSubmission(ctx, submission(reportID))
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for undeducted test volume, got %v", err)
	}
	if _, err := s.CreateMachineTest(ctx, calibration(fmt.Sprintf("test_it_%d", stamp))); err != nil {
		t.Fatalf("create machine test: %v", err)
	}
	if _, err := s.CommitShiftSubmission(ctx, submission(reportID)); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	_, err = s.CreateMachineTest(ctx, calibration(fmt.Sprintf("test_it_late_%d", stamp)))
	if !errors.Is(err, store.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted for a test on a submitted slot, got %v", err)
	}
	_, err = s.CommitShiftSubmission(ctx, submission(reportID+"_dup"))
	if !errors.Is(err, store.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	nozzle, err := s.GetNozzle(ctx, pumpID, "N1")
	if err != nil {
		t.Fatalf("get nozzle: %v", err)
	}
	if !nozzle.CurrentReading.Equal(decimal.NewFromInt(1050)) {
		t.Fatalf("expected current reading 1050, got %s", nozzle.CurrentReading)
	}

	report, err := s.FindShiftReport(ctx, pumpID, date, domain.ShiftMorning)
	if err != nil {
		t.Fatalf("find report: %v", err)
	}
	if report.ID != reportID || len(report.ReadingIDs) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	report.Cash = decimal.NewFromInt(4700)
	report.Collected = decimal.NewFromInt(4700)
	report.Variance = decimal.NewFromInt(-100)
	audited, err := s.CommitShiftAudit(ctx, *report, domain.ShiftAuditEntry{
		Reason:  "recount",
		Changes: []domain.FieldChange{{Field: "cash", From: decimal.NewFromInt(4800), To: decimal.NewFromInt(4700)}},
	})
	if err != nil {
		t.Fatalf("commit audit: %v", err)
	}
	if audited.Status != domain.ShiftStatusAudited || !audited.TotalSales.Equal(decimal.NewFromInt(4800)) {
		t.Fatalf("unexpected audited report %+v", audited)
	}
	entries, err := s.ListShiftAudits(ctx, reportID)
	if err != nil {
		t.Fatalf("list audits: %v", err)
	}
	if len(entries) != 1 || entries[0].Changes[0].Field != "cash" {
		t.Fatalf("unexpected audit entries %+v", entries)
	}

	sales, err := s.GetDailySales(ctx, pumpID, date)
	if err != nil {
		t.Fatalf("daily sales: %v", err)
	}
	if len(sales) != 1 || sales[0].Shifts != 1 {
		t.Fatalf("unexpected daily sales %+v", sales)
	}
}
