package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuelos/backend/internal/domain"
	"fuelos/backend/internal/lock"
	"fuelos/backend/internal/metrics"
	"fuelos/backend/internal/reconcile"
	"fuelos/backend/internal/store"
	"fuelos/backend/internal/xid"
)

// ResolveOpenReading reports the opening meter value a nozzle starts the
// given shift with, and where that value came from.
func (s *Service) ResolveOpenReading(ctx context.Context, pumpID string, nozzleID string, date string, shiftRaw string) (domain.OpenReadingResponse, error) {
	shift, err := reconcile.ParseShift(shiftRaw)
	if err != nil {
		return domain.OpenReadingResponse{}, err
	}
	if _, err := reconcile.ParseDate(date); err != nil {
		return domain.OpenReadingResponse{}, err
	}

	nozzle, err := s.repo.GetNozzle(ctx, strings.TrimSpace(pumpID), strings.TrimSpace(nozzleID))
	if err != nil {
		return domain.OpenReadingResponse{}, err
	}
	history, err := s.repo.ListNozzleReadings(ctx, domain.NozzleReadingFilter{
		PumpID:   nozzle.PumpID,
		NozzleID: nozzle.NozzleID,
		ToDate:   date,
	})
	if err != nil {
		return domain.OpenReadingResponse{}, err
	}

	res := reconcile.ResolveOpenReading(*nozzle, history, date, shift)
	out := domain.OpenReadingResponse{
		PumpID:   nozzle.PumpID,
		NozzleID: nozzle.NozzleID,
		Date:     date,
		Shift:    shift,
		Reading:  res.Reading,
		Source:   res.Source,
		Gap:      res.Gap(),
	}
	if res.From != nil {
		out.FromDate = res.From.Date
		out.From = res.From.Shift
	}
	return out, nil
}

func (s *Service) RecordMachineTest(ctx context.Context, req domain.MachineTestRequest) (domain.MachineTest, error) {
	req.PumpID = strings.ToUpper(strings.TrimSpace(req.PumpID))
	req.NozzleID = strings.ToUpper(strings.TrimSpace(req.NozzleID))
	if err := s.validateRequest(req); err != nil {
		return domain.MachineTest{}, err
	}

	nozzle, err := s.repo.GetNozzle(ctx, req.PumpID, req.NozzleID)
	if err != nil {
		return domain.MachineTest{}, err
	}
	if !nozzle.Active {
		return domain.MachineTest{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "nozzle_id", Issue: "nozzle is inactive", PumpID: req.PumpID, NozzleID: req.NozzleID}
	}
	// A test booked after submission would never be deducted, so the
	// re-check and the insert share the submission's slot lock.
	release, err := s.lockSlot(ctx, req.PumpID, req.Date, req.Shift)
	if err != nil {
		return domain.MachineTest{}, err
	}
	defer release()

	existing, err := s.findReport(ctx, req.PumpID, req.Date, req.Shift)
	if err != nil {
		return domain.MachineTest{}, err
	}
	if err := reconcile.CanSubmit(reconcile.StateFor(existing, false), req.PumpID, req.Date, req.Shift); err != nil {
		return domain.MachineTest{}, err
	}

	actor, _ := ActorFromContext(ctx)
	test, err := reconcile.ValidateTest(domain.MachineTest{
		ID:             xid.New("test"),
		PumpID:         req.PumpID,
		NozzleID:       req.NozzleID,
		Date:           req.Date,
		Shift:          req.Shift,
		ExtractedQty:   req.ExtractedQty,
		MeterBefore:    req.MeterBefore,
		MeterAfter:     req.MeterAfter,
		JarReading:     req.JarReading,
		ReturnedToTank: req.ReturnedToTank,
		TestedBy:       actor.Username,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return domain.MachineTest{}, err
	}

	created, err := s.repo.CreateMachineTest(ctx, test)
	if err != nil {
		if errors.Is(err, store.ErrAlreadySubmitted) {
			return domain.MachineTest{}, &reconcile.PreconditionError{Err: reconcile.ErrAlreadySubmitted, PumpID: req.PumpID, Date: req.Date, Shift: req.Shift}
		}
		return domain.MachineTest{}, err
	}
	if created.Result != domain.TestPass {
		s.logger.Warn("machine test outside tolerance",
			zap.String("pump_id", created.PumpID),
			zap.String("nozzle_id", created.NozzleID),
			zap.String("variance_ml", created.VarianceML.String()),
			zap.String("result", string(created.Result)))
	}
	s.logAudit(ctx, created.PumpID, "machine_test", "machine_test", created.ID,
		fmt.Sprintf("nozzle=%s,date=%s,shift=%s,qty=%s,result=%s", created.NozzleID, created.Date, created.Shift, created.ExtractedQty, created.Result))
	return *created, nil
}

func (s *Service) ListMachineTests(ctx context.Context, filter domain.MachineTestFilter) ([]domain.MachineTest, error) {
	if filter.Date != "" {
		if _, err := reconcile.ParseDate(filter.Date); err != nil {
			return nil, err
		}
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListMachineTests(ctx, filter)
}

// PreviewShift computes every active nozzle of the pump without writing.
// Incomplete nozzles are reported as issues instead of errors.
func (s *Service) PreviewShift(ctx context.Context, req domain.ShiftEntryRequest) (domain.ShiftPreviewResponse, error) {
	in, err := s.shiftInput(req)
	if err != nil {
		return domain.ShiftPreviewResponse{}, err
	}
	snap, err := s.loadSnapshot(ctx, in.PumpID, in.Date, in.Shift)
	if err != nil {
		return domain.ShiftPreviewResponse{}, err
	}
	comp, err := reconcile.ComputeShift(snap, in)
	if err != nil {
		return domain.ShiftPreviewResponse{}, err
	}

	state := reconcile.StateFor(snap.Existing, len(in.Closings) > 0)
	out := domain.ShiftPreviewResponse{
		PumpID:  in.PumpID,
		Date:    in.Date,
		Shift:   in.Shift,
		State:   string(state),
		Nozzles: comp.Nozzles,
		Issues:  make([]string, 0),
	}
	if err := reconcile.CanSubmit(state, in.PumpID, in.Date, in.Shift); err != nil {
		out.Issues = append(out.Issues, err.Error())
	}
	for _, n := range comp.Incomplete() {
		out.Issues = append(out.Issues, fmt.Sprintf("nozzle %s: %s", n.NozzleID, n.Issue))
	}
	for _, w := range comp.Warnings {
		out.Issues = append(out.Issues, w.String())
	}

	if len(comp.Incomplete()) == 0 {
		totals, err := s.policy.Aggregate(comp.Nozzles, in.Payments)
		if err != nil && reconcile.IsValidation(err) {
			return domain.ShiftPreviewResponse{}, err
		}
		if err == nil {
			out.Totals = &totals
		}
	}
	out.CanSubmit = out.Totals != nil && state != reconcile.StateSubmitted && state != reconcile.StateAudited
	return out, nil
}

// SubmitShift is the single writer for one (pump, date, shift) slot. It
// holds the slot lock across the re-check and the commit.
func (s *Service) SubmitShift(ctx context.Context, req domain.ShiftEntryRequest) (domain.ShiftSubmitResponse, error) {
	resp, err := s.submitShift(ctx, req)
	s.metrics.ObserveSubmission(submissionResult(err))
	return resp, err
}

func (s *Service) submitShift(ctx context.Context, req domain.ShiftEntryRequest) (domain.ShiftSubmitResponse, error) {
	in, err := s.shiftInput(req)
	if err != nil {
		return domain.ShiftSubmitResponse{}, err
	}

	release, err := s.lockSlot(ctx, in.PumpID, in.Date, in.Shift)
	if err != nil {
		return domain.ShiftSubmitResponse{}, err
	}
	defer release()

	snap, err := s.loadSnapshot(ctx, in.PumpID, in.Date, in.Shift)
	if err != nil {
		return domain.ShiftSubmitResponse{}, err
	}
	if len(in.Credits) > 0 {
		if snap.Customers, err = s.repo.ListCreditCustomers(ctx, false); err != nil {
			return domain.ShiftSubmitResponse{}, err
		}
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system"}
	}
	sub, err := s.policy.BuildSubmission(snap, in, actor.Username, s.now(), xid.New)
	if err != nil {
		return domain.ShiftSubmitResponse{}, err
	}

	report, err := s.repo.CommitShiftSubmission(ctx, sub.ShiftSubmission)
	if err != nil {
		if errors.Is(err, store.ErrAlreadySubmitted) {
			return domain.ShiftSubmitResponse{}, &reconcile.PreconditionError{Err: reconcile.ErrAlreadySubmitted, PumpID: in.PumpID, Date: in.Date, Shift: in.Shift}
		}
		return domain.ShiftSubmitResponse{}, fmt.Errorf("commit shift submission: %w", err)
	}

	for _, w := range sub.Warnings {
		s.logger.Warn("continuity gap",
			zap.String("pump_id", w.PumpID),
			zap.String("nozzle_id", w.NozzleID),
			zap.String("date", w.Date),
			zap.String("shift", string(w.Shift)),
			zap.String("source", w.Source),
			zap.String("reading", w.Reading.String()))
	}
	s.metrics.ObserveContinuityGaps(len(sub.Warnings))
	s.metrics.ObserveVariance(report.Variance)

	s.logAudit(ctx, report.PumpID, "shift_submit", "shift_report", report.ID,
		fmt.Sprintf("date=%s,shift=%s,sales=%s,collected=%s,variance=%s", report.Date, report.Shift, report.TotalSales, report.Collected, report.Variance))
	for _, c := range sub.CreditCharges {
		s.logAudit(ctx, report.PumpID, "credit_charge", "credit_customer", c.CustomerID,
			fmt.Sprintf("shift=%s,amount=%s", report.ID, c.Amount))
	}

	return domain.ShiftSubmitResponse{
		Report:   *report,
		Readings: sub.Readings,
		Totals:   sub.Totals,
	}, nil
}

// lockSlot serialises writers on one (pump, date, shift) slot.
func (s *Service) lockSlot(ctx context.Context, pumpID, date string, shift domain.ShiftName) (func(), error) {
	release, err := s.locker.Acquire(ctx, lock.ShiftKey(pumpID, date, shift))
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, &reconcile.PreconditionError{Err: ErrSubmissionInProgress, PumpID: pumpID, Date: date, Shift: shift}
		}
		return nil, fmt.Errorf("acquire shift lock: %w", err)
	}
	return release, nil
}

func submissionResult(err error) string {
	switch {
	case err == nil:
		return metrics.SubmissionAccepted
	case errors.Is(err, reconcile.ErrAlreadySubmitted):
		return metrics.SubmissionDuplicate
	case errors.Is(err, ErrSubmissionInProgress):
		return metrics.SubmissionInProgress
	case errors.Is(err, reconcile.ErrIncompleteReading), errors.Is(err, reconcile.ErrIncompleteShift):
		return metrics.SubmissionIncomplete
	case reconcile.IsValidation(err), errors.Is(err, store.ErrNotFound):
		return metrics.SubmissionInvalid
	default:
		return metrics.SubmissionError
	}
}

func (s *Service) IsShiftSubmitted(ctx context.Context, pumpID string, date string, shift domain.ShiftName) (bool, error) {
	report, err := s.findReport(ctx, pumpID, date, shift)
	if err != nil {
		return false, err
	}
	return report != nil, nil
}

func (s *Service) ShiftStatus(ctx context.Context, pumpID string, date string, shiftRaw string) (domain.ShiftStatusResponse, error) {
	pumpID = strings.TrimSpace(pumpID)
	shift, err := reconcile.ParseShift(shiftRaw)
	if err != nil {
		return domain.ShiftStatusResponse{}, err
	}
	if _, err := reconcile.ParseDate(date); err != nil {
		return domain.ShiftStatusResponse{}, err
	}
	if _, err := s.repo.GetPump(ctx, pumpID); err != nil {
		return domain.ShiftStatusResponse{}, err
	}

	report, err := s.findReport(ctx, pumpID, date, shift)
	if err != nil {
		return domain.ShiftStatusResponse{}, err
	}
	out := domain.ShiftStatusResponse{
		PumpID:    pumpID,
		Date:      date,
		Shift:     shift,
		State:     string(reconcile.StateFor(report, false)),
		Submitted: report != nil,
	}
	if report != nil {
		out.ReportID = report.ID
	}
	return out, nil
}

func (s *Service) ListShiftReports(ctx context.Context, filter domain.ShiftReportFilter) ([]domain.ShiftReport, error) {
	if filter.Date != "" {
		if _, err := reconcile.ParseDate(filter.Date); err != nil {
			return nil, err
		}
	}
	if filter.Status != "" && filter.Status != domain.ShiftStatusSubmitted && filter.Status != domain.ShiftStatusAudited {
		return nil, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "status", Issue: fmt.Sprintf("unknown status %q", filter.Status)}
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListShiftReports(ctx, filter)
}

func (s *Service) GetShiftReport(ctx context.Context, id string) (domain.ShiftSubmitResponse, error) {
	report, err := s.repo.GetShiftReport(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ShiftSubmitResponse{}, err
	}
	readings, err := s.repo.ListNozzleReadings(ctx, domain.NozzleReadingFilter{ShiftReportID: report.ID})
	if err != nil {
		return domain.ShiftSubmitResponse{}, err
	}

	totals := domain.ShiftTotals{
		TotalSales:     report.TotalSales,
		Collected:      report.Collected,
		Credit:         report.CreditOut,
		Variance:       report.Variance,
		VarianceStatus: reconcile.ClassifyVariance(report.Variance),
		VarianceTier:   s.policy.Tier(report.Variance),
	}
	for _, r := range readings {
		totals.TotalVolume = totals.TotalVolume.Add(r.NetVolume)
	}
	return domain.ShiftSubmitResponse{Report: *report, Readings: readings, Totals: totals}, nil
}

// AuditShift applies a manager correction to a persisted report. Manager PIN
// checks happen at the transport edge.
func (s *Service) AuditShift(ctx context.Context, shiftID string, req domain.ShiftAuditRequest) (domain.ShiftAuditResponse, error) {
	if err := requireRole(ctx, domain.RoleManager, domain.RoleOwner, domain.RoleAdmin); err != nil {
		return domain.ShiftAuditResponse{}, err
	}
	current, err := s.repo.GetShiftReport(ctx, strings.TrimSpace(shiftID))
	if err != nil {
		return domain.ShiftAuditResponse{}, err
	}

	release, err := s.lockSlot(ctx, current.PumpID, current.Date, current.Shift)
	if err != nil {
		return domain.ShiftAuditResponse{}, err
	}
	defer release()

	// Re-read under the lock so the "from" values are the committed ones.
	current, err = s.repo.GetShiftReport(ctx, current.ID)
	if err != nil {
		return domain.ShiftAuditResponse{}, err
	}
	if !reconcile.CanAudit(reconcile.StateFor(current, false)) {
		return domain.ShiftAuditResponse{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "status", Issue: current.Status, PumpID: current.PumpID, Date: current.Date, Shift: current.Shift}
	}

	actor, _ := ActorFromContext(ctx)
	amended, entry, err := reconcile.AuditShift(*current, req.ShiftAuditChanges, req.Reason, actor.Username, s.now())
	if err != nil {
		return domain.ShiftAuditResponse{}, err
	}
	entry.ID = xid.New("saudit")

	saved, err := s.repo.CommitShiftAudit(ctx, amended, entry)
	if err != nil {
		return domain.ShiftAuditResponse{}, fmt.Errorf("commit shift audit: %w", err)
	}
	s.metrics.ObserveAudit()

	fields := make([]string, 0, len(entry.Changes))
	for _, c := range entry.Changes {
		fields = append(fields, fmt.Sprintf("%s:%s->%s", c.Field, c.From, c.To))
	}
	s.logAudit(ctx, saved.PumpID, "shift_audit", "shift_report", saved.ID,
		fmt.Sprintf("reason=%s,changes=%s", entry.Reason, strings.Join(fields, ";")))
	return domain.ShiftAuditResponse{Shift: *saved, Entry: entry}, nil
}

func (s *Service) ListShiftAudits(ctx context.Context, shiftID string) ([]domain.ShiftAuditEntry, error) {
	report, err := s.repo.GetShiftReport(ctx, strings.TrimSpace(shiftID))
	if err != nil {
		return nil, err
	}
	return s.repo.ListShiftAudits(ctx, report.ID)
}

// CheckDenominations counts the drawer against either an explicit declared
// amount or the cash booked on a report.
func (s *Service) CheckDenominations(ctx context.Context, req domain.DenominationCheckRequest) (domain.DenominationCheck, error) {
	if err := s.validateRequest(req); err != nil {
		return domain.DenominationCheck{}, err
	}

	var declared decimal.Decimal
	switch {
	case req.DeclaredCash != nil:
		declared = *req.DeclaredCash
	case strings.TrimSpace(req.ShiftID) != "":
		report, err := s.repo.GetShiftReport(ctx, strings.TrimSpace(req.ShiftID))
		if err != nil {
			return domain.DenominationCheck{}, err
		}
		declared = report.Cash
	default:
		return domain.DenominationCheck{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "declared_cash", Issue: "declared_cash or shift_id is required"}
	}
	if declared.IsNegative() {
		return domain.DenominationCheck{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "declared_cash", Issue: "must not be negative"}
	}
	return reconcile.CrossCheckDenominations(req.Counts, declared)
}

func (s *Service) shiftInput(req domain.ShiftEntryRequest) (reconcile.ShiftInput, error) {
	req.PumpID = strings.ToUpper(strings.TrimSpace(req.PumpID))
	req.Date = strings.TrimSpace(req.Date)
	if shift, err := reconcile.ParseShift(string(req.Shift)); err == nil {
		req.Shift = shift
	}
	if err := s.validateRequest(req); err != nil {
		return reconcile.ShiftInput{}, err
	}
	return reconcile.ShiftInput{
		PumpID:   req.PumpID,
		Date:     req.Date,
		Shift:    req.Shift,
		Operator: strings.TrimSpace(req.Operator),
		Closings: req.Closings,
		Payments: req.Payments,
		Credits:  req.Credits,
	}, nil
}

// loadSnapshot reads everything one slot computation needs. The whole
// reading history of the pump is loaded so later records are visible to
// backdated submissions.
func (s *Service) loadSnapshot(ctx context.Context, pumpID string, date string, shift domain.ShiftName) (reconcile.Snapshot, error) {
	pump, err := s.repo.GetPump(ctx, pumpID)
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	if !pump.Active {
		return reconcile.Snapshot{}, &reconcile.ValidationError{Err: reconcile.ErrInvalidInput, Field: "pump_id", Issue: "pump is inactive", PumpID: pumpID, Date: date, Shift: shift}
	}
	nozzles, err := s.repo.ListNozzles(ctx, pumpID, false)
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	history, err := s.repo.ListNozzleReadings(ctx, domain.NozzleReadingFilter{PumpID: pumpID})
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	tests, err := s.repo.ListMachineTests(ctx, domain.MachineTestFilter{PumpID: pumpID, Date: date, Shift: shift})
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	existing, err := s.findReport(ctx, pumpID, date, shift)
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	rates, err := s.rateTable(ctx, reconcile.NozzleFuels(nozzles))
	if err != nil {
		return reconcile.Snapshot{}, err
	}

	return reconcile.Snapshot{
		PumpID:   pumpID,
		Nozzles:  nozzles,
		History:  history,
		Tests:    tests,
		Existing: existing,
		Rates:    rates,
	}, nil
}

func (s *Service) findReport(ctx context.Context, pumpID string, date string, shift domain.ShiftName) (*domain.ShiftReport, error) {
	report, err := s.repo.FindShiftReport(ctx, pumpID, date, shift)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}
