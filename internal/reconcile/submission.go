package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fuelos/backend/internal/domain"
)

// Snapshot is the data a shift computation reads. The caller loads it from
// the store; the engine never reaches for global state.
type Snapshot struct {
	PumpID   string
	Nozzles  []domain.Nozzle
	History  []domain.NozzleReading
	Tests    []domain.MachineTest
	Existing *domain.ShiftReport
	Rates    RateTable
	// Customers is only loaded when the entry splits credit.
	Customers []domain.CreditCustomer
}

type ShiftInput struct {
	PumpID   string
	Date     string
	Shift    domain.ShiftName
	Operator string
	Closings []domain.NozzleClosing
	Payments domain.PaymentSplit
	Credits  []domain.CreditSale
}

// ShiftComputation is the per-nozzle view of a shift before anything is written.
type ShiftComputation struct {
	Nozzles  []domain.NozzleResult
	Warnings []DataGapWarning
}

// Incomplete returns the results that still block submission.
func (c ShiftComputation) Incomplete() []domain.NozzleResult {
	out := make([]domain.NozzleResult, 0)
	for _, n := range c.Nozzles {
		if !n.Complete {
			out = append(out, n)
		}
	}
	return out
}

// ComputeShift runs continuity, the test ledger and the calculator for every
// active nozzle of the pump.
func ComputeShift(snap Snapshot, in ShiftInput) (ShiftComputation, error) {
	if _, err := ParseDate(in.Date); err != nil {
		return ShiftComputation{}, err
	}
	if ShiftIndex(in.Shift) < 0 {
		return ShiftComputation{}, &ValidationError{Err: ErrInvalidInput, Field: "shift", Issue: fmt.Sprintf("unknown shift %q", in.Shift), PumpID: in.PumpID, Date: in.Date}
	}

	active := make(map[string]domain.Nozzle, len(snap.Nozzles))
	for _, n := range snap.Nozzles {
		if n.PumpID == in.PumpID && n.Active {
			active[n.NozzleID] = n
		}
	}

	closings := make(map[string]string, len(in.Closings))
	for _, c := range in.Closings {
		id := strings.ToUpper(strings.TrimSpace(c.NozzleID))
		if _, ok := active[id]; !ok {
			return ShiftComputation{}, &ValidationError{Err: ErrInvalidInput, Field: "nozzle_id", Issue: "unknown or inactive nozzle", PumpID: in.PumpID, NozzleID: id, Date: in.Date, Shift: in.Shift}
		}
		if _, dup := closings[id]; dup {
			return ShiftComputation{}, &ValidationError{Err: ErrInvalidInput, Field: "nozzle_id", Issue: "duplicate closing", PumpID: in.PumpID, NozzleID: id, Date: in.Date, Shift: in.Shift}
		}
		closings[id] = c.CloseReading
	}

	comp := ShiftComputation{Nozzles: make([]domain.NozzleResult, 0, len(active))}
	for _, n := range snap.Nozzles {
		if _, ok := active[n.NozzleID]; !ok || n.PumpID != in.PumpID {
			continue
		}
		rate, err := snap.Rates.RateFor(n.FuelType)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.PumpID, verr.NozzleID, verr.Date, verr.Shift = in.PumpID, n.NozzleID, in.Date, in.Shift
			}
			return ShiftComputation{}, err
		}

		res := ResolveOpenReading(n, snap.History, in.Date, in.Shift)
		if w, gap := GapWarning(n, in.Date, in.Shift, res); gap {
			comp.Warnings = append(comp.Warnings, w)
		}

		comp.Nozzles = append(comp.Nozzles, ComputeNozzle(NozzleInput{
			PumpID:      in.PumpID,
			NozzleID:    n.NozzleID,
			FuelType:    n.FuelType,
			OpenReading: res.Reading,
			OpenSource:  res.Source,
			CloseInput:  closings[n.NozzleID],
			TestVolume:  TestVolumeFor(snap.Tests, in.PumpID, n.NozzleID, in.Date, in.Shift),
			Rate:        rate,
		}))
	}
	return comp, nil
}

// Submission is the atomic write set plus what the caller needs to report.
type Submission struct {
	domain.ShiftSubmission
	Totals   domain.ShiftTotals
	Warnings []DataGapWarning
}

// BuildSubmission validates the shift and produces every record the store
// must commit together. An existing report in the snapshot is a
// PreconditionError; an incomplete nozzle is a ValidationError.
func (p Policy) BuildSubmission(snap Snapshot, in ShiftInput, submittedBy string, now time.Time, newID func(string) string) (Submission, error) {
	if err := CanSubmit(StateFor(snap.Existing, true), in.PumpID, in.Date, in.Shift); err != nil {
		return Submission{}, err
	}

	comp, err := ComputeShift(snap, in)
	if err != nil {
		return Submission{}, err
	}
	for _, n := range comp.Nozzles {
		if err := NozzleError(n, in.Date, in.Shift); err != nil {
			return Submission{}, err
		}
	}
	totals, err := p.Aggregate(comp.Nozzles, in.Payments)
	if err != nil {
		var pre *PreconditionError
		if errors.As(err, &pre) {
			pre.PumpID, pre.Date, pre.Shift = in.PumpID, in.Date, in.Shift
		}
		return Submission{}, err
	}

	payments := RoundSplit(in.Payments)
	sales, err := PlanCreditSales(snap.Customers, in.Credits, payments.Credit)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.PumpID, verr.Date, verr.Shift = in.PumpID, in.Date, in.Shift
		}
		return Submission{}, err
	}
	now = now.UTC()
	reportID := newID("shift")
	readings := make([]domain.NozzleReading, 0, len(comp.Nozzles))
	updates := make([]domain.NozzleReadingUpdate, 0, len(comp.Nozzles))
	ids := make([]string, 0, len(comp.Nozzles))
	target := Slot{Date: in.Date, Shift: in.Shift}
	for _, n := range comp.Nozzles {
		reading := domain.NozzleReading{
			ID:            newID("rd"),
			PumpID:        in.PumpID,
			NozzleID:      n.NozzleID,
			Date:          in.Date,
			Shift:         in.Shift,
			FuelType:      n.FuelType,
			OpenReading:   n.OpenReading,
			CloseReading:  n.Close,
			TestVolume:    n.TestVolume,
			GrossVolume:   n.GrossVolume,
			NetVolume:     n.NetVolume,
			Revenue:       n.Revenue,
			Rate:          n.Rate,
			Status:        domain.ReadingStatusSubmitted,
			ShiftReportID: reportID,
			CreatedAt:     now,
		}
		readings = append(readings, reading)
		ids = append(ids, reading.ID)
		if !hasLaterReading(snap.History, in.PumpID, n.NozzleID, target) {
			updates = append(updates, domain.NozzleReadingUpdate{PumpID: in.PumpID, NozzleID: n.NozzleID, Reading: n.Close})
		}
	}

	report := domain.ShiftReport{
		ID:          reportID,
		PumpID:      in.PumpID,
		Date:        in.Date,
		Shift:       in.Shift,
		TotalSales:  totals.TotalSales,
		Cash:        payments.Cash,
		Card:        payments.Card,
		UPI:         payments.UPI,
		CreditOut:   payments.Credit,
		Collected:   totals.Collected,
		Variance:    totals.Variance,
		Status:      domain.ShiftStatusSubmitted,
		ReadingIDs:  ids,
		Operator:    in.Operator,
		SubmittedBy: submittedBy,
		SubmittedAt: now,
		UpdatedAt:   now,
	}

	charges := make([]domain.CreditTransaction, 0, len(sales))
	for _, sale := range sales {
		charges = append(charges, domain.CreditTransaction{
			ID:            newID("ctx"),
			CustomerID:    sale.CustomerID,
			Type:          domain.CreditCharge,
			Amount:        sale.Amount,
			ShiftReportID: reportID,
			PumpID:        in.PumpID,
			Date:          in.Date,
			Note:          fmt.Sprintf("%s shift", in.Shift),
			CreatedBy:     submittedBy,
			CreatedAt:     now,
		})
	}

	return Submission{
		ShiftSubmission: domain.ShiftSubmission{
			Report:        report,
			Readings:      readings,
			NozzleUpdates: updates,
			DailySales: domain.DailySales{
				PumpID:     in.PumpID,
				Date:       in.Date,
				TotalSales: totals.TotalSales,
				Volume:     totals.TotalVolume,
				Shifts:     1,
			},
			CreditCharges: charges,
		},
		Totals:   totals,
		Warnings: comp.Warnings,
	}, nil
}

// hasLaterReading reports whether the nozzle already has a submitted record
// after target; a backdated submission must not rewind the live meter.
func hasLaterReading(history []domain.NozzleReading, pumpID, nozzleID string, target Slot) bool {
	for _, rec := range history {
		if rec.PumpID != pumpID || rec.NozzleID != nozzleID || rec.Status != domain.ReadingStatusSubmitted {
			continue
		}
		if target.Before(Slot{Date: rec.Date, Shift: rec.Shift}) {
			return true
		}
	}
	return false
}

// NozzleFuels lists the fuel types of the active nozzles of a pump.
func NozzleFuels(nozzles []domain.Nozzle) []domain.FuelType {
	seen := make(map[domain.FuelType]struct{}, len(nozzles))
	out := make([]domain.FuelType, 0, len(nozzles))
	for _, n := range nozzles {
		if !n.Active {
			continue
		}
		if _, ok := seen[n.FuelType]; ok {
			continue
		}
		seen[n.FuelType] = struct{}{}
		out = append(out, n.FuelType)
	}
	return out
}
