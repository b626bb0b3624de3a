package reconcile

import (
	"fuelos/backend/internal/domain"
)

type ShiftState string

// NotStarted and InProgress are never persisted; they only describe a shift
// that has no report yet.
const (
	StateNotStarted ShiftState = "NotStarted"
	StateInProgress ShiftState = "InProgress"
	StateSubmitted  ShiftState = "Submitted"
	StateAudited    ShiftState = "Audited"
)

func StateFor(report *domain.ShiftReport, hasInput bool) ShiftState {
	if report != nil {
		if report.Status == domain.ShiftStatusAudited {
			return StateAudited
		}
		return StateSubmitted
	}
	if hasInput {
		return StateInProgress
	}
	return StateNotStarted
}

// CanSubmit rejects a second submission for a slot that already has a report.
func CanSubmit(state ShiftState, pumpID, date string, shift domain.ShiftName) error {
	if state == StateSubmitted || state == StateAudited {
		return &PreconditionError{Err: ErrAlreadySubmitted, PumpID: pumpID, Date: date, Shift: shift, Detail: string(state)}
	}
	return nil
}

// CanAudit only allows corrections on persisted reports.
func CanAudit(state ShiftState) bool {
	return state == StateSubmitted || state == StateAudited
}

func IsShiftSubmitted(reports []domain.ShiftReport, pumpID, date string, shift domain.ShiftName) bool {
	return FindReport(reports, pumpID, date, shift) != nil
}

func FindReport(reports []domain.ShiftReport, pumpID, date string, shift domain.ShiftName) *domain.ShiftReport {
	for i := range reports {
		r := &reports[i]
		if r.PumpID != pumpID || r.Date != date || r.Shift != shift {
			continue
		}
		if r.Status == domain.ShiftStatusSubmitted || r.Status == domain.ShiftStatusAudited {
			return r
		}
	}
	return nil
}
