package reconcile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

const (
	FieldCash     = "cash"
	FieldCard     = "card"
	FieldUPI      = "upi"
	FieldVariance = "variance"
)

// AuditShift applies a correction to the payment split of a persisted report.
// Total sales and the underlying nozzle readings are never touched. The
// returned entry lists exactly the fields whose value changed.
func AuditShift(report domain.ShiftReport, changes domain.ShiftAuditChanges, reason, actor string, now time.Time) (domain.ShiftReport, domain.ShiftAuditEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.ShiftReport{}, domain.ShiftAuditEntry{}, &ValidationError{
			Err: ErrReasonRequired, Field: "reason", PumpID: report.PumpID, Date: report.Date, Shift: report.Shift,
		}
	}
	if !CanAudit(StateFor(&report, false)) {
		return domain.ShiftReport{}, domain.ShiftAuditEntry{}, &ValidationError{
			Err: ErrInvalidInput, Field: "status", Issue: "report is not submitted", PumpID: report.PumpID, Date: report.Date, Shift: report.Shift,
		}
	}

	updated := report
	updated.ReadingIDs = append([]string(nil), report.ReadingIDs...)
	fieldChanges := make([]domain.FieldChange, 0, 4)

	apply := func(field string, current *decimal.Decimal, next *decimal.Decimal) error {
		if next == nil {
			return nil
		}
		if next.IsNegative() {
			return &ValidationError{Err: ErrInvalidInput, Field: field, Issue: "must not be negative", PumpID: report.PumpID, Date: report.Date, Shift: report.Shift}
		}
		if next.Equal(*current) {
			return nil
		}
		fieldChanges = append(fieldChanges, domain.FieldChange{Field: field, From: *current, To: *next})
		*current = *next
		return nil
	}
	if err := apply(FieldCash, &updated.Cash, changes.Cash); err != nil {
		return domain.ShiftReport{}, domain.ShiftAuditEntry{}, err
	}
	if err := apply(FieldCard, &updated.Card, changes.Card); err != nil {
		return domain.ShiftReport{}, domain.ShiftAuditEntry{}, err
	}
	if err := apply(FieldUPI, &updated.UPI, changes.UPI); err != nil {
		return domain.ShiftReport{}, domain.ShiftAuditEntry{}, err
	}

	paymentsChanged := len(fieldChanges) > 0
	if paymentsChanged {
		updated.Collected = Collected(domain.PaymentSplit{Cash: updated.Cash, Card: updated.Card, UPI: updated.UPI})
		variance := updated.Collected.Sub(updated.TotalSales).Round(0)
		if !variance.Equal(report.Variance) {
			fieldChanges = append(fieldChanges, domain.FieldChange{Field: FieldVariance, From: report.Variance, To: variance})
		}
		updated.Variance = variance
	} else if changes.Variance != nil {
		// A direct override only stands when the split itself is unchanged.
		override := changes.Variance.Round(0)
		if !override.Equal(report.Variance) {
			fieldChanges = append(fieldChanges, domain.FieldChange{Field: FieldVariance, From: report.Variance, To: override})
			updated.Variance = override
		}
	}

	if len(fieldChanges) == 0 {
		return domain.ShiftReport{}, domain.ShiftAuditEntry{}, &ValidationError{
			Err: ErrNoChanges, PumpID: report.PumpID, Date: report.Date, Shift: report.Shift,
		}
	}

	now = now.UTC()
	updated.Status = domain.ShiftStatusAudited
	updated.UpdatedAt = now

	entry := domain.ShiftAuditEntry{
		ShiftReportID: report.ID,
		Reason:        reason,
		Changes:       fieldChanges,
		ChangedBy:     actor,
		CreatedAt:     now,
	}
	return updated, entry, nil
}
