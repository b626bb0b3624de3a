package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

var (
	ErrIncompleteReading = errors.New("incomplete close reading")
	ErrReasonRequired    = errors.New("audit reason is required")
	ErrNoChanges         = errors.New("no field changes")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateMissing       = errors.New("fuel rate not configured")

	ErrAlreadySubmitted = errors.New("shift already submitted")
	ErrIncompleteShift  = errors.New("shift has incomplete nozzle readings")
)

// ValidationError reports caller input that must be corrected before the
// shift can move forward.
type ValidationError struct {
	Err      error
	Field    string
	Issue    string
	PumpID   string
	NozzleID string
	Date     string
	Shift    domain.ShiftName
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation: ")
	b.WriteString(e.Err.Error())
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	if e.Issue != "" {
		fmt.Fprintf(&b, " (%s)", e.Issue)
	}
	writeKey(&b, e.PumpID, e.NozzleID, e.Date, e.Shift)
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PreconditionError blocks a write because the shift is not in a state that
// allows it.
type PreconditionError struct {
	Err    error
	PumpID string
	Date   string
	Shift  domain.ShiftName
	Detail string
}

func (e *PreconditionError) Error() string {
	var b strings.Builder
	b.WriteString("precondition: ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	writeKey(&b, e.PumpID, "", e.Date, e.Shift)
	return b.String()
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// DataGapWarning is raised when continuity fell back past the immediately
// preceding shift. It never blocks computation.
type DataGapWarning struct {
	PumpID   string
	NozzleID string
	Date     string
	Shift    domain.ShiftName
	Source   string
	Reading  decimal.Decimal
}

func (w DataGapWarning) String() string {
	return fmt.Sprintf("continuity gap: pump=%s nozzle=%s date=%s shift=%s source=%s reading=%s",
		w.PumpID, w.NozzleID, w.Date, w.Shift, w.Source, w.Reading.String())
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsPrecondition(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}

func writeKey(b *strings.Builder, pumpID, nozzleID, date string, shift domain.ShiftName) {
	if pumpID != "" {
		fmt.Fprintf(b, " pump=%s", pumpID)
	}
	if nozzleID != "" {
		fmt.Fprintf(b, " nozzle=%s", nozzleID)
	}
	if date != "" {
		fmt.Fprintf(b, " date=%s", date)
	}
	if shift != "" {
		fmt.Fprintf(b, " shift=%s", shift)
	}
}
