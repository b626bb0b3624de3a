package reconcile

import (
	"fmt"
	"strings"
	"time"

	"fuelos/backend/internal/domain"
)

const DateLayout = "2006-01-02"

// Shift boundaries in hours of the local day.
const (
	morningStartHour   = 6
	afternoonStartHour = 14
	nightStartHour     = 22
)

// Slot identifies one shift of one business date.
type Slot struct {
	Date  string
	Shift domain.ShiftName
}

// Before orders slots by date, then by shift index.
func (s Slot) Before(other Slot) bool {
	if s.Date != other.Date {
		return s.Date < other.Date
	}
	return ShiftIndex(s.Shift) < ShiftIndex(other.Shift)
}

func (s Slot) String() string {
	return s.Date + "/" + string(s.Shift)
}

func ParseShift(raw string) (domain.ShiftName, error) {
	trimmed := strings.TrimSpace(raw)
	for _, name := range domain.ShiftNames {
		if strings.EqualFold(trimmed, string(name)) {
			return name, nil
		}
	}
	return "", &ValidationError{Err: ErrInvalidInput, Field: "shift", Issue: fmt.Sprintf("unknown shift %q", raw)}
}

// ShiftIndex returns 0, 1 or 2 for a known shift and -1 otherwise.
func ShiftIndex(shift domain.ShiftName) int {
	for i, name := range domain.ShiftNames {
		if name == shift {
			return i
		}
	}
	return -1
}

func ShiftByIndex(idx int) (domain.ShiftName, bool) {
	if idx < 0 || idx >= len(domain.ShiftNames) {
		return "", false
	}
	return domain.ShiftNames[idx], true
}

func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, &ValidationError{Err: ErrInvalidInput, Field: "date", Issue: fmt.Sprintf("date %q is not YYYY-MM-DD", raw)}
	}
	return t, nil
}

// PreviousSlot returns the shift immediately before (date, shift). Morning
// rolls back to Night of the previous calendar date.
func PreviousSlot(date string, shift domain.ShiftName) (Slot, error) {
	day, err := ParseDate(date)
	if err != nil {
		return Slot{}, err
	}
	idx := ShiftIndex(shift)
	if idx < 0 {
		return Slot{}, &ValidationError{Err: ErrInvalidInput, Field: "shift", Issue: fmt.Sprintf("unknown shift %q", shift)}
	}
	if idx == 0 {
		return Slot{Date: day.AddDate(0, 0, -1).Format(DateLayout), Shift: domain.ShiftNames[len(domain.ShiftNames)-1]}, nil
	}
	return Slot{Date: date, Shift: domain.ShiftNames[idx-1]}, nil
}

// CurrentShiftFor maps a wall-clock time to its shift. The caller supplies
// the time, already in the station's timezone.
func CurrentShiftFor(t time.Time) domain.ShiftName {
	hour := t.Hour()
	switch {
	case hour >= morningStartHour && hour < afternoonStartHour:
		return domain.ShiftMorning
	case hour >= afternoonStartHour && hour < nightStartHour:
		return domain.ShiftAfternoon
	default:
		return domain.ShiftNight
	}
}

// BusinessDateFor returns the date a shift running at t is booked under.
// Night crosses midnight, so 00:00-05:59 belongs to the previous date.
func BusinessDateFor(t time.Time) string {
	if t.Hour() < morningStartHour {
		return t.AddDate(0, 0, -1).Format(DateLayout)
	}
	return t.Format(DateLayout)
}
