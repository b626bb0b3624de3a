package reconcile

import (
	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

const (
	SourcePreviousShift = "previous_shift"
	SourceEarlierShift  = "earlier_shift"
	SourceSeed          = "seed"
)

// Resolution is the authoritative opening reading of a nozzle for one slot
// and where it came from.
type Resolution struct {
	Reading decimal.Decimal
	Source  string
	From    *Slot
}

// Gap reports whether the immediately preceding shift was missing.
func (r Resolution) Gap() bool {
	return r.Source != SourcePreviousShift
}

// ResolveOpenReading walks the submitted history of a nozzle backwards from
// (date, shift). It prefers the immediately preceding slot, then the most
// recent earlier submitted slot, then the nozzle's current (seed) reading.
// Records for other nozzles or for the same or later slots are ignored.
func ResolveOpenReading(nozzle domain.Nozzle, history []domain.NozzleReading, date string, shift domain.ShiftName) Resolution {
	target := Slot{Date: date, Shift: shift}
	prev, prevErr := PreviousSlot(date, shift)

	var latest *domain.NozzleReading
	var latestSlot Slot
	for i := range history {
		rec := &history[i]
		if rec.PumpID != nozzle.PumpID || rec.NozzleID != nozzle.NozzleID {
			continue
		}
		if rec.Status != domain.ReadingStatusSubmitted {
			continue
		}
		slot := Slot{Date: rec.Date, Shift: rec.Shift}
		if prevErr == nil && slot == prev {
			from := slot
			return Resolution{Reading: rec.CloseReading, Source: SourcePreviousShift, From: &from}
		}
		if !slot.Before(target) {
			continue
		}
		if latest == nil || latestSlot.Before(slot) {
			latest = rec
			latestSlot = slot
		}
	}

	if latest != nil {
		from := latestSlot
		return Resolution{Reading: latest.CloseReading, Source: SourceEarlierShift, From: &from}
	}
	return Resolution{Reading: nozzle.CurrentReading, Source: SourceSeed}
}

// GapWarning builds the non-fatal warning for a fallback resolution.
func GapWarning(nozzle domain.Nozzle, date string, shift domain.ShiftName, res Resolution) (DataGapWarning, bool) {
	if !res.Gap() {
		return DataGapWarning{}, false
	}
	return DataGapWarning{
		PumpID:   nozzle.PumpID,
		NozzleID: nozzle.NozzleID,
		Date:     date,
		Shift:    shift,
		Source:   res.Source,
		Reading:  res.Reading,
	}, true
}
