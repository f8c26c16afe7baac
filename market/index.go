package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/meenmo/caplib/calendar"
	"github.com/meenmo/caplib/observe"
)

var (
	// ErrNilCurve is returned when a required curve argument is nil.
	ErrNilCurve = errors.New("nil curve")
)

// ReferenceIndex enumerates supported floating benchmarks.
type ReferenceIndex string

const (
	EURIBOR3M ReferenceIndex = "EURIBOR3M"
	EURIBOR6M ReferenceIndex = "EURIBOR6M"
	TIBOR3M   ReferenceIndex = "TIBOR3M"
	TIBOR6M   ReferenceIndex = "TIBOR6M"
)

// ProjectionCurve provides discount factors used to infer forward rates.
type ProjectionCurve interface {
	DF(t time.Time) float64
}

// IborIndex is a term fixing benchmark (e.g., EURIBOR6M): a tenor, a
// fixing calendar and lag, a day count, and a projection curve used to
// forecast unfixed rates. Dependents register for curve changes.
type IborIndex struct {
	observe.Observable

	name          ReferenceIndex
	tenor         Period
	fixingLagDays int
	cal           calendar.CalendarID
	dayCount      DayCount
	forwards      ProjectionCurve
}

// NewIborIndex constructs an index. The forward curve may be nil and set later.
func NewIborIndex(name ReferenceIndex, tenor Period, fixingLagDays int, cal calendar.CalendarID, dc DayCount, forwards ProjectionCurve) (*IborIndex, error) {
	if tenor <= 0 {
		return nil, fmt.Errorf("NewIborIndex: non-positive tenor %s", tenor)
	}
	if fixingLagDays < 0 {
		return nil, fmt.Errorf("NewIborIndex: negative fixing lag %d", fixingLagDays)
	}
	return &IborIndex{
		name:          name,
		tenor:         tenor,
		fixingLagDays: fixingLagDays,
		cal:           cal,
		dayCount:      dc,
		forwards:      forwards,
	}, nil
}

// Name returns the benchmark identifier.
func (ix *IborIndex) Name() ReferenceIndex { return ix.name }

// Tenor returns the index tenor.
func (ix *IborIndex) Tenor() Period { return ix.tenor }

// FixingCalendar returns the calendar used for fixing and value dates.
func (ix *IborIndex) FixingCalendar() calendar.CalendarID { return ix.cal }

// FixingLagDays returns the business-day lag from fixing to value date.
func (ix *IborIndex) FixingLagDays() int { return ix.fixingLagDays }

// DayCount returns the accrual convention of the underlying deposit.
func (ix *IborIndex) DayCount() DayCount { return ix.dayCount }

// ValueDate returns the deposit start date for a fixing date.
func (ix *IborIndex) ValueDate(fixing time.Time) time.Time {
	return calendar.AddBusinessDays(ix.cal, fixing, ix.fixingLagDays)
}

// MaturityDate returns the deposit end date for a value date.
func (ix *IborIndex) MaturityDate(value time.Time) time.Time {
	return calendar.Adjust(ix.cal, ix.tenor.AddTo(value))
}

// ForecastFixing infers the fixing for a future date as the simple forward
// rate over the deposit period implied by the projection curve.
//
// Rate is returned as a decimal (e.g., 0.025 == 2.5%).
func (ix *IborIndex) ForecastFixing(fixing time.Time) (float64, error) {
	if ix.forwards == nil {
		return 0, fmt.Errorf("ForecastFixing(%s): %w", ix.name, ErrNilCurve)
	}
	start := ix.ValueDate(fixing)
	end := ix.MaturityDate(start)
	alpha := ix.dayCount.YearFraction(start, end)
	if alpha == 0 {
		return 0, nil
	}
	dfStart := ix.forwards.DF(start)
	dfEnd := ix.forwards.DF(end)
	return (dfStart/dfEnd - 1.0) / alpha, nil
}

// SetForwardCurve replaces the projection curve and notifies dependents.
func (ix *IborIndex) SetForwardCurve(c ProjectionCurve) {
	ix.forwards = c
	ix.NotifyObservers()
}
