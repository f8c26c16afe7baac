package capfloor

import (
	"fmt"
	"time"

	"github.com/meenmo/caplib/calendar"
	"github.com/meenmo/caplib/market"
)

// Optionlet is one reset period of a cap/floor: a caplet or floorlet.
type Optionlet struct {
	FixingDate      time.Time
	StartDate       time.Time
	EndDate         time.Time
	PayDate         time.Time
	AccrualFraction float64
}

// CapFloor is a strip of optionlets on an Ibor index at a single strike,
// priced on a unit notional.
type CapFloor struct {
	typ        Type
	strike     float64
	index      *market.IborIndex
	optionlets []Optionlet
	engine     *BlackEngine
}

// MakeCapFloor builds a cap or floor of the given cumulative length.
//
// The schedule starts at the spot date (evalDate + settlementDays business
// days) and steps by the index tenor; dates are Modified Following on the
// index calendar. The first period is dropped: its rate is already fixed
// and carries no optionality.
func MakeCapFloor(typ Type, length market.Period, index *market.IborIndex, strike float64, settlementDays int, evalDate time.Time, engine *BlackEngine) (*CapFloor, error) {
	if index == nil {
		return nil, fmt.Errorf("MakeCapFloor: %w", ErrNilIndex)
	}
	if engine == nil {
		return nil, fmt.Errorf("MakeCapFloor: %w", ErrNilEngine)
	}
	tenor := index.Tenor()
	if length%tenor != 0 {
		return nil, fmt.Errorf("MakeCapFloor: length %s is not a whole number of %s index periods", length, tenor)
	}
	n := int(length / tenor)
	if n < 2 {
		return nil, fmt.Errorf("MakeCapFloor: length %s leaves no optionlet after the fixed first period", length)
	}

	cal := index.FixingCalendar()
	spot := calendar.AddBusinessDays(cal, evalDate, settlementDays)

	// Roll unadjusted dates from spot to avoid month-end drift, then adjust.
	optionlets := make([]Optionlet, 0, n-1)
	for k := 1; k < n; k++ {
		start := calendar.Adjust(cal, market.Period(int(tenor)*k).AddTo(spot))
		end := calendar.Adjust(cal, market.Period(int(tenor)*(k+1)).AddTo(spot))
		fixing := calendar.AddBusinessDays(cal, start, -index.FixingLagDays())
		optionlets = append(optionlets, Optionlet{
			FixingDate:      fixing,
			StartDate:       start,
			EndDate:         end,
			PayDate:         end,
			AccrualFraction: index.DayCount().YearFraction(start, end),
		})
	}

	return &CapFloor{
		typ:        typ,
		strike:     strike,
		index:      index,
		optionlets: optionlets,
		engine:     engine,
	}, nil
}

// Type returns Cap or Floor.
func (c *CapFloor) Type() Type { return c.typ }

// Strike returns the strike rate (decimal).
func (c *CapFloor) Strike() float64 { return c.strike }

// Optionlets returns the reset periods in schedule order.
func (c *CapFloor) Optionlets() []Optionlet { return c.optionlets }

// LastFixingDate returns the fixing date of the final optionlet.
func (c *CapFloor) LastFixingDate() time.Time {
	return c.optionlets[len(c.optionlets)-1].FixingDate
}

// NPV prices the instrument with its attached engine.
func (c *CapFloor) NPV() (float64, error) {
	return c.engine.Value(c)
}

// DiscountCurve exposes the engine's discounting term structure.
func (c *CapFloor) DiscountCurve() DiscountCurve {
	return c.engine.Discount()
}
