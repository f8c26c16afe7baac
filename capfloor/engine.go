package capfloor

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/caplib/black"
	"github.com/meenmo/caplib/market"
)

// DiscountCurve provides discount factors for settlement of optionlet payoffs.
type DiscountCurve interface {
	DF(t time.Time) float64
}

// BlackEngine values a cap/floor under Black-76 with a single flat
// volatility. One engine is built per quoted volatility; the stripper
// attaches a fresh engine to every (maturity, strike) cell.
type BlackEngine struct {
	refDate  time.Time
	vol      float64
	dayCount market.DayCount
	discount DiscountCurve
}

// NewBlackEngine constructs an engine from a flat volatility and day counter.
func NewBlackEngine(refDate time.Time, vol float64, dc market.DayCount, discount DiscountCurve) (*BlackEngine, error) {
	if discount == nil {
		return nil, fmt.Errorf("NewBlackEngine: %w", ErrNilCurve)
	}
	if vol < 0 {
		return nil, fmt.Errorf("NewBlackEngine: negative volatility %.6g", vol)
	}
	return &BlackEngine{refDate: refDate, vol: vol, dayCount: dc, discount: discount}, nil
}

// Volatility returns the engine's flat volatility.
func (e *BlackEngine) Volatility() float64 { return e.vol }

// Discount returns the discounting term structure.
func (e *BlackEngine) Discount() DiscountCurve { return e.discount }

// Value sums the Black-76 value of every live optionlet:
//
//	accrual * DF(pay) * black(type, K, forward, vol*sqrt(tFixing))
//
// Optionlets fixing on or before the engine reference date are skipped.
func (e *BlackEngine) Value(c *CapFloor) (float64, error) {
	optType := c.typ.OptionType()
	total := 0.0
	for _, o := range c.optionlets {
		if !o.FixingDate.After(e.refDate) {
			continue
		}
		fwd, err := c.index.ForecastFixing(o.FixingDate)
		if err != nil {
			return 0, fmt.Errorf("BlackEngine.Value: fixing %s: %w", o.FixingDate.Format("2006-01-02"), err)
		}
		tFix := e.dayCount.YearFraction(e.refDate, o.FixingDate)
		stdDev := e.vol * math.Sqrt(tFix)
		df := e.discount.DF(o.PayDate)
		total += o.AccrualFraction * black.Price(optType, c.strike, fwd, stdDev, df)
	}
	return total, nil
}
