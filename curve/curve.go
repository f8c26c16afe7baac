// Package curve provides the discount/projection term structure used for
// cap/floor pricing: discount-factor pillars with log-linear interpolation
// on an ACT/365F time axis, plus a flat continuously-compounded curve for
// diagnostics and tests.
package curve

import (
	"math"
	"sort"
	"time"

	"github.com/meenmo/caplib/utils"
)

// Curve time axis uses ACT/365F for interpolation and zero rates,
// matching the discount-curve convention used for the swap curves.
const curveDayCount = "ACT/365F"

type Curve struct {
	settlement time.Time
	flat       bool
	flatRate   float64 // continuously compounded, decimal
	pillars    []time.Time
	dfs        map[time.Time]float64
}

// NewCurveFromDFs creates a curve from explicitly provided discount factors.
// Dates between pillars are log-linearly interpolated; dates beyond the
// boundaries extrapolate the boundary forward rate.
func NewCurveFromDFs(settlement time.Time, dfs map[time.Time]float64) *Curve {
	c := &Curve{
		settlement: settlement,
		dfs:        make(map[time.Time]float64, len(dfs)),
	}
	for t, df := range dfs {
		c.dfs[t] = df
		c.pillars = append(c.pillars, t)
	}
	utils.SortDates(c.pillars)
	return c
}

// NewFlatForward creates a flat curve with a continuously compounded zero
// rate (decimal, e.g. 0.03 == 3%).
func NewFlatForward(settlement time.Time, rate float64) *Curve {
	return &Curve{settlement: settlement, flat: true, flatRate: rate}
}

// Settlement returns the curve anchor date (DF == 1).
func (c *Curve) Settlement() time.Time { return c.settlement }

// DF returns the discount factor for date t.
func (c *Curve) DF(t time.Time) float64 {
	yf := utils.YearFraction(c.settlement, t, curveDayCount)
	if c.flat {
		return math.Exp(-c.flatRate * yf)
	}
	if len(c.pillars) == 0 {
		return 1.0
	}
	if len(c.pillars) == 1 {
		// Single pillar: treat its implied zero rate as flat.
		t1 := utils.YearFraction(c.settlement, c.pillars[0], curveDayCount)
		if t1 == 0 {
			return c.dfs[c.pillars[0]]
		}
		zero := -math.Log(c.dfs[c.pillars[0]]) / t1
		return math.Exp(-zero * yf)
	}
	d1, d2 := c.bracket(t)

	df1 := c.dfs[d1]
	df2 := c.dfs[d2]
	t1 := utils.YearFraction(c.settlement, d1, curveDayCount)
	t2 := utils.YearFraction(c.settlement, d2, curveDayCount)
	if t2 == t1 {
		return df1
	}

	// Log-linear: constant forward between pillars, extrapolated beyond.
	forward := math.Log(df1/df2) / (t2 - t1)
	return df1 * math.Exp(-forward*(yf-t1))
}

// ZeroRateAt returns the continuously compounded zero rate in percent.
func (c *Curve) ZeroRateAt(t time.Time) float64 {
	yf := utils.YearFraction(c.settlement, t, curveDayCount)
	if yf <= 0 {
		return 0
	}
	return -math.Log(c.DF(t)) / yf * 100.0
}

// bracket returns the pillar pair surrounding t, or the boundary pair when
// t is outside the pillar range.
func (c *Curve) bracket(t time.Time) (time.Time, time.Time) {
	n := len(c.pillars)
	i := sort.Search(n, func(i int) bool {
		return !c.pillars[i].Before(t)
	})
	if i <= 0 {
		return c.pillars[0], c.pillars[1]
	}
	if i >= n {
		return c.pillars[n-2], c.pillars[n-1]
	}
	return c.pillars[i-1], c.pillars[i]
}
