// Package volsurface holds the market-quoted cap/floor term volatility
// surface: a grid of flat implied volatilities by option maturity and
// strike, with bilinear interpolation between quotes.
package volsurface

import (
	"fmt"
	"sort"
	"time"

	"github.com/meenmo/caplib/calendar"
	"github.com/meenmo/caplib/market"
	"github.com/meenmo/caplib/observe"
)

// TermVolSurface is an observable cap/floor volatility grid. Rows are
// option tenors, columns strikes, both ascending. Vols and strikes are
// decimals (0.18 == 18%, 0.04 == 4%).
type TermVolSurface struct {
	observe.Observable

	refDate      time.Time
	cal          calendar.CalendarID
	dayCount     market.DayCount
	optionTenors []market.Period
	strikes      []float64
	vols         [][]float64
	times        []float64 // year fraction per tenor row, cached
}

// NewTermVolSurface validates the axes and builds the surface.
func NewTermVolSurface(refDate time.Time, cal calendar.CalendarID, dc market.DayCount, optionTenors []market.Period, strikes []float64, vols [][]float64) (*TermVolSurface, error) {
	if len(optionTenors) == 0 || len(strikes) == 0 {
		return nil, fmt.Errorf("NewTermVolSurface: empty tenor or strike axis")
	}
	for i := 1; i < len(optionTenors); i++ {
		if optionTenors[i] <= optionTenors[i-1] {
			return nil, fmt.Errorf("NewTermVolSurface: option tenors not ascending at %s", optionTenors[i])
		}
	}
	for j := 1; j < len(strikes); j++ {
		if strikes[j] <= strikes[j-1] {
			return nil, fmt.Errorf("NewTermVolSurface: strikes not ascending at %.6g", strikes[j])
		}
	}
	if len(vols) != len(optionTenors) {
		return nil, fmt.Errorf("NewTermVolSurface: %d vol rows for %d tenors", len(vols), len(optionTenors))
	}
	for i, row := range vols {
		if len(row) != len(strikes) {
			return nil, fmt.Errorf("NewTermVolSurface: row %d has %d vols for %d strikes", i, len(row), len(strikes))
		}
	}

	s := &TermVolSurface{
		refDate:      refDate,
		cal:          cal,
		dayCount:     dc,
		optionTenors: optionTenors,
		strikes:      strikes,
		vols:         vols,
	}
	s.times = make([]float64, len(optionTenors))
	for i, p := range optionTenors {
		s.times[i] = dc.YearFraction(refDate, s.TenorDate(p))
	}
	return s, nil
}

// ReferenceDate returns the surface as-of date.
func (s *TermVolSurface) ReferenceDate() time.Time { return s.refDate }

// DayCount returns the convention of the surface time axis.
func (s *TermVolSurface) DayCount() market.DayCount { return s.dayCount }

// Strikes returns the ascending strike axis.
func (s *TermVolSurface) Strikes() []float64 { return s.strikes }

// OptionTenors returns the ascending option maturity axis.
func (s *TermVolSurface) OptionTenors() []market.Period { return s.optionTenors }

// MaxTenor returns the longest quoted option maturity.
func (s *TermVolSurface) MaxTenor() market.Period {
	return s.optionTenors[len(s.optionTenors)-1]
}

// TenorDate maps an option tenor to its calendar date.
func (s *TermVolSurface) TenorDate(p market.Period) time.Time {
	return calendar.AdjustFollowing(s.cal, p.AddTo(s.refDate))
}

// Volatility interpolates the quoted grid bilinearly in (maturity time,
// strike). Outside the grid, extrapolate selects flat extrapolation from
// the boundary; otherwise an out-of-range error is returned.
func (s *TermVolSurface) Volatility(length market.Period, strike float64, extrapolate bool) (float64, error) {
	t := s.dayCount.YearFraction(s.refDate, s.TenorDate(length))

	if !extrapolate {
		if t < s.times[0] || t > s.times[len(s.times)-1] {
			return 0, fmt.Errorf("Volatility: maturity %s outside quoted range [%s, %s]", length, s.optionTenors[0], s.MaxTenor())
		}
		if strike < s.strikes[0] || strike > s.strikes[len(s.strikes)-1] {
			return 0, fmt.Errorf("Volatility: strike %.6g outside quoted range [%.6g, %.6g]", strike, s.strikes[0], s.strikes[len(s.strikes)-1])
		}
	}

	i0, i1, wt := bracketWeight(s.times, t)
	j0, j1, ws := bracketWeight(s.strikes, strike)

	lo := s.vols[i0][j0] + ws*(s.vols[i0][j1]-s.vols[i0][j0])
	hi := s.vols[i1][j0] + ws*(s.vols[i1][j1]-s.vols[i1][j0])
	return lo + wt*(hi-lo), nil
}

// SetVol overwrites the quote at an exact (tenor, strike) node and
// notifies registered observers.
func (s *TermVolSurface) SetVol(tenor market.Period, strike float64, vol float64) error {
	i := tenorIndex(s.optionTenors, tenor)
	if i < 0 {
		return fmt.Errorf("SetVol: tenor %s is not a quoted node", tenor)
	}
	j := sort.SearchFloat64s(s.strikes, strike)
	if j >= len(s.strikes) || s.strikes[j] != strike {
		return fmt.Errorf("SetVol: strike %.6g is not a quoted node", strike)
	}
	s.vols[i][j] = vol
	s.NotifyObservers()
	return nil
}

// Shift bumps every quote by delta (parallel move) and notifies observers.
func (s *TermVolSurface) Shift(delta float64) {
	for i := range s.vols {
		for j := range s.vols[i] {
			s.vols[i][j] += delta
		}
	}
	s.NotifyObservers()
}

func tenorIndex(tenors []market.Period, p market.Period) int {
	for i, t := range tenors {
		if t == p {
			return i
		}
	}
	return -1
}

// bracketWeight locates x on an ascending axis and returns the bracketing
// indexes with the linear weight of the upper node. Outside the axis the
// boundary node is returned with weight pinned (flat extrapolation).
func bracketWeight(axis []float64, x float64) (int, int, float64) {
	n := len(axis)
	if n == 1 || x <= axis[0] {
		return 0, 0, 0
	}
	if x >= axis[n-1] {
		return n - 1, n - 1, 0
	}
	i := sort.SearchFloat64s(axis, x)
	if axis[i] == x {
		return i, i, 0
	}
	w := (x - axis[i-1]) / (axis[i] - axis[i-1])
	return i - 1, i, w
}
