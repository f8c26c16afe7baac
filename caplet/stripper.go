// Package caplet strips forward-starting optionlet (caplet/floorlet)
// volatilities out of a cap/floor term volatility surface.
//
// Cumulative caps/floors of increasing maturity are priced at each quoted
// strike; differencing adjacent maturities isolates the price of the last
// reset period, which is then inverted through Black-76 into an optionlet
// volatility. Out-of-the-money instruments are used on each side of a
// per-period switch strike to keep the inversion well conditioned.
package caplet

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/meenmo/caplib/black"
	"github.com/meenmo/caplib/capfloor"
	"github.com/meenmo/caplib/market"
	"github.com/meenmo/caplib/observe"
)

var (
	// ErrSurfaceTooShort means the surface cannot support even one optionlet.
	ErrSurfaceTooShort = errors.New("cap/floor term vol surface too short for the index tenor")
	// ErrSwitchStrikeCount means the supplied switch strikes do not match the tenor grid.
	ErrSwitchStrikeCount = errors.New("switch strike count does not match optionlet tenor count")
	// ErrNilCollaborator means a required constructor argument was nil.
	ErrNilCollaborator = errors.New("nil collaborator")
)

const (
	// defaultSwitchStrike separates OTM floors from OTM caps when the
	// caller supplies no switch strikes.
	defaultSwitchStrike = 0.04
	// firstStdDevGuess seeds the warm-start matrix before the first pass.
	firstStdDevGuess = 0.14

	// Probe instrument settings used only to derive schedule dates.
	probeVol    = 0.20
	probeStrike = 0.04

	settlementDays = 0
)

// VolSurface is the quoted cap/floor volatility surface consumed by the
// stripper.
type VolSurface interface {
	ReferenceDate() time.Time
	DayCount() market.DayCount
	Strikes() []float64
	OptionTenors() []market.Period
	MaxTenor() market.Period
	Volatility(length market.Period, strike float64, extrapolate bool) (float64, error)
	RegisterObserver(obs observe.Observer)
}

// DiscountCurve provides discount factors for optionlet annuities.
type DiscountCurve interface {
	DF(t time.Time) float64
}

// OptionletStripper owns the tenor/strike grid and every derived matrix.
// Grids are recomputed lazily: surface, index, or evaluation-date changes
// mark the stripper stale, and the next accessor runs the full pass.
//
// The standard-deviation matrix doubles as a warm-start cache: each cell
// is seeded once and only overwritten by a successful inversion, so
// recomputations start from the previous solution.
type OptionletStripper struct {
	mu    sync.Mutex
	dirty bool

	surface  VolSurface
	index    *market.IborIndex
	evalDate *market.EvaluationDate
	discount DiscountCurve

	optionletTenors []market.Period
	capfloorLengths []market.Period
	switchStrikes   []float64
	strikes         []float64

	capfloorPrices  [][]float64
	optionletPrices [][]float64
	capfloorVols    [][]float64
	optionletVols   [][]float64
	optionletStDevs [][]float64
	capfloors       [][]*capfloor.CapFloor

	optionletDates    []time.Time
	optionletTimes    []float64
	optionletAccruals []float64
	atmOptionletRates []float64
}

// NewOptionletStripper wires the stripper to its market collaborators and
// derives the optionlet tenor ladder.
//
// switchStrikes follows the broadcast rule: one value applies to every
// period, an empty slice defaults every period to 4%, and anything else
// must supply exactly one strike per optionlet period.
func NewOptionletStripper(surface VolSurface, index *market.IborIndex, evalDate *market.EvaluationDate, discount DiscountCurve, switchStrikes []float64) (*OptionletStripper, error) {
	if surface == nil || index == nil || evalDate == nil || discount == nil {
		return nil, fmt.Errorf("NewOptionletStripper: %w", ErrNilCollaborator)
	}

	tenor := index.Tenor()
	maxTenor := surface.MaxTenor()

	optionletTenors := []market.Period{tenor}
	capfloorLengths := []market.Period{tenor + tenor}
	if capfloorLengths[0] > maxTenor {
		return nil, fmt.Errorf("NewOptionletStripper: %w (max maturity %s, need %s)",
			ErrSurfaceTooShort, maxTenor, capfloorLengths[0])
	}
	for capfloorLengths[len(capfloorLengths)-1]+tenor <= maxTenor {
		optionletTenors = append(optionletTenors, optionletTenors[len(optionletTenors)-1]+tenor)
		capfloorLengths = append(capfloorLengths, optionletTenors[len(optionletTenors)-1]+tenor)
	}
	n := len(optionletTenors)

	switch len(switchStrikes) {
	case 0:
		switchStrikes = uniform(n, defaultSwitchStrike)
	case 1:
		switchStrikes = uniform(n, switchStrikes[0])
	case n:
		// one per period, as supplied
	default:
		return nil, fmt.Errorf("NewOptionletStripper: %w (%d strikes for %d periods)",
			ErrSwitchStrikeCount, len(switchStrikes), n)
	}

	m := len(surface.Strikes())
	s := &OptionletStripper{
		dirty:             true,
		surface:           surface,
		index:             index,
		evalDate:          evalDate,
		discount:          discount,
		optionletTenors:   optionletTenors,
		capfloorLengths:   capfloorLengths,
		switchStrikes:     switchStrikes,
		strikes:           surface.Strikes(),
		capfloorPrices:    newMatrix(n, m, 0),
		optionletPrices:   newMatrix(n, m, 0),
		capfloorVols:      newMatrix(n, m, 0),
		optionletVols:     newMatrix(n, m, 0),
		optionletStDevs:   newMatrix(n, m, firstStdDevGuess),
		capfloors:         make([][]*capfloor.CapFloor, n),
		optionletDates:    make([]time.Time, n),
		optionletTimes:    make([]float64, n),
		optionletAccruals: make([]float64, n),
		atmOptionletRates: make([]float64, n),
	}
	for i := range s.capfloors {
		s.capfloors[i] = make([]*capfloor.CapFloor, m)
	}

	surface.RegisterObserver(s)
	index.RegisterObserver(s)
	evalDate.RegisterObserver(s)
	return s, nil
}

// Update marks the stripper stale; the next accessor recomputes.
func (s *OptionletStripper) Update() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// ensureCalculated runs the full stripping pass if stale. The mutex
// serializes concurrent triggers: duplicates wait for the in-flight pass
// and find the grid fresh.
func (s *OptionletStripper) ensureCalculated() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := s.calculate(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// calculate is the single non-interruptible recomputation pass. On failure
// the grids keep whatever the pass wrote so far and stay stale; no partial
// result is published as valid.
func (s *OptionletStripper) calculate() error {
	refDate := s.surface.ReferenceDate()
	dc := s.surface.DayCount()
	evalDate := s.evalDate.Date()

	// Per-period ladder scalars, read off a probe cap per maturity. The
	// probe's vol and strike are irrelevant: only its schedule is used.
	for i := range s.optionletTenors {
		engine, err := capfloor.NewBlackEngine(evalDate, probeVol, dc, s.discount)
		if err != nil {
			return fmt.Errorf("caplet: probe engine: %w", err)
		}
		probe, err := capfloor.MakeCapFloor(capfloor.Cap, s.capfloorLengths[i], s.index, probeStrike, settlementDays, evalDate, engine)
		if err != nil {
			return fmt.Errorf("caplet: probe cap %s: %w", s.capfloorLengths[i], err)
		}
		last := probe.Optionlets()[len(probe.Optionlets())-1]
		s.optionletDates[i] = probe.LastFixingDate()
		s.optionletAccruals[i] = last.AccrualFraction
		s.optionletTimes[i] = dc.YearFraction(refDate, s.optionletDates[i])
		atm, err := s.index.ForecastFixing(s.optionletDates[i])
		if err != nil {
			return fmt.Errorf("caplet: atm rate for %s: %w", s.optionletTenors[i], err)
		}
		s.atmOptionletRates[i] = atm
	}

	// Outer loop over strikes so each column carries its running
	// previous-maturity price for the differencing step.
	for j, strike := range s.strikes {
		previousPrice := 0.0
		for i := range s.optionletTenors {
			// Out-of-the-money side: floors below the switch strike, caps above.
			cfType := capfloor.Cap
			if strike < s.switchStrikes[i] {
				cfType = capfloor.Floor
			}
			optType := cfType.OptionType()

			vol, err := s.surface.Volatility(s.capfloorLengths[i], strike, true)
			if err != nil {
				return fmt.Errorf("caplet: surface vol (%s, %.4f): %w", s.capfloorLengths[i], strike, err)
			}
			engine, err := capfloor.NewBlackEngine(evalDate, vol, dc, s.discount)
			if err != nil {
				return fmt.Errorf("caplet: engine (%s, %.4f): %w", s.capfloorLengths[i], strike, err)
			}
			instrument, err := capfloor.MakeCapFloor(cfType, s.capfloorLengths[i], s.index, strike, settlementDays, evalDate, engine)
			if err != nil {
				return fmt.Errorf("caplet: %s (%s, %.4f): %w", cfType, s.capfloorLengths[i], strike, err)
			}
			npv, err := instrument.NPV()
			if err != nil {
				return fmt.Errorf("caplet: %s (%s, %.4f): %w", cfType, s.capfloorLengths[i], strike, err)
			}

			s.capfloorVols[i][j] = vol
			s.capfloors[i][j] = instrument
			s.capfloorPrices[i][j] = npv
			s.optionletPrices[i][j] = npv - previousPrice
			previousPrice = npv

			annuity := s.optionletAccruals[i] * instrument.DiscountCurve().DF(s.optionletDates[i])
			stdDev, err := black.ImpliedStdDev(optType, strike, s.atmOptionletRates[i],
				s.optionletPrices[i][j], annuity, s.optionletStDevs[i][j])
			if err != nil {
				return fmt.Errorf("caplet: could not bootstrap the optionlet"+
					" (date %s, type %s, strike %.4f, atm %.4f, price %.8g, annuity %.8g): %w",
					s.optionletDates[i].Format("2006-01-02"), optType, strike,
					s.atmOptionletRates[i], s.optionletPrices[i][j], annuity, err)
			}
			s.optionletStDevs[i][j] = stdDev
			s.optionletVols[i][j] = stdDev / math.Sqrt(s.optionletTimes[i])
		}
	}
	return nil
}

// Surface returns the underlying vol surface handle.
func (s *OptionletStripper) Surface() VolSurface { return s.surface }

// Strikes delegates to the surface's strike axis.
func (s *OptionletStripper) Strikes() []float64 { return s.surface.Strikes() }

// OptionletTenors returns the forward reset periods, one per optionlet.
func (s *OptionletStripper) OptionletTenors() []market.Period { return s.optionletTenors }

// CapFloorLengths returns the cumulative cap/floor maturities, one per period.
func (s *OptionletStripper) CapFloorLengths() []market.Period { return s.capfloorLengths }

// SwitchStrikes returns the per-period OTM switch thresholds, post-normalization.
func (s *OptionletStripper) SwitchStrikes() []float64 { return s.switchStrikes }

// OptionletVolatilities returns the stripped optionlet vol grid.
func (s *OptionletStripper) OptionletVolatilities() ([][]float64, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.optionletVols, nil
}

// OptionletStdDevs returns the Black-76 standard deviation grid.
func (s *OptionletStripper) OptionletStdDevs() ([][]float64, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.optionletStDevs, nil
}

// OptionletPrices returns the per-period optionlet price grid.
func (s *OptionletStripper) OptionletPrices() ([][]float64, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.optionletPrices, nil
}

// CapFloorPrices returns the cumulative cap/floor price grid.
func (s *OptionletStripper) CapFloorPrices() ([][]float64, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.capfloorPrices, nil
}

// CapFloorVolatilities returns the market vols read off the surface.
func (s *OptionletStripper) CapFloorVolatilities() ([][]float64, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.capfloorVols, nil
}

// Instruments returns the priced cap/floor handle per (period, strike) cell.
func (s *OptionletStripper) Instruments() ([][]*capfloor.CapFloor, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.capfloors, nil
}

// OptionletDates returns the last fixing date per cumulative instrument.
func (s *OptionletStripper) OptionletDates() ([]time.Time, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.optionletDates, nil
}

// OptionletTimes returns the year fraction from the surface reference date
// to each optionlet date.
func (s *OptionletStripper) OptionletTimes() ([]float64, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.optionletTimes, nil
}

// OptionletAccruals returns the accrual fraction of each stripped period.
func (s *OptionletStripper) OptionletAccruals() ([]float64, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.optionletAccruals, nil
}

// AtmOptionletRates returns the forecast index fixing per optionlet date.
func (s *OptionletStripper) AtmOptionletRates() ([]float64, error) {
	if err := s.ensureCalculated(); err != nil {
		return nil, err
	}
	return s.atmOptionletRates, nil
}

func uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newMatrix(rows, cols int, fill float64) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		if fill != 0 {
			for j := range m[i] {
				m[i][j] = fill
			}
		}
	}
	return m
}
