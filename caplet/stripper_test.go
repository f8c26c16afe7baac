package caplet_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/meenmo/caplib/calendar"
	"github.com/meenmo/caplib/capfloor"
	"github.com/meenmo/caplib/caplet"
	"github.com/meenmo/caplib/curve"
	"github.com/meenmo/caplib/market"
	"github.com/meenmo/caplib/volsurface"
)

var asOf = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

// countingSurface wraps a term vol surface and counts Volatility lookups,
// to observe whether an accessor triggered a stripping pass.
type countingSurface struct {
	*volsurface.TermVolSurface
	calls int
}

func (c *countingSurface) Volatility(length market.Period, strike float64, extrapolate bool) (float64, error) {
	c.calls++
	return c.TermVolSurface.Volatility(length, strike, extrapolate)
}

type fixture struct {
	surface  *countingSurface
	index    *market.IborIndex
	evalDate *market.EvaluationDate
	curve    *curve.Curve
}

func newFixture(t *testing.T, tenors []market.Period, strikes []float64, flatVol float64) fixture {
	t.Helper()

	vols := make([][]float64, len(tenors))
	for i := range vols {
		vols[i] = make([]float64, len(strikes))
		for j := range vols[i] {
			vols[i][j] = flatVol
		}
	}
	surface, err := volsurface.NewTermVolSurface(asOf, calendar.TARGET, market.Act365F, tenors, strikes, vols)
	if err != nil {
		t.Fatalf("NewTermVolSurface error: %v", err)
	}
	disc := curve.NewFlatForward(asOf, 0.03)
	ix, err := market.NewIborIndex(market.EURIBOR6M, 6, 0, calendar.TARGET, market.Act360, disc)
	if err != nil {
		t.Fatalf("NewIborIndex error: %v", err)
	}
	return fixture{
		surface:  &countingSurface{TermVolSurface: surface},
		index:    ix,
		evalDate: market.NewEvaluationDate(asOf),
		curve:    disc,
	}
}

func TestTenorLadder(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []market.Period{6, 12, 18, 24}, []float64{0.03, 0.04}, 0.18)
	disc := curve.NewFlatForward(asOf, 0.03)
	ix, err := market.NewIborIndex(market.EURIBOR3M, 3, 0, calendar.TARGET, market.Act360, disc)
	if err != nil {
		t.Fatalf("NewIborIndex error: %v", err)
	}
	s, err := caplet.NewOptionletStripper(fx.surface, ix, fx.evalDate, disc, nil)
	if err != nil {
		t.Fatalf("NewOptionletStripper error: %v", err)
	}

	wantTenors := []market.Period{3, 6, 9, 12, 15, 18, 21}
	wantLengths := []market.Period{6, 9, 12, 15, 18, 21, 24}
	gotTenors := s.OptionletTenors()
	gotLengths := s.CapFloorLengths()
	if len(gotTenors) != len(wantTenors) || len(gotLengths) != len(wantLengths) {
		t.Fatalf("ladder size: got %d tenors %d lengths, want %d", len(gotTenors), len(gotLengths), len(wantTenors))
	}
	for i := range wantTenors {
		if gotTenors[i] != wantTenors[i] {
			t.Fatalf("optionlet tenor %d: got %s want %s", i, gotTenors[i], wantTenors[i])
		}
		if gotLengths[i] != wantLengths[i] {
			t.Fatalf("capfloor length %d: got %s want %s", i, gotLengths[i], wantLengths[i])
		}
	}
}

func TestSurfaceTooShort(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []market.Period{9}, []float64{0.03, 0.04}, 0.18)
	_, err := caplet.NewOptionletStripper(fx.surface, fx.index, fx.evalDate, fx.curve, nil)
	if !errors.Is(err, caplet.ErrSurfaceTooShort) {
		t.Fatalf("expected ErrSurfaceTooShort, got %v", err)
	}
}

func TestSwitchStrikes(t *testing.T) {
	t.Parallel()

	tenors := []market.Period{12, 18, 24, 30, 36}
	strikes := []float64{0.02, 0.03, 0.04, 0.05, 0.06}

	fx := newFixture(t, tenors, strikes, 0.18)
	s, err := caplet.NewOptionletStripper(fx.surface, fx.index, fx.evalDate, fx.curve, nil)
	if err != nil {
		t.Fatalf("NewOptionletStripper(nil switch) error: %v", err)
	}
	for i, k := range s.SwitchStrikes() {
		if k != 0.04 {
			t.Fatalf("default switch strike %d: got %.4f want 0.04", i, k)
		}
	}

	fx = newFixture(t, tenors, strikes, 0.18)
	s, err = caplet.NewOptionletStripper(fx.surface, fx.index, fx.evalDate, fx.curve, []float64{0.035})
	if err != nil {
		t.Fatalf("NewOptionletStripper(single switch) error: %v", err)
	}
	if got := s.SwitchStrikes(); len(got) != 5 {
		t.Fatalf("broadcast switch strikes: got %d want 5", len(got))
	} else {
		for i, k := range got {
			if k != 0.035 {
				t.Fatalf("broadcast switch strike %d: got %.4f want 0.035", i, k)
			}
		}
	}

	fx = newFixture(t, tenors, strikes, 0.18)
	_, err = caplet.NewOptionletStripper(fx.surface, fx.index, fx.evalDate, fx.curve, []float64{0.03, 0.04})
	if !errors.Is(err, caplet.ErrSwitchStrikeCount) {
		t.Fatalf("expected ErrSwitchStrikeCount, got %v", err)
	}
}

func TestStripFlatSurface(t *testing.T) {
	t.Parallel()

	const flatVol = 0.18
	tenors := []market.Period{12, 18, 24, 30, 36}
	strikes := []float64{0.02, 0.03, 0.04, 0.05, 0.06}
	fx := newFixture(t, tenors, strikes, flatVol)

	s, err := caplet.NewOptionletStripper(fx.surface, fx.index, fx.evalDate, fx.curve, nil)
	if err != nil {
		t.Fatalf("NewOptionletStripper error: %v", err)
	}

	vols, err := s.OptionletVolatilities()
	if err != nil {
		t.Fatalf("OptionletVolatilities error: %v", err)
	}
	stdevs, err := s.OptionletStdDevs()
	if err != nil {
		t.Fatalf("OptionletStdDevs error: %v", err)
	}
	times, err := s.OptionletTimes()
	if err != nil {
		t.Fatalf("OptionletTimes error: %v", err)
	}
	optPrices, err := s.OptionletPrices()
	if err != nil {
		t.Fatalf("OptionletPrices error: %v", err)
	}
	cfPrices, err := s.CapFloorPrices()
	if err != nil {
		t.Fatalf("CapFloorPrices error: %v", err)
	}
	atm, err := s.AtmOptionletRates()
	if err != nil {
		t.Fatalf("AtmOptionletRates error: %v", err)
	}

	n, m := len(tenors), len(strikes)
	for j := 0; j < m; j++ {
		// Differencing must reassemble the cumulative prices exactly.
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += optPrices[i][j]
			if math.Abs(sum-cfPrices[i][j]) > 1e-12 {
				t.Fatalf("price recomposition (%d,%d): sum %.15g vs capfloor %.15g", i, j, sum, cfPrices[i][j])
			}
		}
		for i := 0; i < n; i++ {
			if want := stdevs[i][j] / math.Sqrt(times[i]); math.Abs(vols[i][j]-want) > 1e-15 {
				t.Fatalf("vol/stdev mismatch (%d,%d): %.15g vs %.15g", i, j, vols[i][j], want)
			}
			// A flat quoted surface should strip back to near the quote.
			if math.Abs(vols[i][j]-flatVol) > 0.01 {
				t.Fatalf("stripped vol (%d,%d) = %.6f, too far from %.2f", i, j, vols[i][j], flatVol)
			}
		}
	}
	for i, r := range atm {
		if math.Abs(r-0.0302) > 0.002 {
			t.Fatalf("atm rate %d = %.6f, expected near 3%% flat-curve forward", i, r)
		}
	}
}

func TestStripSideSelection(t *testing.T) {
	t.Parallel()

	tenors := []market.Period{12, 18, 24}
	strikes := []float64{0.02, 0.03, 0.06}
	fx := newFixture(t, tenors, strikes, 0.18)

	s, err := caplet.NewOptionletStripper(fx.surface, fx.index, fx.evalDate, fx.curve, []float64{0.05})
	if err != nil {
		t.Fatalf("NewOptionletStripper error: %v", err)
	}
	instruments, err := s.Instruments()
	if err != nil {
		t.Fatalf("Instruments error: %v", err)
	}

	wantTypes := []capfloor.Type{capfloor.Floor, capfloor.Floor, capfloor.Cap}
	for i := range instruments {
		for j, want := range wantTypes {
			if got := instruments[i][j].Type(); got != want {
				t.Fatalf("instrument (%d,%d): got %s want %s", i, j, got, want)
			}
			if got := instruments[i][j].Strike(); got != strikes[j] {
				t.Fatalf("instrument (%d,%d): strike %.4f want %.4f", i, j, got, strikes[j])
			}
		}
	}

	// A cell price must match an independently built instrument.
	cfPrices, err := s.CapFloorPrices()
	if err != nil {
		t.Fatalf("CapFloorPrices error: %v", err)
	}
	cfVols, err := s.CapFloorVolatilities()
	if err != nil {
		t.Fatalf("CapFloorVolatilities error: %v", err)
	}
	engine, err := capfloor.NewBlackEngine(asOf, cfVols[1][2], market.Act365F, fx.curve)
	if err != nil {
		t.Fatalf("NewBlackEngine error: %v", err)
	}
	check, err := capfloor.MakeCapFloor(capfloor.Cap, 18, fx.index, 0.06, 0, asOf, engine)
	if err != nil {
		t.Fatalf("MakeCapFloor error: %v", err)
	}
	npv, err := check.NPV()
	if err != nil {
		t.Fatalf("NPV error: %v", err)
	}
	if math.Abs(npv-cfPrices[1][2]) > 1e-15 {
		t.Fatalf("cell price mismatch: got %.15g want %.15g", cfPrices[1][2], npv)
	}
}

func TestStripInversionFailure(t *testing.T) {
	t.Parallel()

	// With the switch at 6%, the 5% column strips floors that are well in
	// the money near expiry; their extrinsic value is below the Black-76
	// lower bound and the inversion must fail with cell diagnostics.
	fx := newFixture(t, []market.Period{12, 18, 24}, []float64{0.05}, 0.18)
	s, err := caplet.NewOptionletStripper(fx.surface, fx.index, fx.evalDate, fx.curve, []float64{0.06})
	if err != nil {
		t.Fatalf("NewOptionletStripper error: %v", err)
	}
	_, err = s.OptionletVolatilities()
	if err == nil {
		t.Fatalf("expected stripping failure for deep ITM column")
	}
	if !strings.Contains(err.Error(), "could not bootstrap the optionlet") {
		t.Fatalf("error lacks cell diagnostics: %v", err)
	}

	// Failure leaves the stripper stale: accessors keep failing.
	if _, err := s.OptionletPrices(); err == nil {
		t.Fatalf("expected repeated failure while the grid is stale")
	}
}

func TestLazyRecalculation(t *testing.T) {
	t.Parallel()

	tenors := []market.Period{12, 18, 24}
	strikes := []float64{0.02, 0.03, 0.04}
	fx := newFixture(t, tenors, strikes, 0.18)

	s, err := caplet.NewOptionletStripper(fx.surface, fx.index, fx.evalDate, fx.curve, nil)
	if err != nil {
		t.Fatalf("NewOptionletStripper error: %v", err)
	}
	if fx.surface.calls != 0 {
		t.Fatalf("construction should not price: %d surface lookups", fx.surface.calls)
	}

	if _, err := s.OptionletVolatilities(); err != nil {
		t.Fatalf("OptionletVolatilities error: %v", err)
	}
	afterFirst := fx.surface.calls
	if afterFirst == 0 {
		t.Fatalf("first access should have priced the grid")
	}

	// Fresh grid: further accessors must not recompute.
	if _, err := s.OptionletPrices(); err != nil {
		t.Fatalf("OptionletPrices error: %v", err)
	}
	if _, err := s.AtmOptionletRates(); err != nil {
		t.Fatalf("AtmOptionletRates error: %v", err)
	}
	if fx.surface.calls != afterFirst {
		t.Fatalf("cached access recomputed: %d -> %d lookups", afterFirst, fx.surface.calls)
	}

	// A surface bump invalidates; the next accessor strips again.
	fx.surface.Shift(0.02)
	if fx.surface.calls != afterFirst {
		t.Fatalf("notification alone should not price")
	}
	vols, err := s.OptionletVolatilities()
	if err != nil {
		t.Fatalf("OptionletVolatilities after shift error: %v", err)
	}
	if fx.surface.calls <= afterFirst {
		t.Fatalf("shift did not trigger recomputation")
	}
	// Warm-started reinversion lands on the bumped level.
	for i := range vols {
		for j := range vols[i] {
			if math.Abs(vols[i][j]-0.20) > 0.01 {
				t.Fatalf("re-stripped vol (%d,%d) = %.6f, expected near 0.20", i, j, vols[i][j])
			}
		}
	}

	// Rolling the evaluation date also invalidates.
	afterShift := fx.surface.calls
	fx.evalDate.SetDate(asOf.AddDate(0, 0, 1))
	if _, err := s.OptionletVolatilities(); err != nil {
		t.Fatalf("OptionletVolatilities after date roll error: %v", err)
	}
	if fx.surface.calls <= afterShift {
		t.Fatalf("evaluation date roll did not trigger recomputation")
	}
}
