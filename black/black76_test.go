package black_test

import (
	"math"
	"testing"

	"github.com/meenmo/caplib/black"
)

func TestPrice_ATMKnownValue(t *testing.T) {
	t.Parallel()

	// ATM: call = F * (2*N(sd/2) - 1). F = 0.04, sd = 0.2.
	got := black.Price(black.Call, 0.04, 0.04, 0.2, 1.0)
	want := 0.0031862269821623
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("ATM call mismatch: got %.12f want %.12f", got, want)
	}
}

func TestPrice_PutCallParity(t *testing.T) {
	t.Parallel()

	forward := 0.032
	discount := 0.97
	for _, sd := range []float64{0.05, 0.2, 0.8} {
		for _, strike := range []float64{0.02, 0.032, 0.05} {
			call := black.Price(black.Call, strike, forward, sd, discount)
			put := black.Price(black.Put, strike, forward, sd, discount)
			want := discount * (forward - strike)
			if math.Abs((call-put)-want) > 1e-14 {
				t.Fatalf("parity violated at sd=%.2f strike=%.3f: call-put=%.15f want %.15f",
					sd, strike, call-put, want)
			}
		}
	}
}

func TestPrice_ZeroStdDevIsIntrinsic(t *testing.T) {
	t.Parallel()

	if got := black.Price(black.Call, 0.03, 0.05, 0, 0.9); math.Abs(got-0.9*0.02) > 1e-15 {
		t.Fatalf("ITM call intrinsic mismatch: got %.12f", got)
	}
	if got := black.Price(black.Put, 0.03, 0.05, 0, 0.9); got != 0 {
		t.Fatalf("OTM put intrinsic should be 0, got %.12f", got)
	}
}

func TestImpliedStdDev_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		optType black.OptionType
		strike  float64
		forward float64
		stdDev  float64
		guess   float64
	}{
		{black.Call, 0.04, 0.04, 0.20, 0.14},
		{black.Call, 0.06, 0.03, 0.35, 0.14},
		{black.Put, 0.02, 0.03, 0.12, 0.14},
		{black.Put, 0.035, 0.03, 0.25, 2.0}, // far warm start
	}
	for _, c := range cases {
		target := black.Price(c.optType, c.strike, c.forward, c.stdDev, 0.95)
		got, err := black.ImpliedStdDev(c.optType, c.strike, c.forward, target, 0.95, c.guess)
		if err != nil {
			t.Fatalf("ImpliedStdDev(%s K=%.3f) error: %v", c.optType, c.strike, err)
		}
		if math.Abs(got-c.stdDev) > 1e-7 {
			t.Fatalf("round trip mismatch (%s K=%.3f): got %.12f want %.12f", c.optType, c.strike, got, c.stdDev)
		}
	}
}

func TestImpliedStdDev_DomainErrors(t *testing.T) {
	t.Parallel()

	// Below intrinsic: ITM call intrinsic = 0.95 * 0.01.
	if _, err := black.ImpliedStdDev(black.Call, 0.03, 0.04, 0.009, 0.95, 0.14); err == nil {
		t.Fatalf("expected error for price below intrinsic")
	}
	// Above upper bound: call price cannot exceed discount * forward.
	if _, err := black.ImpliedStdDev(black.Call, 0.03, 0.04, 0.95*0.04+1e-6, 0.95, 0.14); err == nil {
		t.Fatalf("expected error for price above upper bound")
	}
	if _, err := black.ImpliedStdDev(black.Call, -0.01, 0.04, 0.001, 0.95, 0.14); err == nil {
		t.Fatalf("expected error for negative strike")
	}
}
