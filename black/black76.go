// Package black implements the Black-76 lognormal forward model: option
// prices as a function of the standard deviation sigma*sqrt(T), and the
// inverse problem of recovering that standard deviation from a price.
package black

import (
	"fmt"
	"math"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2.0*math.Pi)
}

// Price returns the Black-76 option value
//
//	call: discount * (F*N(d1) - K*N(d2))
//	put:  discount * (K*N(-d2) - F*N(-d1))
//
// with d1 = ln(F/K)/sd + sd/2, d2 = d1 - sd, sd = sigma*sqrt(T).
// forward and strike must be positive; sd <= 0 collapses to discounted
// intrinsic value.
func Price(optType OptionType, strike, forward, stdDev, discount float64) float64 {
	if stdDev <= 0 {
		intrinsic := forward - strike
		if optType == Put {
			intrinsic = -intrinsic
		}
		return discount * math.Max(intrinsic, 0)
	}
	d1 := math.Log(forward/strike)/stdDev + 0.5*stdDev
	d2 := d1 - stdDev
	if optType == Put {
		return discount * (strike*normCDF(-d2) - forward*normCDF(-d1))
	}
	return discount * (forward*normCDF(d1) - strike*normCDF(d2))
}

// StdDevDerivative returns d(price)/d(stdDev), the vega per unit of
// standard deviation. It is identical for calls and puts.
func StdDevDerivative(strike, forward, stdDev, discount float64) float64 {
	if stdDev <= 0 {
		return 0
	}
	d1 := math.Log(forward/strike)/stdDev + 0.5*stdDev
	return discount * forward * normPDF(d1)
}

const (
	stdDevTolerance = 1e-12
	stdDevMaxIter   = 100
	stdDevFloor     = 1e-8
	stdDevCeiling   = 10.0
)

// ImpliedStdDev solves for the standard deviation reproducing target under
// Black-76, starting from guess. The target must lie strictly between the
// discounted intrinsic value and the no-arbitrage upper bound; otherwise a
// domain error is returned.
//
// The solver is Newton-Raphson with clamping; if Newton stalls (flat vega
// far out of the money) it falls back to bisection over the admissible range.
func ImpliedStdDev(optType OptionType, strike, forward, target, discount, guess float64) (float64, error) {
	if strike <= 0 || forward <= 0 {
		return 0, fmt.Errorf("ImpliedStdDev: non-positive strike %.6g or forward %.6g", strike, forward)
	}
	if discount <= 0 {
		return 0, fmt.Errorf("ImpliedStdDev: non-positive discount %.6g", discount)
	}

	intrinsic := Price(optType, strike, forward, 0, discount)
	upper := discount * forward
	if optType == Put {
		upper = discount * strike
	}
	if target <= intrinsic {
		return 0, fmt.Errorf("ImpliedStdDev: target price %.8g does not exceed intrinsic value %.8g", target, intrinsic)
	}
	if target >= upper {
		return 0, fmt.Errorf("ImpliedStdDev: target price %.8g breaches upper bound %.8g", target, upper)
	}

	sd := clamp(guess, stdDevFloor, stdDevCeiling)
	for iter := 0; iter < stdDevMaxIter; iter++ {
		f := Price(optType, strike, forward, sd, discount) - target
		if math.Abs(f) < stdDevTolerance {
			return sd, nil
		}
		deriv := StdDevDerivative(strike, forward, sd, discount)
		if deriv < 1e-15 {
			break
		}
		sd = clamp(sd-f/deriv, stdDevFloor, stdDevCeiling)
	}

	return impliedStdDevBisection(optType, strike, forward, target, discount)
}

// impliedStdDevBisection brackets the admissible range and bisects. Price is
// strictly increasing in stdDev, so the bracket is always valid inside the
// arbitrage bounds checked by the caller.
func impliedStdDevBisection(optType OptionType, strike, forward, target, discount float64) (float64, error) {
	lo, hi := stdDevFloor, stdDevCeiling
	for iter := 0; iter < 200; iter++ {
		mid := 0.5 * (lo + hi)
		f := Price(optType, strike, forward, mid, discount) - target
		if math.Abs(f) < stdDevTolerance || hi-lo < 1e-14 {
			return mid, nil
		}
		if f > 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return 0, fmt.Errorf("ImpliedStdDev: did not converge for target %.8g (forward %.6g, strike %.6g)", target, forward, strike)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
