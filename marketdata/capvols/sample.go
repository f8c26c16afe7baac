package capvols

import (
	"time"

	"github.com/meenmo/caplib/market"
)

// SampleEURCapVols is a bundled EUR cap/floor vol grid (EURIBOR6M
// underlying) for demos and tests, as of 2025-06-30. Low-strike skew and
// decaying term structure, roughly in line with mid-2025 BGN marks.
var SampleEURCapVols = SurfaceQuotes{
	QuoteDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	Tenors: []market.Period{
		12, 18, 24, 36, 48, 60,
	},
	Strikes: []float64{
		0.02, 0.03, 0.04, 0.05, 0.06, 0.07,
	},
	Vols: [][]float64{
		{0.220, 0.200, 0.185, 0.180, 0.182, 0.185},
		{0.215, 0.195, 0.180, 0.175, 0.177, 0.180},
		{0.210, 0.190, 0.175, 0.170, 0.172, 0.175},
		{0.200, 0.180, 0.167, 0.162, 0.164, 0.167},
		{0.190, 0.172, 0.160, 0.155, 0.157, 0.160},
		{0.180, 0.165, 0.153, 0.149, 0.151, 0.154},
	},
}

// SampleEURSource wraps the bundled grid in a QuoteSource.
func SampleEURSource() *StaticSource {
	return NewStaticSource(SampleEURCapVols)
}
