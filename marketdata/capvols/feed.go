// Package capvols supplies cap/floor volatility quote grids from bundled
// samples or external stores, and turns them into term vol surfaces.
package capvols

import (
	"fmt"
	"time"

	"github.com/meenmo/caplib/calendar"
	"github.com/meenmo/caplib/market"
	"github.com/meenmo/caplib/volsurface"
)

// SurfaceQuotes is a raw quoted grid: rows are option tenors, columns
// strikes, both ascending. Vols and strikes are decimals.
type SurfaceQuotes struct {
	QuoteDate time.Time
	Tenors    []market.Period
	Strikes   []float64
	Vols      [][]float64
}

// QuoteSource supplies a cap/floor vol grid for surface construction.
type QuoteSource interface {
	CapFloorVols() (SurfaceQuotes, error)
}

// StaticSource is a fixed in-memory implementation for development/testing.
type StaticSource struct {
	quotes SurfaceQuotes
}

func NewStaticSource(quotes SurfaceQuotes) *StaticSource {
	return &StaticSource{quotes: quotes}
}

func (s *StaticSource) CapFloorVols() (SurfaceQuotes, error) {
	if len(s.quotes.Tenors) == 0 {
		return SurfaceQuotes{}, fmt.Errorf("StaticSource: empty quote grid")
	}
	return s.quotes, nil
}

// BuildSurface constructs a term vol surface from quotes. The vol matrix is
// deep-copied so later surface edits do not write back into the source grid.
func BuildSurface(q SurfaceQuotes, cal calendar.CalendarID, dc market.DayCount) (*volsurface.TermVolSurface, error) {
	vols := make([][]float64, len(q.Vols))
	for i, row := range q.Vols {
		vols[i] = append([]float64(nil), row...)
	}
	surface, err := volsurface.NewTermVolSurface(q.QuoteDate, cal, dc, q.Tenors, q.Strikes, vols)
	if err != nil {
		return nil, fmt.Errorf("BuildSurface: %w", err)
	}
	return surface, nil
}
