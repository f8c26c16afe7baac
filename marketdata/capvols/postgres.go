package capvols

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/meenmo/caplib/market"
)

// PostgresSource reads cap/floor vol quotes from a Postgres table with
// columns (quote_date date, tenor text, strike double precision,
// vol double precision), one row per grid cell.
type PostgresSource struct {
	db        *sql.DB
	table     string
	quoteDate time.Time
}

// OpenPostgres connects to the quote store.
func OpenPostgres(dsn, table string, quoteDate time.Time) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenPostgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenPostgres: ping: %w", err)
	}
	return &PostgresSource{db: db, table: table, quoteDate: quoteDate}, nil
}

// Close releases the database handle.
func (p *PostgresSource) Close() error {
	return p.db.Close()
}

// CapFloorVols loads the grid for the source's quote date and assembles the
// tenor/strike axes in ascending order.
func (p *PostgresSource) CapFloorVols() (SurfaceQuotes, error) {
	query := fmt.Sprintf(
		"SELECT tenor, strike, vol FROM %s WHERE quote_date = $1", p.table)
	rows, err := p.db.Query(query, p.quoteDate)
	if err != nil {
		return SurfaceQuotes{}, fmt.Errorf("CapFloorVols: query: %w", err)
	}
	defer rows.Close()

	cells := make(map[market.Period]map[float64]float64)
	strikeSet := make(map[float64]struct{})
	for rows.Next() {
		var tenorStr string
		var strike, vol float64
		if err := rows.Scan(&tenorStr, &strike, &vol); err != nil {
			return SurfaceQuotes{}, fmt.Errorf("CapFloorVols: scan: %w", err)
		}
		tenor, err := market.ParsePeriod(tenorStr)
		if err != nil {
			return SurfaceQuotes{}, fmt.Errorf("CapFloorVols: %w", err)
		}
		if cells[tenor] == nil {
			cells[tenor] = make(map[float64]float64)
		}
		cells[tenor][strike] = vol
		strikeSet[strike] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return SurfaceQuotes{}, fmt.Errorf("CapFloorVols: rows: %w", err)
	}
	if len(cells) == 0 {
		return SurfaceQuotes{}, fmt.Errorf("CapFloorVols: no quotes for %s", p.quoteDate.Format("2006-01-02"))
	}

	tenors := make([]market.Period, 0, len(cells))
	for t := range cells {
		tenors = append(tenors, t)
	}
	sort.Slice(tenors, func(i, j int) bool { return tenors[i] < tenors[j] })

	strikes := make([]float64, 0, len(strikeSet))
	for k := range strikeSet {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)

	vols := make([][]float64, len(tenors))
	for i, t := range tenors {
		vols[i] = make([]float64, len(strikes))
		for j, k := range strikes {
			v, ok := cells[t][k]
			if !ok {
				return SurfaceQuotes{}, fmt.Errorf("CapFloorVols: missing quote at (%s, %.4f)", t, k)
			}
			vols[i][j] = v
		}
	}

	return SurfaceQuotes{
		QuoteDate: p.quoteDate,
		Tenors:    tenors,
		Strikes:   strikes,
		Vols:      vols,
	}, nil
}
