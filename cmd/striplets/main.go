package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/meenmo/caplib/calendar"
	"github.com/meenmo/caplib/caplet"
	"github.com/meenmo/caplib/curve"
	"github.com/meenmo/caplib/market"
	"github.com/meenmo/caplib/marketdata/capvols"
	"github.com/meenmo/caplib/utils"
)

type stripOutput struct {
	QuoteDate       string      `json:"quote_date"`
	Index           string      `json:"index"`
	OptionletTenors []string    `json:"optionlet_tenors"`
	CapFloorLengths []string    `json:"capfloor_lengths"`
	Strikes         []float64   `json:"strikes"`
	AtmRates        []float64   `json:"atm_rates"`
	OptionletVols   [][]float64 `json:"optionlet_vols"`
	CapFloorVols    [][]float64 `json:"capfloor_vols"`
	Error           string      `json:"error,omitempty"`
}

func main() {
	rate := flag.Float64("rate", 0.03, "Flat zero rate for discounting/forwards (decimal)")
	tenorMonths := flag.Int("tenor", 6, "Index tenor in months")
	switchStrike := flag.Float64("switch", 0, "OTM switch strike (decimal, 0 = default 4%)")
	dsn := flag.String("dsn", "", "Postgres DSN for vol quotes (bundled sample if omitted)")
	table := flag.String("table", "capfloor_vols", "Postgres quote table")
	quoteDate := flag.String("date", "", "Quote date YYYY-MM-DD (Postgres only)")
	help := flag.Bool("h", false, "Show help")
	flag.BoolVar(help, "help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "Usage: striplets [-rate r] [-tenor m] [-switch k] [-dsn ...]")
		fmt.Fprintln(os.Stderr, "Strip optionlet volatilities from a cap/floor term vol surface.")
		return
	}

	var source capvols.QuoteSource = capvols.SampleEURSource()
	if *dsn != "" {
		if *quoteDate == "" {
			exitError("-date is required with -dsn")
		}
		pg, err := capvols.OpenPostgres(*dsn, *table, utils.DateParser(*quoteDate))
		if err != nil {
			exitError(fmt.Sprintf("open quote store: %v", err))
		}
		defer pg.Close()
		source = pg
	}

	quotes, err := source.CapFloorVols()
	if err != nil {
		exitError(fmt.Sprintf("load quotes: %v", err))
	}
	surface, err := capvols.BuildSurface(quotes, calendar.TARGET, market.Act365F)
	if err != nil {
		exitError(fmt.Sprintf("build surface: %v", err))
	}

	disc := curve.NewFlatForward(quotes.QuoteDate, *rate)
	index, err := market.NewIborIndex(market.EURIBOR6M, market.Period(*tenorMonths), 0, calendar.TARGET, market.Act360, disc)
	if err != nil {
		exitError(fmt.Sprintf("build index: %v", err))
	}
	evalDate := market.NewEvaluationDate(quotes.QuoteDate)

	var switchStrikes []float64
	if *switchStrike > 0 {
		switchStrikes = []float64{*switchStrike}
	}
	stripper, err := caplet.NewOptionletStripper(surface, index, evalDate, disc, switchStrikes)
	if err != nil {
		exitError(fmt.Sprintf("build stripper: %v", err))
	}

	optionletVols, err := stripper.OptionletVolatilities()
	if err != nil {
		exitError(fmt.Sprintf("strip: %v", err))
	}
	capfloorVols, err := stripper.CapFloorVolatilities()
	if err != nil {
		exitError(fmt.Sprintf("strip: %v", err))
	}
	atmRates, err := stripper.AtmOptionletRates()
	if err != nil {
		exitError(fmt.Sprintf("strip: %v", err))
	}

	out := stripOutput{
		QuoteDate:       quotes.QuoteDate.Format("2006-01-02"),
		Index:           string(market.EURIBOR6M),
		OptionletTenors: periodStrings(stripper.OptionletTenors()),
		CapFloorLengths: periodStrings(stripper.CapFloorLengths()),
		Strikes:         stripper.Strikes(),
		AtmRates:        atmRates,
		OptionletVols:   optionletVols,
		CapFloorVols:    capfloorVols,
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}

func periodStrings(ps []market.Period) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

func exitError(msg string) {
	b, _ := json.Marshal(stripOutput{Error: msg})
	fmt.Println(string(b))
	os.Exit(1)
}
