package main

import (
	"fmt"
	"log"

	"github.com/meenmo/caplib/calendar"
	"github.com/meenmo/caplib/caplet"
	"github.com/meenmo/caplib/curve"
	"github.com/meenmo/caplib/market"
	"github.com/meenmo/caplib/marketdata/capvols"
)

func main() {
	quotes, err := capvols.SampleEURSource().CapFloorVols()
	if err != nil {
		log.Fatal(err)
	}
	surface, err := capvols.BuildSurface(quotes, calendar.TARGET, market.Act365F)
	if err != nil {
		log.Fatal(err)
	}

	disc := curve.NewFlatForward(quotes.QuoteDate, 0.03)
	index, err := market.NewIborIndex(market.EURIBOR6M, 6, 0, calendar.TARGET, market.Act360, disc)
	if err != nil {
		log.Fatal(err)
	}
	evalDate := market.NewEvaluationDate(quotes.QuoteDate)

	stripper, err := caplet.NewOptionletStripper(surface, index, evalDate, disc, nil)
	if err != nil {
		log.Fatal(err)
	}

	vols, err := stripper.OptionletVolatilities()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%-8s", "")
	for _, k := range stripper.Strikes() {
		fmt.Printf("%8.2f%%", k*100)
	}
	fmt.Println()
	for i, tenor := range stripper.OptionletTenors() {
		fmt.Printf("%-8s", tenor)
		for _, v := range vols[i] {
			fmt.Printf("%8.2f%%", v*100)
		}
		fmt.Println()
	}
}
