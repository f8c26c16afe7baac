// volserver exposes stripped optionlet volatilities over HTTP. The
// stripper stays resident; quote updates posted to the API invalidate it
// and the next read lazily recomputes.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/meenmo/caplib/calendar"
	"github.com/meenmo/caplib/caplet"
	"github.com/meenmo/caplib/curve"
	"github.com/meenmo/caplib/market"
	"github.com/meenmo/caplib/marketdata/capvols"
	"github.com/meenmo/caplib/utils"
	"github.com/meenmo/caplib/volsurface"
)

type config struct {
	Listen      string  `yaml:"listen"`
	FlatRate    float64 `yaml:"flat_rate"`
	TenorMonths int     `yaml:"tenor_months"`
	LogLevel    string  `yaml:"log_level"`

	Postgres struct {
		DSN       string `yaml:"dsn"`
		Table     string `yaml:"table"`
		QuoteDate string `yaml:"quote_date"`
	} `yaml:"postgres"`
}

func loadConfig(path string) (config, error) {
	cfg := config{
		Listen:      ":8080",
		FlatRate:    0.03,
		TenorMonths: 6,
		LogLevel:    "info",
	}
	cfg.Postgres.Table = "capfloor_vols"
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type server struct {
	log      zerolog.Logger
	surface  *volsurface.TermVolSurface
	stripper *caplet.OptionletStripper
}

func main() {
	configPath := flag.String("config", "", "YAML config path")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	var source capvols.QuoteSource = capvols.SampleEURSource()
	if cfg.Postgres.DSN != "" {
		pg, err := capvols.OpenPostgres(cfg.Postgres.DSN, cfg.Postgres.Table, utils.DateParser(cfg.Postgres.QuoteDate))
		if err != nil {
			logger.Fatal().Err(err).Msg("open quote store")
		}
		defer pg.Close()
		source = pg
	}

	quotes, err := source.CapFloorVols()
	if err != nil {
		logger.Fatal().Err(err).Msg("load quotes")
	}
	surface, err := capvols.BuildSurface(quotes, calendar.TARGET, market.Act365F)
	if err != nil {
		logger.Fatal().Err(err).Msg("build surface")
	}

	disc := curve.NewFlatForward(quotes.QuoteDate, cfg.FlatRate)
	index, err := market.NewIborIndex(market.EURIBOR6M, market.Period(cfg.TenorMonths), 0, calendar.TARGET, market.Act360, disc)
	if err != nil {
		logger.Fatal().Err(err).Msg("build index")
	}
	stripper, err := caplet.NewOptionletStripper(surface, index, market.NewEvaluationDate(quotes.QuoteDate), disc, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("build stripper")
	}

	srv := &server{log: logger, surface: surface, stripper: stripper}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/strikes", srv.handleStrikes).Methods(http.MethodGet)
	r.HandleFunc("/v1/optionlet-vols", srv.handleOptionletVols).Methods(http.MethodGet)
	r.HandleFunc("/v1/capfloor-vols", srv.handleCapFloorVols).Methods(http.MethodGet)
	r.HandleFunc("/v1/quotes", srv.handleQuoteUpdate).Methods(http.MethodPost)
	r.Use(srv.logRequests)

	logger.Info().Str("listen", cfg.Listen).Int("tenor_months", cfg.TenorMonths).Msg("volserver starting")
	if err := http.ListenAndServe(cfg.Listen, r); err != nil {
		logger.Fatal().Err(err).Msg("serve")
	}
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleStrikes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"strikes": s.stripper.Strikes()})
}

type volGrid struct {
	Tenors  []string    `json:"tenors"`
	Strikes []float64   `json:"strikes"`
	Vols    [][]float64 `json:"vols"`
}

func (s *server) handleOptionletVols(w http.ResponseWriter, _ *http.Request) {
	vols, err := s.stripper.OptionletVolatilities()
	if err != nil {
		s.log.Error().Err(err).Msg("strip failed")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, volGrid{
		Tenors:  periodStrings(s.stripper.OptionletTenors()),
		Strikes: s.stripper.Strikes(),
		Vols:    vols,
	})
}

func (s *server) handleCapFloorVols(w http.ResponseWriter, _ *http.Request) {
	vols, err := s.stripper.CapFloorVolatilities()
	if err != nil {
		s.log.Error().Err(err).Msg("strip failed")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, volGrid{
		Tenors:  periodStrings(s.stripper.CapFloorLengths()),
		Strikes: s.stripper.Strikes(),
		Vols:    vols,
	})
}

type quoteUpdate struct {
	Tenor  string  `json:"tenor,omitempty"`
	Strike float64 `json:"strike,omitempty"`
	Vol    float64 `json:"vol,omitempty"`
	Shift  float64 `json:"shift,omitempty"`
}

// handleQuoteUpdate mutates the surface, which notifies the stripper and
// invalidates every derived grid.
func (s *server) handleQuoteUpdate(w http.ResponseWriter, r *http.Request) {
	var upd quoteUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if upd.Shift != 0 {
		s.surface.Shift(upd.Shift)
		s.log.Info().Float64("shift", upd.Shift).Msg("surface shifted")
		writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
		return
	}
	tenor, err := market.ParsePeriod(upd.Tenor)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.surface.SetVol(tenor, upd.Strike, upd.Vol); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.log.Info().Str("tenor", upd.Tenor).Float64("strike", upd.Strike).Float64("vol", upd.Vol).Msg("quote updated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func periodStrings(ps []market.Period) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}
