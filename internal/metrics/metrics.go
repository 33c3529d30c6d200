package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry holds the worker's Prometheus metrics on a private registry so
// multiple instances can coexist in tests.
type Registry struct {
	reg *prometheus.Registry

	TicksConsumed    prometheus.Counter
	TicksFailed      prometheus.Counter
	TickDuration     prometheus.Histogram
	CurveRebuilds    prometheus.Counter
	InstrumentsDone  *prometheus.CounterVec
	PricingErrors    *prometheus.CounterVec
	PortfolioNPV     prometheus.Gauge
	PortfolioDV01    prometheus.Gauge
	InstrumentsTotal prometheus.Gauge
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		TicksConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskpipe_ticks_consumed_total",
			Help: "Total curve ticks consumed and committed",
		}),
		TicksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskpipe_ticks_failed_total",
			Help: "Total curve ticks dropped as undecodable",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskpipe_tick_duration_seconds",
			Help:    "Wall time spent processing one curve tick end to end",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		CurveRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskpipe_curve_rebuilds_total",
			Help: "Total yield curve bootstraps triggered by quote changes",
		}),
		InstrumentsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskpipe_instruments_processed_total",
			Help: "Instruments processed per tick by outcome",
		}, []string{"status"}),
		PricingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskpipe_pricing_errors_total",
			Help: "Pricing failures by instrument kind",
		}, []string{"kind"}),
		PortfolioNPV: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskpipe_portfolio_npv",
			Help: "Latest aggregated portfolio NPV",
		}),
		PortfolioDV01: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskpipe_portfolio_dv01",
			Help: "Latest aggregated portfolio DV01",
		}),
		InstrumentsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskpipe_portfolio_instruments",
			Help: "Instruments in the loaded portfolio",
		}),
	}

	r.reg.MustRegister(
		r.TicksConsumed,
		r.TicksFailed,
		r.TickDuration,
		r.CurveRebuilds,
		r.InstrumentsDone,
		r.PricingErrors,
		r.PortfolioNPV,
		r.PortfolioDV01,
		r.InstrumentsTotal,
	)
	return r
}

// Handler serves the registry in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Server exposes /metrics and /healthz for scraping and liveness probes.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

func NewServer(addr string, reg *Registry, workerID string, log zerolog.Logger) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"worker": workerID,
		})
	}).Methods(http.MethodGet)

	return &Server{
		srv: &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
}

// Run serves until the context is cancelled, then drains with a short grace
// period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("metrics server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return <-errCh
	case err := <-errCh:
		return err
	}
}
