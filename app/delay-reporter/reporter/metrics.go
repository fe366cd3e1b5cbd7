package reporter

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/OpenTransitTools/delayreport/business/reconcile"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the prometheus metrics updated by each poll cycle
type Collector struct {
	reg *prometheus.Registry

	ActiveTrips  prometheus.Gauge
	DelayedTrips prometheus.Gauge
	MissingTrips prometheus.Gauge
	OnTimeTrips  prometheus.Gauge

	Cycles          prometheus.Counter
	FetchErrors     prometheus.Counter
	CycleErrors     prometheus.Counter
	SummariesPublished prometheus.Counter

	CycleDuration prometheus.Histogram
}

// NewCollector creates and registers the delay reporter metrics on a private registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delay_reporter_active_trips",
			Help: "Number of trips scheduled to be in service in the last cycle.",
		}),
		DelayedTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delay_reporter_delayed_trips",
			Help: "Number of trips delayed beyond the threshold in the last cycle.",
		}),
		MissingTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delay_reporter_missing_trips",
			Help: "Number of active trips not being tracked in the last cycle.",
		}),
		OnTimeTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delay_reporter_on_time_trips",
			Help: "Number of trips within the delay threshold in the last cycle.",
		}),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delay_reporter_cycles_total",
			Help: "Total poll cycles completed.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delay_reporter_fetch_errors_total",
			Help: "Total failures retrieving or decoding the trip updates feed.",
		}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delay_reporter_cycle_errors_total",
			Help: "Total poll cycles abandoned for any reason.",
		}),
		SummariesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delay_reporter_summaries_published_total",
			Help: "Total cycle summaries published over NATS.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "delay_reporter_cycle_duration_seconds",
			Help:    "Duration of poll cycle work.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	reg.MustRegister(
		c.ActiveTrips, c.DelayedTrips, c.MissingTrips, c.OnTimeTrips,
		c.Cycles, c.FetchErrors, c.CycleErrors, c.SummariesPublished,
		c.CycleDuration,
	)
	return c
}

// observeReport records the classification counts of a completed cycle
func (c *Collector) observeReport(activeCount int, report reconcile.Report, took time.Duration) {
	c.ActiveTrips.Set(float64(activeCount))
	c.DelayedTrips.Set(float64(len(report.Delayed)))
	c.MissingTrips.Set(float64(len(report.Missing)))
	c.OnTimeTrips.Set(float64(len(report.OnTime)))
	c.Cycles.Inc()
	c.CycleDuration.Observe(took.Seconds())
}

// Handler serves the registered metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// healthHandler reports the service is running
type healthHandler struct {
}

// ServeHTTP implements healthHandler http.Handler interface
func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// newMetricsRouter routes /metrics and /health
func newMetricsRouter(collector *Collector) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	r.Handle("/health", &healthHandler{}).Methods(http.MethodGet)
	return r
}

// StartMetricsServer serves collector's metrics on host in a new goroutine.
// The returned server should be stopped with StopMetricsServer
func StartMetricsServer(log *log.Logger, collector *Collector, host string) *http.Server {
	srv := &http.Server{
		Addr:         host,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      newMetricsRouter(collector),
	}
	log.Printf("Starting metrics server on %s", host)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server ListenAndServe ended. %s", err)
		}
	}()
	return srv
}

// StopMetricsServer shuts down srv, waiting at most five seconds for open requests
func StopMetricsServer(log *log.Logger, srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down metrics server, error:%s", err)
	}
}
