// Package metrics exposes daemon counters in the Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "schemadrift"

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Collector holds the daemon's metric vectors in a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	TableErrors   prometheus.Counter
	Migrations    *prometheus.CounterVec
	TablesTracked prometheus.Gauge
	VCSEvents     *prometheus.CounterVec
}

// NewCollector creates a Collector with its own Prometheus registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Database poll cycles by result",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of completed database poll cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		TableErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_errors_total",
			Help:      "SHOW CREATE TABLE failures",
		}),
		Migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_written_total",
			Help:      "Migration pairs written, by scope (branch or global) and reason",
		}, []string{"scope", "reason"}),
		TablesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tables_tracked",
			Help:      "Tables seen in the last poll cycle",
		}),
		VCSEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vcs_events_total",
			Help:      "Git events observed, by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(c.Cycles, c.CycleDuration, c.TableErrors, c.Migrations, c.TablesTracked, c.VCSEvents)
	return c
}

// Handler returns an HTTP handler that serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordCycle counts one poll cycle. Successful cycles also record their
// duration.
func (c *Collector) RecordCycle(err error, d time.Duration) {
	if c == nil {
		return
	}
	if err != nil {
		c.Cycles.WithLabelValues("error").Inc()
		return
	}
	c.Cycles.WithLabelValues("ok").Inc()
	c.CycleDuration.Observe(d.Seconds())
}

// RecordTableError counts a failed DDL fetch.
func (c *Collector) RecordTableError() {
	if c != nil {
		c.TableErrors.Inc()
	}
}

// RecordMigration counts a written pair.
func (c *Collector) RecordMigration(scope, reason string) {
	if c != nil {
		c.Migrations.WithLabelValues(scope, reason).Inc()
	}
}

// SetTablesTracked sets the tables gauge.
func (c *Collector) SetTablesTracked(n int) {
	if c != nil {
		c.TablesTracked.Set(float64(n))
	}
}

// RecordVCSEvent counts a git event.
func (c *Collector) RecordVCSEvent(kind string) {
	if c != nil {
		c.VCSEvents.WithLabelValues(kind).Inc()
	}
}

// Serve exposes the collector on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	return c.serve(ctx, ln)
}

func (c *Collector) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(Path, c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("metrics: listening on %s%s", ln.Addr(), Path)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics serve: %w", err)
	}
	return nil
}
