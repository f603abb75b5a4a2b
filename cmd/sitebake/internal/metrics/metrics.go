// Package metrics exposes rebuild activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/albertocavalcante/sitebake/cmd/sitebake/internal/incremental"
)

const namespace = "sitebake"

// Collector counts scans, builds, deleted outputs and rebuild passes. It
// implements incremental.Observer and owns a private registry.
type Collector struct {
	registry *prometheus.Registry

	scans          prometheus.Counter
	builds         prometheus.Counter
	produced       prometheus.Counter
	reused         prometheus.Counter
	outputsDeleted prometheus.Counter
	rebuilds       *prometheus.CounterVec
	duration       prometheus.Histogram
}

var _ incremental.Observer = (*Collector)(nil)

// NewCollector creates a collector and registers its metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Files scanned for dependencies and outputs.",
		}),
		builds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Files built.",
		}),
		produced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_produced_total",
			Help:      "Outputs written by builds.",
		}),
		reused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_reused_total",
			Help:      "Outputs left in place because their content was unchanged.",
		}),
		outputsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_deleted_total",
			Help:      "Stale outputs removed.",
		}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "Rebuild passes by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Wall time of rebuild passes.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	c.registry.MustRegister(c.scans, c.builds, c.produced, c.reused, c.outputsDeleted, c.rebuilds, c.duration)
	for _, result := range []string{incremental.ResultNoOp, incremental.ResultSuccess, incremental.ResultCycle, incremental.ResultError} {
		c.rebuilds.WithLabelValues(result)
	}
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ScanDone(string) {
	c.scans.Inc()
}

func (c *Collector) BuildDone(_ string, res *incremental.BuildResult) {
	c.builds.Inc()
	if res == nil {
		return
	}
	c.produced.Add(float64(len(res.Produced)))
	c.reused.Add(float64(len(res.Reused)))
}

func (c *Collector) OutputsDeleted(n int) {
	c.outputsDeleted.Add(float64(n))
}

func (c *Collector) RebuildDone(result string, elapsed time.Duration) {
	c.rebuilds.WithLabelValues(result).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
