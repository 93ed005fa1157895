// Package metrics exposes Prometheus metrics for the 2FA service.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/tokenstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "twofa"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	operations *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "2FA operations by name and outcome.",
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.operations)
	return m
}

// Observe counts one finished operation. outcome is "ok" or an error kind.
func (m *Metrics) Observe(op, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
}

// StatsSource is the read side of a token store.
type StatsSource interface {
	Stats(ctx context.Context) (tokenstore.Stats, error)
}

// RegisterTokenStores exports size, capacity and evictions of each store,
// read at scrape time.
func (m *Metrics) RegisterTokenStores(stores ...StatsSource) {
	m.Registry.MustRegister(&tokenStoreCollector{stores: stores})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

var (
	tokenStoreSize = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "token_store", "entries"),
		"Live entries in a token store.", []string{"store"}, nil)
	tokenStoreCapacity = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "token_store", "capacity"),
		"Configured capacity of a token store.", []string{"store"}, nil)
	tokenStoreEvictions = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "token_store", "evictions_total"),
		"Entries evicted because the store was full.", []string{"store"}, nil)
)

type tokenStoreCollector struct {
	stores []StatsSource
}

func (c *tokenStoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- tokenStoreSize
	ch <- tokenStoreCapacity
	ch <- tokenStoreEvictions
}

func (c *tokenStoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, s := range c.stores {
		st, err := s.Stats(ctx)
		if err != nil {
			ch <- prometheus.NewInvalidMetric(tokenStoreSize, err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(tokenStoreSize, prometheus.GaugeValue, float64(st.Size), st.Name)
		ch <- prometheus.MustNewConstMetric(tokenStoreCapacity, prometheus.GaugeValue, float64(st.Capacity), st.Name)
		ch <- prometheus.MustNewConstMetric(tokenStoreEvictions, prometheus.CounterValue, float64(st.Evictions), st.Name)
	}
}
