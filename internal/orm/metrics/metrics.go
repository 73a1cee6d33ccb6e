// Package metrics exposes Prometheus collectors for object store writes and queries
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the object store metrics registered on one registerer
type Collector struct {
	QueryDuration *prometheus.HistogramVec
	ObjectsStored *prometheus.CounterVec
	LinksWritten  prometheus.Counter
	StoreFailures prometheus.Counter
	CacheLookups  *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "objectstore_query_duration_seconds",
			Help:    "Duration of query executions and explains",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "outcome"}),

		ObjectsStored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "objectstore_objects_stored_total",
			Help: "Objects written by graph stores, by result",
		}, []string{"result"}),

		LinksWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "objectstore_links_written_total",
			Help: "Join rows written by graph stores",
		}),

		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "objectstore_store_failures_total",
			Help: "Graph stores rolled back",
		}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "objectstore_cache_lookups_total",
			Help: "Session object cache lookups",
		}, []string{"outcome"}),
	}
}

// ObserveQuery records one execute or explain call
func (c *Collector) ObserveQuery(op string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.QueryDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
}

// ObserveStore records the counts of a finished graph store
func (c *Collector) ObserveStore(inserted, updated, merged, untouched, links int, err error) {
	if err != nil {
		c.StoreFailures.Inc()
		return
	}
	c.ObjectsStored.WithLabelValues("inserted").Add(float64(inserted))
	c.ObjectsStored.WithLabelValues("updated").Add(float64(updated))
	c.ObjectsStored.WithLabelValues("merged").Add(float64(merged))
	c.ObjectsStored.WithLabelValues("untouched").Add(float64(untouched))
	c.LinksWritten.Add(float64(links))
}

// ObserveCache records a session cache hit or miss
func (c *Collector) ObserveCache(hit bool) {
	if hit {
		c.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	c.CacheLookups.WithLabelValues("miss").Inc()
}
