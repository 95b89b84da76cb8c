package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes Store.Stats as Prometheus metrics, read at scrape time.
type Collector struct {
	store *Store

	size      *prometheus.Desc
	maxSize   *prometheus.Desc
	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
	hitRate   *prometheus.Desc
}

func NewCollector(namespace string, store *Store) *Collector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "cache", n) }
	return &Collector{
		store:     store,
		size:      prometheus.NewDesc(name("entries"), "Current number of live cache entries.", nil, nil),
		maxSize:   prometheus.NewDesc(name("capacity"), "Maximum number of cache entries.", nil, nil),
		hits:      prometheus.NewDesc(name("hits_total"), "Cache lookups that returned a live entry.", nil, nil),
		misses:    prometheus.NewDesc(name("misses_total"), "Cache lookups that found nothing or an expired entry.", nil, nil),
		evictions: prometheus.NewDesc(name("evictions_total"), "Entries evicted to respect capacity.", nil, nil),
		hitRate:   prometheus.NewDesc(name("hit_ratio"), "Hits over hits plus misses.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.maxSize
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.hitRate
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(st.Size))
	ch <- prometheus.MustNewConstMetric(c.maxSize, prometheus.GaugeValue, float64(st.MaxSize))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, st.HitRate)
}
