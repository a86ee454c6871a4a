// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds a snapshot of cache counters.
type Metrics struct {
	// Size is the number of bytes in use by the cache.
	Size int64
	// Count is the number of blocks in the cache.
	Count int64
	// Hits is the number of cache hits.
	Hits int64
	// Misses is the number of cache misses.
	Misses int64
}

// Metrics returns the aggregated metrics for the cache.
func (c *Cache) Metrics() Metrics {
	var m Metrics
	for i := range c.shards {
		sm := c.shards[i].metrics()
		m.Size += sm.Size
		m.Count += sm.Count
		m.Hits += sm.Hits
		m.Misses += sm.Misses
	}
	return m
}

// Collector exposes a Cache's metrics as prometheus metrics.
type Collector struct {
	c      *Cache
	size   *prometheus.Desc
	count  *prometheus.Desc
	hits   *prometheus.Desc
	misses *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a prometheus collector reading from c. The collector
// does not take a reference on the cache; unregister before the final Unref.
func NewCollector(c *Cache) *Collector {
	return &Collector{
		c: c,
		size: prometheus.NewDesc(
			"blockcache_size_bytes", "Bytes in use by the block cache.", nil, nil),
		count: prometheus.NewDesc(
			"blockcache_block_count", "Blocks resident in the block cache.", nil, nil),
		hits: prometheus.NewDesc(
			"blockcache_hits_total", "Block cache hits.", nil, nil),
		misses: prometheus.NewDesc(
			"blockcache_misses_total", "Block cache misses.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (mc *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- mc.size
	ch <- mc.count
	ch <- mc.hits
	ch <- mc.misses
}

// Collect implements prometheus.Collector.
func (mc *Collector) Collect(ch chan<- prometheus.Metric) {
	m := mc.c.Metrics()
	ch <- prometheus.MustNewConstMetric(mc.size, prometheus.GaugeValue, float64(m.Size))
	ch <- prometheus.MustNewConstMetric(mc.count, prometheus.GaugeValue, float64(m.Count))
	ch <- prometheus.MustNewConstMetric(mc.hits, prometheus.CounterValue, float64(m.Hits))
	ch <- prometheus.MustNewConstMetric(mc.misses, prometheus.CounterValue, float64(m.Misses))
}
