package spool

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// metricGauge pairs a Pebble metrics accessor with the Prometheus
// descriptor it feeds, collapsing what would otherwise be one field plus
// one case per metric into a single table.
type metricGauge struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	read      func(*pebble.Metrics) float64
}

// Collector exports the job spool's Pebble engine statistics —
// compaction, memtable, and WAL metrics — under the indexsync_spool_*
// namespace.
type Collector struct {
	db      *pebble.DB
	metrics []metricGauge
}

func NewCollector(s *Spool) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("indexsync_spool_"+name, help, nil, nil)
	}
	return &Collector{
		db: s.db,
		metrics: []metricGauge{
			{desc("compactions_total", "Total number of compactions performed"), prometheus.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.Count) }},
			{desc("compactions_default_total", "Total number of default compactions performed"), prometheus.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.DefaultCount) }},
			{desc("compactions_elision_only_total", "Total number of elision-only compactions performed"), prometheus.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.ElisionOnlyCount) }},
			{desc("compactions_move_total", "Total number of move compactions performed"), prometheus.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.MoveCount) }},
			{desc("compactions_read_total", "Total number of read compactions performed"), prometheus.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.ReadCount) }},
			{desc("compactions_rewrite_total", "Total number of rewrite compactions performed"), prometheus.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.RewriteCount) }},
			{desc("compaction_estimated_debt_bytes", "Estimated bytes that need compacting to reach a stable state"), prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.EstimatedDebt) }},
			{desc("compaction_in_progress_bytes", "Bytes currently being compacted"), prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.Compact.InProgressBytes) }},
			{desc("memtable_size_bytes", "Current size of the memtable in bytes"), prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.MemTable.Size) }},
			{desc("memtable_count", "Current count of memtables"), prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.MemTable.Count) }},
			{desc("memtable_zombie_size_bytes", "Size of zombie memtables in bytes"), prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.MemTable.ZombieSize) }},
			{desc("wal_files", "Number of live WAL files"), prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.WAL.Files) }},
			{desc("wal_size_bytes", "Size of live WAL data in bytes"), prometheus.GaugeValue,
				func(m *pebble.Metrics) float64 { return float64(m.WAL.Size) }},
			{desc("wal_bytes_written_total", "Total physical bytes written to the WAL"), prometheus.CounterValue,
				func(m *pebble.Metrics) float64 { return float64(m.WAL.BytesWritten) }},
		},
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, mg := range c.metrics {
		ch <- mg.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.db.Metrics()
	for _, mg := range c.metrics {
		ch <- prometheus.MustNewConstMetric(mg.desc, mg.valueType, mg.read(stats))
	}
}
