// Package metrics exposes the engine's Prometheus series, served at /metrics.
//
//   - b5_engine_cycles_total{result}   – paper-engine cycles (ran|skipped|error)
//   - b5_snapshot_reloads_total        – snapshot file re-reads on mtime change
//   - b5_entries_total                 – accepted paper entries
//   - b5_exits_total{reason}           – closes split by exit reason
//   - b5_open_positions                – current OPEN trade count (gauge)
//   - b5_margin_used                   – entry_ltp×qty over OPEN trades (gauge)
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	engineCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "b5_engine_cycles_total",
			Help: "Paper-engine cycles by result",
		},
		[]string{"result"}, // ran|skipped|error
	)

	snapshotReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "b5_snapshot_reloads_total",
			Help: "Snapshot file reloads triggered by mtime change",
		},
	)

	entries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "b5_entries_total",
			Help: "Accepted paper entries",
		},
	)

	exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "b5_exits_total",
			Help: "Paper exits split by reason",
		},
		[]string{"reason"},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "b5_open_positions",
			Help: "Current OPEN paper trades",
		},
	)

	marginUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "b5_margin_used",
			Help: "Sum of entry_ltp*quantity over OPEN trades",
		},
	)
)

func init() {
	prometheus.MustRegister(engineCycles, snapshotReloads, entries, exits)
	prometheus.MustRegister(openPositions, marginUsed)
}

func IncCycle(result string)  { engineCycles.WithLabelValues(result).Inc() }
func IncSnapshotReload()      { snapshotReloads.Inc() }
func IncEntry()               { entries.Inc() }
func IncExit(reason string)   { exits.WithLabelValues(reason).Inc() }
func SetOpenPositions(n int)  { openPositions.Set(float64(n)) }
func SetMarginUsed(v float64) { marginUsed.Set(v) }
