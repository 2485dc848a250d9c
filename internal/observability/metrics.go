// Package observability holds the Prometheus collectors for the local store.
//
// The app has no HTTP listener, so the registry is dumped in the node
// exporter textfile format on demand (see WriteTextfile).
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Registry holds only this package's collectors.
var Registry = prometheus.NewRegistry()

var (
	keyOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "santelocale",
		Subsystem: "keys",
		Name:      "operations_total",
		Help:      "Database key operations by kind (create, unwrap) and outcome.",
	}, []string{"op", "outcome"})

	storeOpens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "santelocale",
		Subsystem: "store",
		Name:      "opens_total",
		Help:      "Store open attempts by outcome.",
	}, []string{"outcome"})

	storeWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "santelocale",
		Subsystem: "store",
		Name:      "writes_total",
		Help:      "Committed writes by table and operation.",
	}, []string{"table", "op"})

	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "santelocale",
		Subsystem: "store",
		Name:      "query_duration_seconds",
		Help:      "Snapshot query latency by query name.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"query"})

	streamEmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "santelocale",
		Subsystem: "live",
		Name:      "emissions_total",
		Help:      "Snapshots delivered to observers by stream.",
	}, []string{"stream"})

	seedRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "santelocale",
		Subsystem: "seed",
		Name:      "runs_total",
		Help:      "Food catalog seed attempts by outcome.",
	}, []string{"outcome"})

	seedRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "santelocale",
		Subsystem: "seed",
		Name:      "last_loaded_rows",
		Help:      "Rows written by the most recent successful seed.",
	})
)

func init() {
	Registry.MustRegister(keyOperations, storeOpens, storeWrites, queryDuration, streamEmissions, seedRuns, seedRows)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// RecordKeyOperation counts a create or unwrap of the database key.
func RecordKeyOperation(op string, err error) {
	keyOperations.WithLabelValues(op, outcome(err)).Inc()
}

// RecordStoreOpen counts an open attempt.
func RecordStoreOpen(err error) {
	storeOpens.WithLabelValues(outcome(err)).Inc()
}

// RecordWrite counts a committed write.
func RecordWrite(table, op string) {
	storeWrites.WithLabelValues(table, op).Inc()
}

// ObserveQuery records how long a snapshot query took.
func ObserveQuery(name string, started time.Time) {
	queryDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
}

// RecordEmission counts one snapshot handed to an observer.
func RecordEmission(stream string) {
	streamEmissions.WithLabelValues(stream).Inc()
}

// RecordSeed counts a seed attempt; rows is only recorded on success.
func RecordSeed(rows int, err error) {
	seedRuns.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		seedRows.Set(float64(rows))
	}
}

// WriteTextfile dumps the registry for the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
