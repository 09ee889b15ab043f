package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobStoreConns, jobStoreEmptyAcquires) }

var (
	jobStoreConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "job_store_connections",
			Help: "Connections in the Postgres pool behind the job store, by state.",
		},
		[]string{"state"}, // max, open, idle, acquired
	)
	jobStoreEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "job_store_empty_acquires",
			Help: "Acquires that had to wait for a job store connection since startup.",
		},
	)
)

// JobStorePool is one snapshot of the job store's connection pool.
type JobStorePool struct {
	Max           int32
	Open          int32
	Idle          int32
	Acquired      int32
	EmptyAcquires int64
}

func ObserveJobStorePool(p JobStorePool) {
	jobStoreConns.WithLabelValues("max").Set(float64(p.Max))
	jobStoreConns.WithLabelValues("open").Set(float64(p.Open))
	jobStoreConns.WithLabelValues("idle").Set(float64(p.Idle))
	jobStoreConns.WithLabelValues("acquired").Set(float64(p.Acquired))
	jobStoreEmptyAcquires.Set(float64(p.EmptyAcquires))
}
