package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the governance core. One
// instance is created in main and shared by reference.
type Metrics struct {
	RetentionRunsTotal    *prometheus.CounterVec
	RowsDeletedTotal      *prometheus.CounterVec
	RowsScrubbedTotal     *prometheus.CounterVec
	StaleRunsRecovered    prometheus.Counter
	JobCheckpointsTotal   *prometheus.CounterVec
	AbuseAttemptsTotal    prometheus.Counter
	AbuseBansIssuedTotal  prometheus.Counter
	AbuseBannedRejections prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on a caller-supplied registerer so tests can
// use isolated registries.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RetentionRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_retention_runs_total",
			Help: "Retention passes by final status.",
		}, []string{"status"}),
		RowsDeletedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_rows_deleted_total",
			Help: "Rows destroyed by retention, per dataset.",
		}, []string{"dataset"}),
		RowsScrubbedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_rows_scrubbed_total",
			Help: "Raw IP columns scrubbed by retention, per dataset.",
		}, []string{"dataset"}),
		StaleRunsRecovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodian_stale_runs_recovered_total",
			Help: "Running retention records failed by the recovery sweep.",
		}),
		JobCheckpointsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_job_checkpoints_total",
			Help: "Durable cursor checkpoints written, per job.",
		}, []string{"job"}),
		AbuseAttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodian_abuse_attempts_total",
			Help: "Abuse attempts registered across all subjects.",
		}),
		AbuseBansIssuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodian_abuse_bans_issued_total",
			Help: "Temporary bans issued.",
		}),
		AbuseBannedRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodian_abuse_banned_rejections_total",
			Help: "Ban-status checks answered while a ban was active.",
		}),
	}
}
