package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// otherMessage is the broadcast label for names no module subscribes to.
const otherMessage = "other"

// Metrics holds Prometheus metrics for the application coordinator.
//
// Metrics:
//   - boxd_application_broadcasts_total{message} - messages broadcast,
//     labelled "other" unless a module subscribes to the name
//   - boxd_application_module_starts_total{module} - instances started
//   - boxd_application_module_stops_total{module} - instances stopped
//   - boxd_application_module_errors_total{module,op} - module failures
//   - boxd_application_modules_running - started instances
type Metrics struct {
	BroadcastsTotal   *prometheus.CounterVec
	ModuleStartsTotal *prometheus.CounterVec
	ModuleStopsTotal  *prometheus.CounterVec
	ModuleErrorsTotal *prometheus.CounterVec
	ModulesRunning    prometheus.Gauge
}

// NewMetrics creates the coordinator metrics and registers them with reg.
// A nil reg leaves them unregistered, which tests rely on to create many
// applications in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BroadcastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "boxd",
				Subsystem: "application",
				Name:      "broadcasts_total",
				Help:      "Total number of messages broadcast",
			},
			[]string{"message"},
		),
		ModuleStartsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "boxd",
				Subsystem: "application",
				Name:      "module_starts_total",
				Help:      "Total number of module instances started",
			},
			[]string{"module"},
		),
		ModuleStopsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "boxd",
				Subsystem: "application",
				Name:      "module_stops_total",
				Help:      "Total number of module instances stopped",
			},
			[]string{"module"},
		),
		ModuleErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "boxd",
				Subsystem: "application",
				Name:      "module_errors_total",
				Help:      "Total number of module failures by operation",
			},
			[]string{"module", "op"}, // "create", "init", "message", "destroy"
		),
		ModulesRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "boxd",
				Subsystem: "application",
				Name:      "modules_running",
				Help:      "Number of started module instances",
			},
		),
	}
}
