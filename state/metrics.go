package state

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	peersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wgrelay",
		Name:      "peers",
		Help:      "Number of peers in the committed server config.",
	})
	persistenceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wgrelay",
		Name:      "persistence_failures_total",
		Help:      "Number of mutating operations rejected because the server config could not be saved.",
	})
)

// RegisterMetrics registers the state collectors with reg
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{peersGauge, persistenceFailures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
