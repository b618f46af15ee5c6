package media

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	orphaned *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	orphaned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memeboard",
		Subsystem: "media",
		Name:      "orphaned_assets_total",
		Help:      "Asset deletions that failed and left an unreferenced asset behind.",
	}, []string{"operation"})

	if err := reg.Register(orphaned); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		orphaned = existing
	}
	return &metrics{orphaned: orphaned}, nil
}

func (m *metrics) orphan(operation string) {
	m.orphaned.WithLabelValues(operation).Inc()
}
