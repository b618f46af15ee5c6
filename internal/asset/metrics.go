package asset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for asset operations.
type Observer interface {
	RecordUpload(duration time.Duration, sizeBytes uint64, err error)
	RecordDelete(duration time.Duration, err error)
}

// PrometheusObserver exports asset-store metrics to Prometheus.
type PrometheusObserver struct {
	duration        *prometheus.HistogramVec
	operationErrors *prometheus.CounterVec
	uploadBytes     prometheus.Counter
}

// NewPrometheusObserver registers upload/delete metrics under namespace.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "memeboard"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "operation_duration_seconds",
			Help:      "Latency for asset store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "operation_errors_total",
			Help:      "Count of asset store failures.",
		}, []string{"operation"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "uploaded_bytes_total",
			Help:      "Cumulative payload size successfully uploaded.",
		}),
	}
	if err := register(reg, &o.duration); err != nil {
		return nil, err
	}
	if err := register(reg, &o.operationErrors); err != nil {
		return nil, err
	}
	if err := register(reg, &o.uploadBytes); err != nil {
		return nil, err
	}
	return o, nil
}

// register adopts an already-registered collector of the same type.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				*c = existing
				return nil
			}
		}
		return fmt.Errorf("register asset metric: %w", err)
	}
	return nil
}

func (o *PrometheusObserver) RecordUpload(duration time.Duration, sizeBytes uint64, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues("upload").Observe(duration.Seconds())
	if err != nil {
		o.operationErrors.WithLabelValues("upload").Inc()
		return
	}
	o.uploadBytes.Add(float64(sizeBytes))
}

func (o *PrometheusObserver) RecordDelete(duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues("delete").Observe(duration.Seconds())
	// An already-missing asset is the idempotent success case.
	if err != nil && !errors.Is(err, ErrNotFound) {
		o.operationErrors.WithLabelValues("delete").Inc()
	}
}

// ObservedStore reports every call of the wrapped store to an Observer.
type ObservedStore struct {
	next     Store
	observer Observer
	now      func() time.Time
}

// Observe wraps next. A nil observer disables reporting.
func Observe(next Store, observer Observer) *ObservedStore {
	if observer == nil {
		observer = nopObserver{}
	}
	return &ObservedStore{next: next, observer: observer, now: time.Now}
}

func (s *ObservedStore) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	start := s.now()
	res, err := s.next.Upload(ctx, req)
	s.observer.RecordUpload(s.now().Sub(start), res.SizeBytes, err)
	return res, err
}

func (s *ObservedStore) Delete(ctx context.Context, providerID string) error {
	start := s.now()
	err := s.next.Delete(ctx, providerID)
	s.observer.RecordDelete(s.now().Sub(start), err)
	return err
}

// List forwards to the wrapped store when it can enumerate assets.
func (s *ObservedStore) List(ctx context.Context, prefix string) ([]Listed, error) {
	l, ok := s.next.(Lister)
	if !ok {
		return nil, errors.New("asset: store cannot list assets")
	}
	return l.List(ctx, prefix)
}

type nopObserver struct{}

func (nopObserver) RecordUpload(time.Duration, uint64, error) {}

func (nopObserver) RecordDelete(time.Duration, error) {}

var (
	_ Observer = (*PrometheusObserver)(nil)
	_ Store    = (*ObservedStore)(nil)
	_ Lister   = (*ObservedStore)(nil)
)
