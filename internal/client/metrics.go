package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtroode/userdir/internal/model"
)

// Metrics records backend call outcomes.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the backend collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "userdir",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Backend requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "userdir",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op model.Operation, start time.Time, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(op), outcome(err)).Inc()
	m.duration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch err.(type) {
	case nil:
		return "success"
	case *model.ValidationError:
		return "invalid"
	case *model.NotFoundError:
		return "not_found"
	case *model.MalformedResponseError:
		return "malformed"
	default:
		return "error"
	}
}
