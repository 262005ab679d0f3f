package modbus

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional, nil-safe set of counters on a connection's
// transaction manager: requests submitted, responses matched, timeouts,
// retries and checksum errors. Observability of the core's own behavior
// gets a real hook rather than silent dead code.
type Metrics struct {
	requestsSent      prometheus.Counter
	responsesReceived prometheus.Counter
	timeouts          prometheus.Counter
	retries           prometheus.Counter
	checksumErrors    prometheus.Counter
}

// NewMetrics builds a Metrics registered under reg with the given constant
// labels (e.g. connection or unit id), so multiple connections can share a
// registry without colliding on metric identity.
func NewMetrics(reg prometheus.Registerer, constLabels prometheus.Labels) *Metrics {
	m := &Metrics{
		requestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "modbus",
			Name:        "requests_sent_total",
			Help:        "Modbus requests written to the transport.",
			ConstLabels: constLabels,
		}),
		responsesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "modbus",
			Name:        "responses_received_total",
			Help:        "Modbus responses matched to a pending transaction.",
			ConstLabels: constLabels,
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "modbus",
			Name:        "timeouts_total",
			Help:        "Modbus transactions that exhausted their retry budget.",
			ConstLabels: constLabels,
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "modbus",
			Name:        "retries_total",
			Help:        "Modbus transaction retransmissions.",
			ConstLabels: constLabels,
		}),
		checksumErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "modbus",
			Name:        "checksum_errors_total",
			Help:        "Frames discarded by a framer due to CRC/LRC mismatch or bad framing.",
			ConstLabels: constLabels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requestsSent, m.responsesReceived, m.timeouts, m.retries, m.checksumErrors)
	}
	return m
}
