package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slot_auction"

// Metrics holds the Prometheus collectors of one process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	bidsAccepted          prometheus.Counter
	bidsRejected          *prometheus.CounterVec
	sessionTransitions    *prometheus.CounterVec
	txRetries             *prometheus.CounterVec
	notificationsRelayed  *prometheus.CounterVec
	notificationRelayErrs *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{Registry: registry}

	m.bidsAccepted = newCounterWithoutLabels(registry, "bids_accepted_total",
		"Count of bids accepted by the ledger.")
	m.bidsRejected = newCounter(registry, "bids_rejected_total",
		"Count of bids rejected by the validator, by reason.", []string{"reason"})
	m.sessionTransitions = newCounter(registry, "session_transitions_total",
		"Count of auction session transitions, by target status.", []string{"status"})
	m.txRetries = newCounter(registry, "tx_retries_total",
		"Count of store transactions retried after a conflict, by operation.", []string{"operation"})
	m.notificationsRelayed = newCounter(registry, "notifications_relayed_total",
		"Count of outbox notifications delivered, by sink.", []string{"sink"})
	m.notificationRelayErrs = newCounter(registry, "notification_relay_errors_total",
		"Count of failed outbox deliveries, by sink.", []string{"sink"})

	return m
}

func newCounter(registry *prometheus.Registry, name, help string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	registry.MustRegister(counter)
	return counter
}

func newCounterWithoutLabels(registry *prometheus.Registry, name, help string) prometheus.Counter {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
	registry.MustRegister(counter)
	return counter
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordBidAccepted() {
	if m == nil {
		return
	}
	m.bidsAccepted.Inc()
}

func (m *Metrics) RecordBidRejected(reason string) {
	if m == nil {
		return
	}
	m.bidsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordSessionTransition(status string) {
	if m == nil {
		return
	}
	m.sessionTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordTxRetry(operation string) {
	if m == nil {
		return
	}
	m.txRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordNotificationRelayed(sink string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notificationRelayErrs.WithLabelValues(sink).Inc()
		return
	}
	m.notificationsRelayed.WithLabelValues(sink).Inc()
}
