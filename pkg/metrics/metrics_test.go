package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.RecordBidAccepted()
	m.RecordBidAccepted()
	m.RecordBidRejected("BidTooLow")
	m.RecordSessionTransition("ACTIVE")
	m.RecordTxRetry("place_bid")
	m.RecordNotificationRelayed("redis", nil)
	m.RecordNotificationRelayed("redis", errors.New("boom"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.bidsAccepted))
	require.Equal(t, 1.0, testutil.ToFloat64(m.bidsRejected.WithLabelValues("BidTooLow")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.sessionTransitions.WithLabelValues("ACTIVE")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.txRetries.WithLabelValues("place_bid")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.notificationsRelayed.WithLabelValues("redis")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.notificationRelayErrs.WithLabelValues("redis")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordBidAccepted()
		m.RecordBidRejected("BelowReserve")
		m.RecordSessionTransition("PAUSED")
		m.RecordTxRetry("end_session")
		m.RecordNotificationRelayed("rabbitmq", nil)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordBidAccepted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "slot_auction_bids_accepted_total 1"))
}
