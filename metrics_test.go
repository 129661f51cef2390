package someip

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveConnectionStateSetsExactlyOneGauge(t *testing.T) {
	addr := "metrics-test-endpoint:1"
	observeConnectionState(addr, ConnectionConnected)

	assert.Equal(t, 1.0, testutil.ToFloat64(connectionStateGauge.WithLabelValues(addr, "Connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(connectionStateGauge.WithLabelValues(addr, "Disconnected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(connectionStateGauge.WithLabelValues(addr, "Failed")))

	observeConnectionState(addr, ConnectionFailed)
	assert.Equal(t, 0.0, testutil.ToFloat64(connectionStateGauge.WithLabelValues(addr, "Connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(connectionStateGauge.WithLabelValues(addr, "Failed")))
}

func TestSdQueueDroppedCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(sdQueueDroppedTotal.WithLabelValues("client", "TestKind"))
	sdQueueDroppedTotal.WithLabelValues("client", "TestKind").Inc()
	after := testutil.ToFloat64(sdQueueDroppedTotal.WithLabelValues("client", "TestKind"))
	assert.Equal(t, before+1, after)
}
