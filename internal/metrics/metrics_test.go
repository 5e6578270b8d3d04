package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	Register(reg)

	FramesDropped.WithLabelValues(DropMalformed).Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "relaychat_connections_active")
	assert.Contains(t, names, "relaychat_sessions_created_total")
	assert.Contains(t, names, "relaychat_slow_consumer_evictions_total")
	assert.Contains(t, names, "relaychat_frames_dropped_total")
	assert.GreaterOrEqual(t, testutil.ToFloat64(FramesDropped.WithLabelValues(DropMalformed)), 1.0)
}
