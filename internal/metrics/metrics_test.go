package metrics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCook(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordCook(StrategyPacked, nil, time.Millisecond)
	m.RecordCook(StrategyPacked, errors.New("bad"), time.Millisecond)
	m.RecordCook(StrategyPacked, nil, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cooks.WithLabelValues(StrategyPacked, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cooks.WithLabelValues(StrategyPacked, "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CookDuration))
}

func TestRecordTopologyAndAttributes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordTopology(true)
	m.RecordTopology(false)
	m.RecordTopology(false)
	m.RecordAttributes(3, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Topology.WithLabelValues("rebuild")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Topology.WithLabelValues("reuse")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Attributes.WithLabelValues("copied")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Attributes.WithLabelValues("skipped")))
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.TransformRecomputes.Inc()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	assert.Contains(t, buf.String(), "copytopoints_transform_recomputes_total 1")
}
