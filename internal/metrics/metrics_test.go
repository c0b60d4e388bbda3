package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveToggle("category", "select")
	m.ObserveToggle("category", "select")
	m.ObserveToggle("identity", "deselect")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TogglesTotal.WithLabelValues("category", "select")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TogglesTotal.WithLabelValues("identity", "deselect")))

	m.ObserveClear()
	m.ObserveFocusReset()
	m.ObserveProjection()
	m.ObserveProjection()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClearsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FocusResets))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProjectionsTotal))

	m.ObserveSave(nil, 4)
	m.ObserveSave(errors.New("boom"), 9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues("error")))

	m.ObserveReload(nil, map[string]int{"identity": 3, "subsub": 7})
	assert.Equal(t, 7.0, testutil.ToFloat64(m.TaxonomyNodes.WithLabelValues("subsub")))
	m.ObserveReload(errors.New("parse"), nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReloadsTotal.WithLabelValues("error")))

	m.ObservePublish(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("ok")))

	m.ObserveStore("put", time.Now())
	m.SetStored(12)
	assert.Equal(t, 12.0, testutil.ToFloat64(m.SelectionsStored))

	count, err := testutil.GatherAndCount(reg, "audienced_selection_size", "audienced_store_op_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveToggle("identity", "select")
		m.ObserveClear()
		m.ObserveFocusReset()
		m.ObserveProjection()
		m.ObserveSave(nil, 1)
		m.ObserveReload(nil, nil)
		m.ObservePublish(nil)
		m.ObserveStore("get", time.Now())
		m.SetStored(1)
	})
}

func TestDefault_RegistersOnce(t *testing.T) {
	assert.Same(t, Default(), Default())
}
