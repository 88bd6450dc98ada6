package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ItemRejected("suspicious_domain")
	m.ItemRejected("suspicious_domain")
	m.ItemCurated("cyber")
	m.DuplicatesCollapsed(3)
	m.DuplicatesCollapsed(0)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.SourceValidated(true)
	m.SourcePromotion("added")
	m.ObserveProbe("https", 120*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.itemsRejected.WithLabelValues("suspicious_domain")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemsCurated.WithLabelValues("cyber")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.duplicatesCollapsed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.probeDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ItemRejected("x")
	m.ItemCurated("cyber")
	m.DuplicatesCollapsed(1)
	m.CacheLookup(true)
	m.SourceValidated(false)
	m.SourcePromotion("added")
	m.ObserveProbe("http", time.Second)
}
