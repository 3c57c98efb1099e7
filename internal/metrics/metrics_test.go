package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Transition("pendente_contabil", "contabil_ok")
	m.Transition("pendente_contabil", "contabil_ok")
	m.Conflict("advance")
	m.EntryCreated()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("pendente_contabil", "contabil_ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("advance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries))
}
