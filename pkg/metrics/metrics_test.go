package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGenerationTotal(t *testing.T) {
	c := GenerationTotal.WithLabelValues("ollama", "ok")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestObserveStage(t *testing.T) {
	ObserveStage("sanitize", time.Now().Add(-time.Millisecond))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(StageDuration), 1)
}
