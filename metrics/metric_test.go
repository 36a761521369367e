package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"trpc.group/trpc-go/reactor/metrics"
)

func TestMetrics(t *testing.T) {
	before := metrics.Get(metrics.TimersFired)
	metrics.Add(metrics.TimersFired, 1)
	assert.Equal(t, before+1, metrics.Get(metrics.TimersFired))
	metrics.Add(metrics.TimersFired, 1)
	assert.Equal(t, before+2, metrics.Get(metrics.TimersFired))

	metrics.Add(metrics.BackendPolls, 9)
	metrics.Add(metrics.BackendFiredEvents, 99)
	metrics.Add(metrics.FilesRegistered, 3)
	metrics.Add(metrics.TimersCreated, 1191)

	assert.Equal(t, uint64(0), metrics.Get(-1))
	metrics.Add(-1, 1) // unknown name is ignored, not a panic

	metrics.ShowMetrics()
	metrics.ShowMetricsOfPeriod(time.Millisecond)
}
