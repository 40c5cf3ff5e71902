package daemon

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsPeriodicJob(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)

	var ticks atomic.Int32
	id, err := s.SchedulePeriodic("rebuild", 20*time.Millisecond, func() { ticks.Add(1) })
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"rebuild"}, s.Jobs())

	s.Start()
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}
