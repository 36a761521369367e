package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProcessTimeEventsForcesExpiryOnBackwardClockJump exercises the
// backward-jump branch of processTimeEvents directly: lastWallTime is poked
// forward rather than mocking time.Now, which produces the same "now is
// earlier than last observed" condition the real clock-stepped-backward case
// triggers.
func TestProcessTimeEventsForcesExpiryOnBackwardClockJump(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)
	defer r.Destroy()

	fired := 0
	r.CreateTimer(100, func(*Reactor, int64, interface{}) int64 {
		fired++
		return NoMore
	}, nil, nil)
	r.CreateTimer(200, func(*Reactor, int64, interface{}) int64 {
		fired++
		return NoMore
	}, nil, nil)

	n := r.ProcessEvents(ProcessTimes | DontWait)
	assert.Equal(t, 0, n, "neither timer is due yet")

	r.lastWallTime += 10

	n = r.ProcessEvents(ProcessTimes | DontWait)
	assert.Equal(t, 2, n, "a backward jump forces every pending timer to be treated as expired")
	assert.Equal(t, 2, fired)
}
