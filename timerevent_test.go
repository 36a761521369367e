package reactor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/reactor"
)

func TestTimerFiresOnce(t *testing.T) {
	r, err := reactor.New(4)
	require.NoError(t, err)
	defer r.Destroy()

	fired := 0
	r.CreateTimer(0, func(*reactor.Reactor, int64, interface{}) int64 {
		fired++
		return reactor.NoMore
	}, nil, nil)

	n := r.ProcessEvents(reactor.ProcessTimes | reactor.DontWait)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, fired)

	n = r.ProcessEvents(reactor.ProcessTimes | reactor.DontWait)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, fired)
}

func TestTimerReschedules(t *testing.T) {
	r, err := reactor.New(4)
	require.NoError(t, err)
	defer r.Destroy()

	fired := 0
	r.CreateTimer(0, func(*reactor.Reactor, int64, interface{}) int64 {
		fired++
		if fired >= 3 {
			return reactor.NoMore
		}
		return 0
	}, nil, nil)

	for i := 0; i < 3; i++ {
		r.ProcessEvents(reactor.ProcessTimes | reactor.DontWait)
	}
	assert.Equal(t, 3, fired)
}

func TestTimerCadenceFiresApproximatelyOnSchedule(t *testing.T) {
	r, err := reactor.New(4)
	require.NoError(t, err)
	defer r.Destroy()

	fired := 0
	r.CreateTimer(30, func(*reactor.Reactor, int64, interface{}) int64 {
		fired++
		return 20
	}, nil, nil)

	deadline := time.Now().Add(125 * time.Millisecond)
	for time.Now().Before(deadline) {
		r.ProcessEvents(reactor.ProcessTimes)
	}

	assert.InDelta(t, 5, fired, 1)
}

func TestDeleteTimerRunsFinalizerAfterRefcountDrops(t *testing.T) {
	r, err := reactor.New(4)
	require.NoError(t, err)
	defer r.Destroy()

	finalized := false
	id := r.CreateTimer(0, func(*reactor.Reactor, int64, interface{}) int64 {
		return reactor.NoMore
	}, nil, func(*reactor.Reactor, interface{}) {
		finalized = true
	})

	require.NoError(t, r.DeleteTimer(id))
	assert.False(t, finalized, "finalizer must not run before a pass reclaims the node")

	r.ProcessEvents(reactor.ProcessTimes | reactor.DontWait)
	assert.True(t, finalized)
}

func TestDeleteTimerSelfDeletingFromHandler(t *testing.T) {
	r, err := reactor.New(4)
	require.NoError(t, err)
	defer r.Destroy()

	finalized := false
	var id int64
	id = r.CreateTimer(0, func(rr *reactor.Reactor, timerID int64, user interface{}) int64 {
		require.NoError(t, rr.DeleteTimer(id))
		return 0 // return value is ignored once self-tombstoned
	}, nil, func(*reactor.Reactor, interface{}) {
		finalized = true
	})

	n := r.ProcessEvents(reactor.ProcessTimes | reactor.DontWait)
	assert.Equal(t, 1, n)
	assert.False(t, finalized, "node is tombstoned but not reclaimed until the next pass")

	r.ProcessEvents(reactor.ProcessTimes | reactor.DontWait)
	assert.True(t, finalized)
}

func TestDeleteTimerNotFound(t *testing.T) {
	r, err := reactor.New(4)
	require.NoError(t, err)
	defer r.Destroy()

	err = r.DeleteTimer(9999)
	assert.ErrorIs(t, err, reactor.ErrNotFound)
}

func TestTimerCreatedDuringPassIsShielded(t *testing.T) {
	r, err := reactor.New(4)
	require.NoError(t, err)
	defer r.Destroy()

	inner := 0
	outer := 0
	r.CreateTimer(0, func(rr *reactor.Reactor, _ int64, _ interface{}) int64 {
		outer++
		rr.CreateTimer(0, func(*reactor.Reactor, int64, interface{}) int64 {
			inner++
			return reactor.NoMore
		}, nil, nil)
		return reactor.NoMore
	}, nil, nil)

	n := r.ProcessEvents(reactor.ProcessTimes | reactor.DontWait)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, outer)
	assert.Equal(t, 0, inner, "timer created this pass must not fire in the same pass")

	n = r.ProcessEvents(reactor.ProcessTimes | reactor.DontWait)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, inner)
}
