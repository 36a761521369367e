package reactor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/reactor"
)

func TestRegisterUnregisterFile(t *testing.T) {
	r, err := reactor.New(16)
	require.NoError(t, err)
	defer r.Destroy()

	p0, p1 := makePipe(t)
	defer p0.Close()
	defer p1.Close()
	fd := fdOf(t, p0)

	assert.Equal(t, reactor.None, r.FileInterest(fd))

	handler := func(*reactor.Reactor, int, interface{}, reactor.Mask) {}
	require.NoError(t, r.RegisterFile(fd, reactor.Readable, handler, "payload"))
	assert.Equal(t, reactor.Readable, r.FileInterest(fd))

	require.NoError(t, r.RegisterFile(fd, reactor.Writable, handler, "payload"))
	assert.Equal(t, reactor.Readable|reactor.Writable, r.FileInterest(fd))

	r.UnregisterFile(fd, reactor.Writable)
	assert.Equal(t, reactor.Readable, r.FileInterest(fd))

	r.UnregisterFile(fd, reactor.Readable)
	assert.Equal(t, reactor.None, r.FileInterest(fd))
}

func TestRegisterFileOutOfRange(t *testing.T) {
	r, err := reactor.New(4)
	require.NoError(t, err)
	defer r.Destroy()

	err = r.RegisterFile(100, reactor.Readable, func(*reactor.Reactor, int, interface{}, reactor.Mask) {}, nil)
	assert.ErrorIs(t, err, reactor.ErrRange)
}

func TestUnregisterFileClearsBarrierWithWrite(t *testing.T) {
	r, err := reactor.New(16)
	require.NoError(t, err)
	defer r.Destroy()

	p0, p1 := makePipe(t)
	defer p0.Close()
	defer p1.Close()
	fd := fdOf(t, p1)

	handler := func(*reactor.Reactor, int, interface{}, reactor.Mask) {}
	require.NoError(t, r.RegisterFile(fd, reactor.Writable|reactor.Barrier, handler, nil))
	assert.Equal(t, reactor.Writable|reactor.Barrier, r.FileInterest(fd))

	r.UnregisterFile(fd, reactor.Writable)
	assert.Equal(t, reactor.None, r.FileInterest(fd))
}

func TestUnregisterFileOutOfRangeIsNoop(t *testing.T) {
	r, err := reactor.New(4)
	require.NoError(t, err)
	defer r.Destroy()

	assert.NotPanics(t, func() {
		r.UnregisterFile(-1, reactor.Readable)
		r.UnregisterFile(1000, reactor.Readable)
	})
}
