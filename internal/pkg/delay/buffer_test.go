package delay

import (
	"testing"

	"github.com/huttala/ping-delayer/internal/pkg/divert"
	"github.com/huttala/ping-delayer/internal/pkg/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePacket(t *testing.T, payload byte, releaseAt timing.Tick) *Packet {
	t.Helper()
	buf := divert.GetBuffer()
	buf[0] = payload
	return newPacket(buf, 1, divert.Address{}, releaseAt)
}

func TestBufferOrdersByReleaseTick(t *testing.T) {
	b := NewBuffer()
	b.Enqueue(makePacket(t, 3, 300))
	b.Enqueue(makePacket(t, 1, 100))
	b.Enqueue(makePacket(t, 2, 200))

	for _, want := range []byte{1, 2, 3} {
		p, ok := b.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, p.Data[0])
		p.release()
	}

	_, ok := b.Dequeue()
	assert.False(t, ok)
}

func TestBufferFIFOForEqualTicks(t *testing.T) {
	b := NewBuffer()
	for i := byte(0); i < 10; i++ {
		b.Enqueue(makePacket(t, i, 500))
	}

	for i := byte(0); i < 10; i++ {
		p, ok := b.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, p.Data[0], "intra-tick capture order must be preserved")
		p.release()
	}
}

func TestBufferTryPeekDoesNotRemove(t *testing.T) {
	b := NewBuffer()

	_, ok := b.TryPeek()
	assert.False(t, ok)

	b.Enqueue(makePacket(t, 1, 42))

	tick, ok := b.TryPeek()
	require.True(t, ok)
	assert.Equal(t, timing.Tick(42), tick)
	assert.Equal(t, 1, b.Len())

	tick, ok = b.TryPeek()
	require.True(t, ok)
	assert.Equal(t, timing.Tick(42), tick)

	p, ok := b.Dequeue()
	require.True(t, ok)
	p.release()
}

func TestBufferLen(t *testing.T) {
	b := NewBuffer()
	assert.Equal(t, 0, b.Len())

	b.Enqueue(makePacket(t, 0, 1))
	b.Enqueue(makePacket(t, 0, 2))
	assert.Equal(t, 2, b.Len())

	p, _ := b.Dequeue()
	p.release()
	assert.Equal(t, 1, b.Len())

	b.Clear()
	assert.Equal(t, 0, b.Len())
}

func TestBufferClearReleasesPayloads(t *testing.T) {
	b := NewBuffer()
	packets := make([]*Packet, 5)
	for i := range packets {
		packets[i] = makePacket(t, byte(i), timing.Tick(i))
		b.Enqueue(packets[i])
	}

	dropped := b.Clear()
	assert.Equal(t, 5, dropped)
	assert.Equal(t, 0, b.Len())

	for _, p := range packets {
		assert.Nil(t, p.buf, "payload buffer must be returned to the pool")
	}

	assert.Equal(t, 0, b.Clear(), "clear on empty buffer drops nothing")
}

func TestPacketReleaseIdempotent(t *testing.T) {
	p := makePacket(t, 1, 1)
	p.release()
	p.release()
	assert.Nil(t, p.buf)
	assert.Nil(t, p.Data)
}
