package divert

import (
	"testing"

	"github.com/huttala/ping-delayer/internal/pkg/constants"
	"github.com/stretchr/testify/assert"
)

func TestGetBufferSize(t *testing.T) {
	b := GetBuffer()
	defer PutBuffer(b)
	assert.Len(t, b, constants.MaxPacketSize, "buffers must hold a maximum-size IP packet")
}

func TestPutBufferRoundTrip(t *testing.T) {
	b := GetBuffer()
	b[0] = 0xAB
	PutBuffer(b)

	// The pool never hands out undersized buffers, even after sliced
	// payloads go back in.
	short := GetBuffer()
	PutBuffer(short[:10])
	again := GetBuffer()
	assert.Len(t, again, constants.MaxPacketSize)
	PutBuffer(again)
}

func TestPutBufferRejectsForeignSlices(t *testing.T) {
	assert.NotPanics(t, func() {
		PutBuffer(make([]byte, 16))
	})
	assert.Len(t, GetBuffer(), constants.MaxPacketSize)
}
