// Package divert abstracts the kernel packet diversion capability the
// engine consumes. On Windows it is backed by the WinDivert driver via
// github.com/imgk/divert-go; everywhere else Open fails and callers supply
// their own Handle (tests do exactly that).
package divert

import (
	"sync"

	"github.com/huttala/ping-delayer/internal/pkg/constants"
)

// Address is the opaque routing descriptor the diversion layer attaches to
// every received packet. It must be passed back unchanged on re-injection.
// The layout matches the WinDivert address structure; the engine never
// looks inside.
type Address struct {
	raw [10]uint64
}

// Config describes how a diversion handle is opened.
type Config struct {
	// Filter is a WinDivert filter expression; "true" diverts all traffic.
	Filter string
	// Priority orders this handle against other diversion handles on the
	// same layer.
	Priority int16
}

// Handle is a diversion capability: blocking receive of diverted packets,
// re-injection, and shutdown. Shutdown aborts a blocked Recv; that error
// return is the expected cancellation path, not a failure.
type Handle interface {
	// Recv blocks until a diverted packet is available and copies it into
	// buf, filling addr with its routing descriptor. Returns the packet
	// length.
	Recv(buf []byte, addr *Address) (uint, error)
	// Send re-injects a packet with the routing descriptor it was
	// captured with.
	Send(buf []byte, addr *Address) (uint, error)
	// Shutdown stops both directions of the handle, unblocking any
	// pending Recv.
	Shutdown() error
	// Close releases the handle.
	Close() error
}

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, constants.MaxPacketSize)
		return &b
	},
}

// GetBuffer returns a max-MTU packet buffer from the pool. Every buffer
// handed out must come back through PutBuffer exactly once.
func GetBuffer() []byte {
	return *bufPool.Get().(*[]byte)
}

// PutBuffer returns a packet buffer to the pool.
func PutBuffer(b []byte) {
	b = b[:cap(b)]
	if len(b) < constants.MaxPacketSize {
		return
	}
	bufPool.Put(&b)
}
