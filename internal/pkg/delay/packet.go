package delay

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/huttala/ping-delayer/internal/pkg/divert"
	"github.com/huttala/ping-delayer/internal/pkg/timing"
)

// Packet is a captured packet waiting for re-injection. It owns a pooled
// payload buffer from the divert package; release returns it exactly once.
type Packet struct {
	// Data is the packet payload, a prefix of the pooled buffer.
	Data []byte
	// Addr is the routing descriptor required for re-injection.
	Addr divert.Address
	// ReleaseAt is the tick at which the packet becomes eligible to leave.
	ReleaseAt timing.Tick

	buf []byte // backing pooled buffer
	seq uint64 // FIFO tiebreaker for equal release ticks, set on enqueue
}

func newPacket(buf []byte, n uint, addr divert.Address, releaseAt timing.Tick) *Packet {
	return &Packet{
		Data:      buf[:n],
		Addr:      addr,
		ReleaseAt: releaseAt,
		buf:       buf,
	}
}

// release returns the payload buffer to the divert pool. Safe to call more
// than once; only the first call does anything.
func (p *Packet) release() {
	if p.buf == nil {
		return
	}
	divert.PutBuffer(p.buf)
	p.buf = nil
	p.Data = nil
}

// describePacket decodes just enough of a diverted IP packet to log its
// endpoints. Debug-path only; the engine otherwise treats payloads as
// opaque.
func describePacket(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	layerType := layers.LayerTypeIPv4
	if data[0]>>4 == 6 {
		layerType = layers.LayerTypeIPv6
	}
	pkt := gopacket.NewPacket(data, layerType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	nl := pkt.NetworkLayer()
	// A header too short to parse still yields a network layer, but one
	// with no contents.
	if nl == nil || len(nl.LayerContents()) == 0 {
		return fmt.Sprintf("undecodable (%d bytes)", len(data))
	}
	flow := nl.NetworkFlow()
	if tl := pkt.TransportLayer(); tl != nil {
		return fmt.Sprintf("%s %s > %s", tl.LayerType(), flow.Src(), flow.Dst())
	}
	return fmt.Sprintf("%s > %s", flow.Src(), flow.Dst())
}
