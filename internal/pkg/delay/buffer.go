package delay

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/huttala/ping-delayer/internal/pkg/timing"
)

// Buffer is the time-ordered holding queue between the capture and release
// workers. Packets come out in ascending ReleaseAt order, FIFO for equal
// ticks. All operations are serialized by one mutex; critical sections
// contain queue work only, never I/O.
type Buffer struct {
	mu    sync.Mutex
	items packetHeap
	seq   uint64
	depth atomic.Int64 // sampled lock-free by the observable surface
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Enqueue inserts a packet. The buffer owns it until Dequeue or Clear.
func (b *Buffer) Enqueue(p *Packet) {
	b.mu.Lock()
	b.seq++
	p.seq = b.seq
	heap.Push(&b.items, p)
	b.mu.Unlock()
	b.depth.Add(1)
}

// TryPeek returns the earliest release tick without removing the packet.
func (b *Buffer) TryPeek() (timing.Tick, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return 0, false
	}
	return b.items[0].ReleaseAt, true
}

// Dequeue removes and returns the earliest packet. Ownership transfers to
// the caller, who must release it after the re-injection attempt.
func (b *Buffer) Dequeue() (*Packet, bool) {
	b.mu.Lock()
	if len(b.items) == 0 {
		b.mu.Unlock()
		return nil, false
	}
	p := heap.Pop(&b.items).(*Packet)
	b.mu.Unlock()
	b.depth.Add(-1)
	return p, true
}

// Len returns the number of queued packets.
func (b *Buffer) Len() int {
	return int(b.depth.Load())
}

// Clear drains the buffer, returning every payload to the pool. Returns
// the number of packets dropped.
func (b *Buffer) Clear() int {
	b.mu.Lock()
	drained := b.items
	b.items = nil
	b.mu.Unlock()

	for _, p := range drained {
		p.release()
	}
	b.depth.Add(int64(-len(drained)))
	return len(drained)
}

// packetHeap orders packets by release tick, then by enqueue sequence so
// packets stamped within the same tick keep their capture order.
type packetHeap []*Packet

func (h packetHeap) Len() int { return len(h) }

func (h packetHeap) Less(i, j int) bool {
	if h[i].ReleaseAt != h[j].ReleaseAt {
		return h[i].ReleaseAt < h[j].ReleaseAt
	}
	return h[i].seq < h[j].seq
}

func (h packetHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *packetHeap) Push(x any) { *h = append(*h, x.(*Packet)) }

func (h *packetHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return p
}
