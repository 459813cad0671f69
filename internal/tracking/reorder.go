package tracking

import (
	"sync"
	"time"
)

// node is an internal linked list node for the reorder buffer.
type node struct {
	sig  Signal
	next *node
}

// ReorderBuffer restores time order over the merged signal streams of
// independently running devices. Per-device chains produce in order, but
// streams interleave with bounded skew; signals are held back until they
// are older than the holdoff relative to the newest signal seen, then
// released oldest first.
type ReorderBuffer struct {
	holdoff time.Duration

	mu     sync.Mutex
	head   *node
	size   int
	newest time.Time
}

// NewReorderBuffer creates a buffer releasing signals once they trail the
// newest seen start time by at least holdoff.
func NewReorderBuffer(holdoff time.Duration) *ReorderBuffer {
	return &ReorderBuffer{holdoff: holdoff}
}

// Insert adds a signal at its time-ordered position.
func (b *ReorderBuffer) Insert(sig Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sig.Time.After(b.newest) {
		b.newest = sig.Time
	}

	n := &node{sig: sig}
	b.size++

	if b.head == nil || sig.Time.Before(b.head.sig.Time) {
		n.next = b.head
		b.head = n
		return
	}

	current := b.head
	for current.next != nil && !sig.Time.Before(current.next.sig.Time) {
		current = current.next
	}
	n.next = current.next
	current.next = n
}

// Release removes and returns, oldest first, all signals that trail the
// newest seen start time by at least the holdoff.
func (b *ReorderBuffer) Release() []Signal {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.newest.Add(-b.holdoff)

	var released []Signal
	for b.head != nil && !b.head.sig.Time.After(cutoff) {
		released = append(released, b.head.sig)
		b.head = b.head.next
		b.size--
	}
	return released
}

// DrainAll removes and returns all buffered signals in time order.
func (b *ReorderBuffer) DrainAll() []Signal {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == nil {
		return nil
	}

	released := make([]Signal, 0, b.size)
	for b.head != nil {
		released = append(released, b.head.sig)
		b.head = b.head.next
	}
	b.size = 0
	return released
}

// Size returns the number of buffered signals.
func (b *ReorderBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}
