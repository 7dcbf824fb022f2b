package oracle

import (
	"container/heap"
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
)

// trackedMarket is one social market in the resolution queue.
type trackedMarket struct {
	market    domain.SocialMarket
	lastCheck time.Time
	nextDue   time.Time
	index     int // position in the heap, maintained by heap.Interface
}

// dueQueue is a min-heap of tracked markets ordered by next-due time, so a
// tick only touches the entries that are actually due instead of scanning
// every tracked market.
type dueQueue []*trackedMarket

func (q dueQueue) Len() int            { return len(q) }
func (q dueQueue) Less(i, j int) bool  { return q[i].nextDue.Before(q[j].nextDue) }
func (q dueQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *dueQueue) Push(x any)         { t := x.(*trackedMarket); t.index = len(*q); *q = append(*q, t) }
func (q *dueQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// peek returns the earliest-due entry without removing it.
func (q dueQueue) peek() *trackedMarket {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

// reschedule updates an entry's next-due time in place.
func (q *dueQueue) reschedule(t *trackedMarket, nextDue time.Time) {
	t.nextDue = nextDue
	heap.Fix(q, t.index)
}

// remove deletes an entry from the heap.
func (q *dueQueue) remove(t *trackedMarket) {
	if t.index >= 0 {
		heap.Remove(q, t.index)
	}
}
