// Package dtn implements the delay-tolerant store-and-forward queue of
// spec §4.5: messages whose destination isn't reachable yet wait here,
// retried on a fixed tick by whatever routes become available. Grounded on
// dtn.cpp's array-based Q/QN and dtn_task.
package dtn

import (
	"fmt"
	"sync"
	"time"

	"github.com/fusionmesh/meshnode/meshid"
)

// MaxItems bounds the queue exactly like DTN_MAX_ITEMS (spec §3).
const MaxItems = 32

// TickInterval is how often the queue's owner should attempt the head item,
// matching dtn_task's 5000ms vTaskDelay.
const TickInterval = 5 * time.Second

// Item is one queued outbound message.
type Item struct {
	Dest    meshid.NodeID
	Payload []byte
}

// Queue is a bounded FIFO. Items never expire (spec §4.5); a full queue
// rejects new enqueues.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends an item, returning false if the queue is at capacity,
// matching dtn_enqueue's QN >= DTN_MAX_ITEMS check.
func (q *Queue) Enqueue(dest meshid.NodeID, payload []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= MaxItems {
		return false
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	q.items = append(q.items, Item{Dest: dest, Payload: cp})
	return true
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Peek returns the head item without removing it, or ok=false if empty —
// dtn_task only ever looks at Q[0], never the rest of the queue, on each
// tick (spec §4.5: head-of-line, not a fair scan).
func (q *Queue) Peek() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// PopFront removes the head item after it has been successfully routed,
// matching dtn_task's shift-down-by-one on success.
func (q *Queue) PopFront() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return fmt.Errorf("dtn: pop from empty queue")
	}
	q.items = q.items[1:]
	return nil
}
