// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package distributor

import (
	"sync"

	"github.com/holomush/izou/internal/core"
)

// queue is a FIFO with a wake-up signal for the single consumer. A limit of
// zero means unbounded.
type queue struct {
	mu     sync.Mutex
	items  []*core.Event
	limit  int
	signal chan struct{}
}

func newQueue(limit int) *queue {
	return &queue{
		limit:  limit,
		signal: make(chan struct{}, 1),
	}
}

func (q *queue) push(event *core.Event) bool {
	q.mu.Lock()
	if q.limit > 0 && len(q.items) >= q.limit {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, event)
	QueueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

func (q *queue) pop() (*core.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	event := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	QueueDepth.Set(float64(len(q.items)))
	return event, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain empties the queue and returns how many events were discarded.
func (q *queue) drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	QueueDepth.Set(0)
	return n
}
