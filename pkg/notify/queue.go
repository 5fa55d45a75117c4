// Package notify implements the transient user notification queue.
package notify

import (
	"container/list"
	"context"
	"time"
)

// Length of queue operation channel.
const opChanLen = 100

// Kind classifies a notification for display.
type Kind string

// Notification kinds.
const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

// Notification is a single transient user message.
type Notification struct {
	ID      uint64    `json:"id"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// Listener receives notification lifecycle events.
type Listener interface {
	// Receive is called for each notification pushed to the queue.
	Receive(n Notification) error

	// Expire is called when a notification leaves the queue, whether it
	// timed out or was dismissed.
	Expire(id uint64) error
}

// Queue relays notifications to its listeners and retains each entry for a
// fixed lifetime.  Entries expire independently; removing one does not
// disturb the display order of the others.
type Queue struct {
	ttl       time.Duration
	nextID    uint64
	entries   *list.List            // *Notification in insertion order
	listeners map[Listener]struct{} // listeners interested in events
	opChan    chan func(q *Queue)   // operations queued for this actor
	done      chan struct{}         // closed once the actor loop exits
}

// New constructs a Queue whose entries live for ttl.  Start must be called
// before the queue will process operations.
func New(ttl time.Duration) *Queue {
	return &Queue{
		ttl:       ttl,
		entries:   list.New(),
		listeners: make(map[Listener]struct{}),
		opChan:    make(chan func(q *Queue), opChanLen),
		done:      make(chan struct{}),
	}
}

// Start the Queue processing loop.
func (q *Queue) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(q.done)
			return
		case op := <-q.opChan:
			op(q)
		}
	}
}

// submit queues an operation for the actor loop.  Operations arriving after
// shutdown are discarded; expiry timers routinely outlive their queue.
func (q *Queue) submit(op func(q *Queue)) {
	select {
	case <-q.done:
	case q.opChan <- op:
	}
}

// Push appends a notification and schedules its expiry.  Listeners are
// notified for each entry; a listener returning an error is dropped.
func (q *Queue) Push(kind Kind, message string) {
	q.submit(func(q *Queue) {
		q.nextID++
		n := Notification{
			ID:      q.nextID,
			Kind:    kind,
			Message: message,
			Date:    time.Now(),
		}
		q.entries.PushBack(&n)
		for l := range q.listeners {
			if err := l.Receive(n); err != nil {
				delete(q.listeners, l)
			}
		}

		// Each entry gets its own timer; no coalescing.
		id := n.ID
		time.AfterFunc(q.ttl, func() {
			q.remove(id)
		})
	})
}

// Dismiss removes a notification before its timer fires.  Unknown IDs are
// ignored, as are entries that have already expired.
func (q *Queue) Dismiss(id uint64) {
	q.remove(id)
}

// Active returns the live notifications in insertion order.
func (q *Queue) Active() []Notification {
	result := make(chan []Notification, 1)
	q.submit(func(q *Queue) {
		ns := make([]Notification, 0, q.entries.Len())
		for e := q.entries.Front(); e != nil; e = e.Next() {
			ns = append(ns, *e.Value.(*Notification))
		}
		result <- ns
	})
	select {
	case <-q.done:
		return nil
	case ns := <-result:
		return ns
	}
}

// AddListener registers a listener to receive future events.
func (q *Queue) AddListener(l Listener) {
	q.submit(func(q *Queue) {
		q.listeners[l] = struct{}{}
	})
}

// RemoveListener deletes a listener registration, it will cease to receive
// events.
func (q *Queue) RemoveListener(l Listener) {
	q.submit(func(q *Queue) {
		delete(q.listeners, l)
	})
}

// Sync blocks until the queue has processed its operations up to this point,
// useful for unit tests.
func (q *Queue) Sync() {
	done := make(chan struct{})
	q.submit(func(q *Queue) {
		close(done)
	})
	select {
	case <-q.done:
	case <-done:
	}
}

func (q *Queue) remove(id uint64) {
	q.submit(func(q *Queue) {
		for e := q.entries.Front(); e != nil; e = e.Next() {
			if e.Value.(*Notification).ID == id {
				q.entries.Remove(e)
				for l := range q.listeners {
					if err := l.Expire(id); err != nil {
						delete(q.listeners, l)
					}
				}
				return
			}
		}
	})
}
