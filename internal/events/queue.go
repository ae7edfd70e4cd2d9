package events

import (
	"context"
	"log"
	"sync/atomic"
)

// Publisher is the outbound port the task service writes to.
type Publisher interface {
	Publish(Event)
}

// Sink receives events in the order they were published.
type Sink interface {
	Deliver(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Deliver(e Event) { f(e) }

// Queue is a bounded FIFO drained by a single dispatcher goroutine. Publish
// never blocks: when the buffer is full the event is dropped and counted.
type Queue struct {
	ch      chan Event
	dropped atomic.Uint64
	done    chan struct{}
}

var _ Publisher = (*Queue)(nil)

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

func (q *Queue) Publish(e Event) {
	select {
	case q.ch <- e:
	default:
		q.dropped.Add(1)
		log.Printf("[events] ⚠️  queue full, dropped %s for task %s", e.Kind, e.TaskID)
	}
}

// Run dispatches to sink until ctx is cancelled, then drains what is
// already buffered so committed mutations still get their notification.
func (q *Queue) Run(ctx context.Context, sink Sink) {
	defer close(q.done)
	for {
		select {
		case e := <-q.ch:
			q.deliver(sink, e)
		case <-ctx.Done():
			for {
				select {
				case e := <-q.ch:
					q.deliver(sink, e)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) deliver(sink Sink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[events] ❌ sink panic for %s: %v", e.Kind, r)
		}
	}()
	sink.Deliver(e)
}

// Wait blocks until Run has returned.
func (q *Queue) Wait() {
	<-q.done
}

func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) Len() int {
	return len(q.ch)
}
