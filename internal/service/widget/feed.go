package widget

import "sync"

// Feed buffers a widget's events for one consumer goroutine. When the
// consumer falls behind, the oldest buffered events are dropped; every event
// carries the full state, so the newest one is always enough to render.
type Feed struct {
	ch          chan Event
	unsubscribe func()
	once        sync.Once
}

// NewFeed subscribes to w with a buffer of size events (at least 1).
func NewFeed(w *Widget, size int) *Feed {
	if size < 1 {
		size = 1
	}
	f := &Feed{ch: make(chan Event, size)}
	f.unsubscribe = w.Subscribe(f.push)
	return f
}

// Events returns the receive side. It is never closed; stop on EventClosed.
func (f *Feed) Events() <-chan Event {
	return f.ch
}

// Close unsubscribes from the widget.
func (f *Feed) Close() {
	f.once.Do(f.unsubscribe)
}

func (f *Feed) push(ev Event) {
	for {
		select {
		case f.ch <- ev:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}
