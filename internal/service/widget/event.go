package widget

import "github.com/zhouzirui/chat-popup/backend/internal/model/chat"

// EventKind names the state change that produced an Event.
type EventKind string

const (
	EventToggled EventKind = "toggled"
	EventDraft   EventKind = "draft"
	EventMessage EventKind = "message"
	EventReply   EventKind = "reply"
	EventClosed  EventKind = "closed"

	// EventSnapshot marks the initial state pushed to a new subscriber. The
	// widget itself never emits it.
	EventSnapshot EventKind = "snapshot"
)

// Event is delivered to listeners after every state change.
type Event struct {
	Kind  EventKind  `json:"kind"`
	State chat.State `json:"state"`
	// ScrollToLatest is set whenever the transcript or visibility changed and
	// the message list should be scrolled to the newest entry.
	ScrollToLatest bool `json:"scrollToLatest"`
}

// Listener receives widget events. Listeners are called outside the widget
// lock and may call back into the widget.
type Listener func(Event)
