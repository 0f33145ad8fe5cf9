package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-popup/backend/internal/model/chat"
	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
)

const (
	// DefaultTypingDelay is how long the bot "types" before replying.
	DefaultTypingDelay = 800 * time.Millisecond
	// DefaultTimeFormat renders message timestamps as hour:minute.
	DefaultTimeFormat = "15:04"

	// KeyEnter is the commit key.
	KeyEnter = "Enter"
)

// Replier produces the bot reply for the latest user message.
type Replier interface {
	Reply(ctx context.Context, latestUserText string) (string, error)
}

// Options configures a Widget. Zero fields fall back to defaults.
type Options struct {
	Persona     persona.Persona
	TypingDelay time.Duration
	TimeFormat  string
	Clock       Clock
	IDs         IDGenerator
	Scheduler   Scheduler
	Replier     Replier
}

// KeyEvent is a key press in the draft input.
type KeyEvent struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift"`
}

// KeyResult reports how a key press was handled. PreventDefault tells the
// caller to suppress the key's default action.
type KeyResult struct {
	Handled        bool `json:"handled"`
	PreventDefault bool `json:"preventDefault"`
	Sent           bool `json:"sent"`
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Widget is the chat popup state machine. It owns the transcript, the
// visibility flag, the draft buffer and at most one pending reply timer.
// All methods are safe for concurrent use.
type Widget struct {
	persona    persona.Persona
	delay      time.Duration
	timeFormat string
	clock      Clock
	ids        IDGenerator
	sched      Scheduler
	replier    Replier

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      chat.State
	pending    Timer
	generation uint64
	closed     bool

	listeners    []listenerEntry
	nextListener uint64
}

// New mounts a widget seeded with the persona greeting. The popup starts
// closed.
func New(opts Options) *Widget {
	if opts.TypingDelay <= 0 {
		opts.TypingDelay = DefaultTypingDelay
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = DefaultTimeFormat
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.IDs == nil {
		opts.IDs = UUIDGenerator{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Widget{
		persona:    opts.Persona,
		delay:      opts.TypingDelay,
		timeFormat: opts.TimeFormat,
		clock:      opts.Clock,
		ids:        opts.IDs,
		sched:      opts.Scheduler,
		replier:    opts.Replier,
		ctx:        ctx,
		cancel:     cancel,
	}

	w.state.Messages = []chat.Message{w.newMessage(chat.AuthorBot, opts.Persona.Greeting)}
	w.state.Version = 1
	return w
}

// Persona returns the bot profile the widget was mounted with.
func (w *Widget) Persona() persona.Persona {
	return w.persona
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() chat.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Closed reports whether the widget has been unmounted.
func (w *Widget) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Subscribe registers l for state change events. The returned function
// removes the listener.
func (w *Widget) Subscribe(l Listener) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return func() {}
	}

	w.nextListener++
	id := w.nextListener
	w.listeners = append(w.listeners, listenerEntry{id: id, fn: l})

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, entry := range w.listeners {
			if entry.id == id {
				w.listeners = append(w.listeners[:i:i], w.listeners[i+1:]...)
				return
			}
		}
	}
}

// TogglePopup flips the popup visibility.
func (w *Widget) TogglePopup() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.state.IsOpen = !w.state.IsOpen
	ev, listeners := w.changedLocked(EventToggled, true)
	w.mu.Unlock()

	notify(listeners, ev)
}

// SetDraft replaces the unsent draft.
func (w *Widget) SetDraft(text string) {
	w.mu.Lock()
	if w.closed || w.state.Draft == text {
		w.mu.Unlock()
		return
	}
	w.state.Draft = text
	ev, listeners := w.changedLocked(EventDraft, false)
	w.mu.Unlock()

	notify(listeners, ev)
}

// SendMessage appends the trimmed draft as a user message, clears the draft
// and (re)starts the reply timer. A blank draft is ignored and reported as
// false.
func (w *Widget) SendMessage() bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	text := strings.TrimSpace(w.state.Draft)
	if text == "" {
		w.mu.Unlock()
		return false
	}

	w.state.Messages = append(w.state.Messages, w.newMessage(chat.AuthorUser, text))
	w.state.Draft = ""
	w.state.IsTyping = true
	w.restartTimerLocked()
	ev, listeners := w.changedLocked(EventMessage, true)
	w.mu.Unlock()

	notify(listeners, ev)
	return true
}

// HandleKey applies the keyboard contract: Enter without Shift sends the
// draft and asks the caller to suppress the default action.
func (w *Widget) HandleKey(ev KeyEvent) KeyResult {
	if ev.Key != KeyEnter || ev.Shift {
		return KeyResult{}
	}
	return KeyResult{Handled: true, PreventDefault: true, Sent: w.SendMessage()}
}

// Close unmounts the widget. The pending reply, if any, is cancelled and
// listeners receive a final EventClosed. Later calls are no-ops.
func (w *Widget) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.stopTimerLocked()
	w.generation++
	w.cancel()
	ev, listeners := w.changedLocked(EventClosed, false)
	w.listeners = nil
	w.mu.Unlock()

	notify(listeners, ev)
}

func (w *Widget) restartTimerLocked() {
	w.stopTimerLocked()
	w.generation++
	gen := w.generation
	w.pending = w.sched.AfterFunc(w.delay, func() { w.fire(gen) })
}

func (w *Widget) stopTimerLocked() {
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
}

// fire runs when the reply timer for generation gen elapses. A newer send or
// Close bumps the generation, so a stale callback does nothing.
func (w *Widget) fire(gen uint64) {
	w.mu.Lock()
	if w.closed || gen != w.generation || !w.state.IsTyping {
		w.mu.Unlock()
		return
	}
	text := w.state.LastUserText()
	w.mu.Unlock()

	reply := w.selectReply(text)

	w.mu.Lock()
	if w.closed || gen != w.generation {
		w.mu.Unlock()
		return
	}
	w.pending = nil
	w.state.Messages = append(w.state.Messages, w.newMessage(chat.AuthorBot, reply))
	w.state.IsTyping = false
	ev, listeners := w.changedLocked(EventReply, true)
	w.mu.Unlock()

	notify(listeners, ev)
}

func (w *Widget) selectReply(text string) string {
	if w.replier == nil {
		return w.persona.ReplyFor(text)
	}

	reply, err := w.replier.Reply(w.ctx, text)
	if w.ctx.Err() != nil {
		// unmounted while the engine ran; fire drops the result
		return ""
	}
	if err != nil || reply == "" {
		log.Warn().Err(err).Str("component", "widget").Str("persona", w.persona.ID).Msg("reply engine failed, using direct selection")
		return w.persona.ReplyFor(text)
	}
	return reply
}

func (w *Widget) newMessage(author chat.Author, text string) chat.Message {
	return chat.Message{
		ID:        w.ids.NewID(),
		Author:    author,
		Text:      text,
		Timestamp: w.clock.Now().Format(w.timeFormat),
	}
}

func (w *Widget) changedLocked(kind EventKind, scroll bool) (Event, []Listener) {
	w.state.Version++
	ev := Event{Kind: kind, State: w.snapshotLocked(), ScrollToLatest: scroll}

	listeners := make([]Listener, len(w.listeners))
	for i, entry := range w.listeners {
		listeners[i] = entry.fn
	}
	return ev, listeners
}

func (w *Widget) snapshotLocked() chat.State {
	state := w.state
	state.Messages = append([]chat.Message(nil), w.state.Messages...)
	return state
}

func notify(listeners []Listener, ev Event) {
	for _, l := range listeners {
		l(ev)
	}
}
