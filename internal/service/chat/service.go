package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-popup/backend/internal/model/chat"
	"github.com/zhouzirui/chat-popup/backend/internal/model/persona"
	"github.com/zhouzirui/chat-popup/backend/internal/service/widget"
)

var (
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
)

// DefaultIdleTimeout is how long a mounted widget survives without an
// attached realtime connection or a Touch.
const DefaultIdleTimeout = 2 * time.Minute

// ReplierFactory builds the reply engine for a persona.
type ReplierFactory func(ctx context.Context, p persona.Persona) (widget.Replier, error)

// Options configures the registry and the widgets it mounts.
type Options struct {
	DefaultPersonaID string
	TypingDelay      time.Duration
	TimeFormat       string
	// IdleTimeout <= 0 disables idle unmounting.
	IdleTimeout time.Duration

	Clock     widget.Clock
	IDs       widget.IDGenerator
	Scheduler widget.Scheduler
	Repliers  ReplierFactory
}

type entry struct {
	session  chat.Session
	widget   *widget.Widget
	attached int
	idle     widget.Timer
}

// Service keeps the widgets mounted by open pages, keyed by session id.
type Service struct {
	personas persona.Store
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*entry
	repliers map[string]widget.Replier
}

// NewService bootstraps an empty in-memory registry.
func NewService(personas persona.Store, opts Options) *Service {
	if opts.DefaultPersonaID == "" {
		opts.DefaultPersonaID = persona.DefaultID
	}
	if opts.Clock == nil {
		opts.Clock = widget.SystemClock{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = widget.RealScheduler{}
	}
	return &Service{
		personas: personas,
		opts:     opts,
		sessions: make(map[string]*entry),
		repliers: make(map[string]widget.Replier),
	}
}

// Mount creates a session and a fresh widget for personaID (the default
// persona when empty).
func (s *Service) Mount(ctx context.Context, personaID string) (chat.Session, *widget.Widget, error) {
	if personaID == "" {
		personaID = s.opts.DefaultPersonaID
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, nil, errors.Wrapf(ErrPersonaNotFound, "persona %q", personaID)
	}

	replier, err := s.replierFor(ctx, p)
	if err != nil {
		return chat.Session{}, nil, err
	}

	w := widget.New(widget.Options{
		Persona:     p,
		TypingDelay: s.opts.TypingDelay,
		TimeFormat:  s.opts.TimeFormat,
		Clock:       s.opts.Clock,
		IDs:         s.opts.IDs,
		Scheduler:   s.opts.Scheduler,
		Replier:     replier,
	})

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: p.ID,
		CreatedAt: s.opts.Clock.Now().UTC(),
	}

	s.mu.Lock()
	e := &entry{session: session, widget: w}
	s.sessions[session.ID] = e
	s.armIdleLocked(session.ID, e)
	s.mu.Unlock()

	log.Info().Str("component", "chat").Str("session_id", session.ID).Str("persona", p.ID).Msg("widget mounted")
	return session, w, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// Widget returns the widget mounted for sessionID.
func (s *Service) Widget(_ context.Context, sessionID string) (*widget.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.widget, nil
}

// Touch returns the widget mounted for sessionID and counts the call as
// activity: the idle timer restarts unless a connection is attached.
func (s *Service) Touch(_ context.Context, sessionID string) (*widget.Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.armIdleLocked(sessionID, e)
	return e.widget, nil
}

// Unmount closes the widget, cancelling any pending reply, and forgets the
// session.
func (s *Service) Unmount(_ context.Context, sessionID string) error {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	stopIdle(e)
	s.mu.Unlock()

	e.widget.Close()
	log.Info().Str("component", "chat").Str("session_id", sessionID).Msg("widget unmounted")
	return nil
}

// Attach registers a realtime connection on the session. The widget is not
// idle-unmounted while at least one connection is attached. The returned
// release function must be called exactly once when the connection ends.
func (s *Service) Attach(_ context.Context, sessionID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.attached++
	stopIdle(e)

	var once sync.Once
	return func() {
		once.Do(func() { s.release(sessionID, e) })
	}, nil
}

// Count returns the number of mounted widgets.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown unmounts every widget.
func (s *Service) Shutdown() {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for id, e := range s.sessions {
		stopIdle(e)
		entries = append(entries, e)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.widget.Close()
	}
}

func (s *Service) release(sessionID string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[sessionID]; !ok || current != e {
		return
	}
	e.attached--
	s.armIdleLocked(sessionID, e)
}

func (s *Service) armIdleLocked(sessionID string, e *entry) {
	if e.attached > 0 || s.opts.IdleTimeout <= 0 {
		return
	}
	stopIdle(e)
	e.idle = s.opts.Scheduler.AfterFunc(s.opts.IdleTimeout, func() { s.reapIdle(sessionID, e) })
}

func (s *Service) reapIdle(sessionID string, e *entry) {
	s.mu.Lock()
	current, ok := s.sessions[sessionID]
	if !ok || current != e || e.attached > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, sessionID)
	e.idle = nil
	s.mu.Unlock()

	e.widget.Close()
	log.Info().Str("component", "chat").Str("session_id", sessionID).Msg("idle widget unmounted")
}

func (s *Service) replierFor(ctx context.Context, p persona.Persona) (widget.Replier, error) {
	if s.opts.Repliers == nil {
		return nil, nil
	}

	s.mu.RLock()
	replier, ok := s.repliers[p.ID]
	s.mu.RUnlock()
	if ok {
		return replier, nil
	}

	replier, err := s.opts.Repliers(ctx, p)
	if err != nil {
		return nil, errors.Wrapf(err, "build reply engine for persona %q", p.ID)
	}

	s.mu.Lock()
	if existing, ok := s.repliers[p.ID]; ok {
		replier = existing
	} else {
		s.repliers[p.ID] = replier
	}
	s.mu.Unlock()
	return replier, nil
}

func stopIdle(e *entry) {
	if e.idle != nil {
		e.idle.Stop()
		e.idle = nil
	}
}
