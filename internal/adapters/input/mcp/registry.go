package mcp

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"hue-mcp-gateway/internal/jsonrpc"
)

// ErrSessionNotFound covers both identifiers that were never issued and
// identifiers already retired by closure; the two are indistinguishable on
// purpose — a closed session is never resurrected.
var ErrSessionNotFound = errors.New("unknown or closed session")

// Session is one logical streaming conversation with a peer, spanning many
// HTTP requests. It owns the outbound event channel the SSE stream drains.
type Session struct {
	id      string
	created time.Time

	mu     sync.Mutex
	closed bool
	events chan *jsonrpc.Request
}

func (s *Session) ID() string { return s.id }

// Events is the server-to-peer notification stream. It is closed when the
// session closes.
func (s *Session) Events() <-chan *jsonrpc.Request { return s.events }

// Notify queues a server-initiated notification for the peer's stream.
// Notifications to a closed session, or beyond the buffer, are dropped.
func (s *Session) Notify(method string, params []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	msg := &jsonrpc.Request{Version: jsonrpc.Version, Method: method, Params: params}
	select {
	case s.events <- msg:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// Registry owns the session mapping shared by all concurrent request
// handlers. Insert, lookup, and delete are atomic with respect to each
// other; an operation already routed to a session when closure happens runs
// to completion, but no new request is routed to a closed handle.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session under a fresh identifier. UUIDs make the
// identifier collision-free across concurrent handshakes.
func (r *Registry) Create() *Session {
	s := &Session{
		id:      uuid.NewString(),
		created: time.Now(),
		events:  make(chan *jsonrpc.Request, 16),
	}
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

// Get routes an identifier to its live session. A stale or never-issued
// identifier is a hard error with no side effect.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close retires the identifier and tears the session down. The id is removed
// from the mapping before the transport is closed so no new request can be
// routed to the dying handle.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	return nil
}

// CloseAll tears down every live session, for process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
