package session

import (
	"errors"
	"log"
	"sync"
)

// ErrClosed indicates the store has been shut down.
var ErrClosed = errors.New("session: store closed")

// Store keeps per-session turn logs in memory for the lifetime of the
// process. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	closed   bool
}

type entry struct {
	// turnMu serializes whole conversational turns (read, call, record).
	turnMu sync.Mutex

	mu    sync.RWMutex
	turns []Turn
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
	}
}

// Get returns a copy of the session's turns. Unknown sessions yield an empty
// slice.
func (s *Store) Get(sessionID string) []Turn {
	e := s.lookup(sessionID)
	if e == nil {
		return []Turn{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Append stores turn at the end of the session log, creating the session on
// first use. Appends after Close are dropped.
func (s *Store) Append(sessionID string, turn Turn) {
	e, err := s.lookupOrCreate(sessionID)
	if err != nil {
		log.Printf("[session] dropping %s turn for %q: %v", turn.Role, sessionID, err)
		return
	}
	e.mu.Lock()
	e.turns = append(e.turns, turn)
	e.mu.Unlock()
}

// Clear resets the session to an empty log. Unknown sessions are left alone.
func (s *Store) Clear(sessionID string) {
	e := s.lookup(sessionID)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.turns = nil
	e.mu.Unlock()
}

// Len returns the number of turns recorded for the session.
func (s *Store) Len(sessionID string) int {
	e := s.lookup(sessionID)
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.turns)
}

// Count returns the number of known sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Lock acquires the session's turn lock and returns its release function.
// Holders can read history and record a reply without another request for
// the same session interleaving.
func (s *Store) Lock(sessionID string) func() {
	e, err := s.lookupOrCreate(sessionID)
	if err != nil {
		return func() {}
	}
	e.turnMu.Lock()
	return e.turnMu.Unlock
}

// Close drops every session. The store stays usable for reads, which then
// report empty logs.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = make(map[string]*entry)
	return nil
}

func (s *Store) lookup(sessionID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

func (s *Store) lookupOrCreate(sessionID string) (*entry, error) {
	if e := s.lookup(sessionID); e != nil {
		return e, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if e, ok := s.sessions[sessionID]; ok {
		return e, nil
	}
	e := &entry{}
	s.sessions[sessionID] = e
	return e, nil
}
