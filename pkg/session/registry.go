package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const IDPrefix = "session_"

// NewID returns a fresh session identifier. UUIDv7 combines a millisecond timestamp with
// 74 random bits.
func NewID() string {
	return IDPrefix + uuid.Must(uuid.NewV7()).String()
}

// Registry maps session ids to sessions. It is the sole owner of the sessions it holds
// and is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
	newID       func() string
}

type RegistryOption func(*Registry)

// WithMaxSessions bounds the number of live sessions. When the bound is reached, inserting
// a new session evicts the least recently used idle one. Sessions with a request in flight
// are never evicted, so the bound is soft: when all of them are busy the registry grows past
// it. 0 means unbounded.
func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) {
		r.maxSessions = n
	}
}

func WithIDGenerator(f func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = f
	}
}

func NewRegistry(options ...RegistryOption) *Registry {
	ret := &Registry{
		sessions: map[string]*Session{},
		newID:    NewID,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Create allocates a session with an empty history and returns its id.
func (r *Registry) Create(userPrompt, pdfContext string) string {
	return r.Insert(New(userPrompt, pdfContext))
}

// Insert stores s under a freshly generated id, overwriting s.ID.
func (r *Registry) Insert(s *Session) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for {
		if _, exists := r.sessions[id]; !exists {
			break
		}
		log.Warn().Str("session_id", id).Msg("Generated session id collides with a live session, drawing again")
		id = r.newID()
	}

	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions && !r.evictLocked() {
		log.Warn().
			Int("max_sessions", r.maxSessions).
			Int("live_sessions", len(r.sessions)+1).
			Msg("All sessions are busy, growing past the session limit")
	}

	s.ID = id
	r.sessions[id] = s

	log.Debug().
		Str("session_id", id).
		Int("pdf_context_len", len(s.PDFContext)).
		Int("live_sessions", len(r.sessions)).
		Msg("Created session")

	return id
}

// evictLocked removes the least recently used idle session and reports whether it found one.
func (r *Registry) evictLocked() bool {
	var (
		oldestID string
		oldest   *Session
	)
	for id, s := range r.sessions {
		if s.InFlight() {
			continue
		}
		if oldest == nil || s.lastUsedAt().Before(oldest.lastUsedAt()) {
			oldestID, oldest = id, s
		}
	}
	if oldest == nil {
		return false
	}
	delete(r.sessions, oldestID)
	log.Info().Str("session_id", oldestID).Int("max_sessions", r.maxSessions).Msg("Evicted least recently used session")
	return true
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Update replaces the session stored under id. Sessions mutated in place do not need it.
func (r *Registry) Update(id string, s *Session) error {
	if s == nil {
		return ErrSessionNil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	s.ID = id
	r.sessions[id] = s
	return nil
}

// Reset removes the session and reports whether it existed.
func (r *Registry) Reset(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	if ok {
		log.Debug().Str("session_id", id).Msg("Reset session")
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the live session ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
