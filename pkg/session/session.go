package session

import (
	"sync"
	"time"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/pkg/errors"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session already has a request in flight")
	ErrSessionNil      = errors.New("session is nil")
)

// Session is one tutoring conversation.
//
// It owns:
// - the user prompt and PDF context, fixed at creation
// - the append-only turn history
// - the busy flag that keeps a second completion request from starting
type Session struct {
	ID         string
	UserPrompt string
	PDFContext string
	CreatedAt  time.Time

	mu       sync.Mutex
	history  conversation.History
	inFlight bool
	lastUsed time.Time
}

// View is an immutable copy of the session state, used for prompt assembly.
type View struct {
	ID         string
	UserPrompt string
	PDFContext string
	History    conversation.Conversation
}

// New constructs a detached session with an empty history. It gets its ID when it is
// inserted into a Registry.
func New(userPrompt, pdfContext string) *Session {
	now := time.Now()
	return &Session{
		UserPrompt: userPrompt,
		PDFContext: pdfContext,
		CreatedAt:  now,
		lastUsed:   now,
	}
}

// Begin marks a completion request as in flight. It fails with ErrSessionBusy when another
// request has not finished yet. Every successful Begin must be paired with End.
func (s *Session) Begin() error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrSessionBusy
	}
	s.inFlight = true
	s.lastUsed = time.Now()
	return nil
}

func (s *Session) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.inFlight = false
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) InFlight() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Append adds a turn to the session history.
func (s *Session) Append(m conversation.Message) error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Append(m)
}

// DropLast removes the last turn if it has the given role.
func (s *Session) DropLast(role conversation.Role) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.DropLast(role)
}

func (s *Session) History() conversation.Conversation {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Turns()
}

func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

func (s *Session) View() View {
	if s == nil {
		return View{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:         s.ID,
		UserPrompt: s.UserPrompt,
		PDFContext: s.PDFContext,
		History:    s.history.Turns(),
	}
}

func (s *Session) lastUsedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
