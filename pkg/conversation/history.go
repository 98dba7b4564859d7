package conversation

import (
	"slices"

	"github.com/pkg/errors"
)

var ErrInvalidTurn = errors.New("invalid turn")

// History is the ordered, append-only list of turns of a tutoring session.
//
// It only holds user and assistant turns. The system prompt and the synthetic context
// message are produced at assembly time and are never stored here.
//
// History is not safe for concurrent use; the owning session serializes access.
type History struct {
	turns []Message
}

func NewHistory(turns ...Message) (*History, error) {
	h := &History{}
	for _, t := range turns {
		if err := h.Append(t); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Append adds a turn at the end of the history.
func (h *History) Append(m Message) error {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return errors.Wrapf(ErrInvalidTurn, "role %q cannot be stored in history", m.Role)
	}
	h.turns = append(h.turns, m)
	return nil
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.turns)
}

// Turns returns a copy of the stored turns, in insertion order.
func (h *History) Turns() Conversation {
	if h == nil {
		return nil
	}
	return slices.Clone(h.turns)
}

func (h *History) Last() (Message, bool) {
	if h == nil {
		return Message{}, false
	}
	return Conversation(h.turns).Last()
}

// DropLast removes the last turn if it has the given role. It is only used to undo a
// staged user turn whose completion failed, and reports whether a turn was removed.
func (h *History) DropLast(role Role) bool {
	last, ok := h.Last()
	if !ok || last.Role != role {
		return false
	}
	h.turns = h.turns[:len(h.turns)-1]
	return true
}

// IsAlternating reports whether turns alternate roles starting with an assistant turn.
func (h *History) IsAlternating() bool {
	for i, t := range h.Turns() {
		expected := RoleAssistant
		if i%2 == 1 {
			expected = RoleUser
		}
		if t.Role != expected {
			return false
		}
	}
	return true
}
