package conversation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// NextSentinel is the user turn content that asks the tutor for the following step.
const NextSentinel = "next"

func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleAssistant, RoleUser:
		return true
	default:
		return false
	}
}

// Message is a single role-tagged chat message. Messages stored in a History are turns
// and are never mutated after being appended.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func NewChatMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

func NewUserMessage(content string) Message {
	return NewChatMessage(RoleUser, content)
}

func NewAssistantMessage(content string) Message {
	return NewChatMessage(RoleAssistant, content)
}

func NewSystemMessage(content string) Message {
	return NewChatMessage(RoleSystem, content)
}

func (m Message) IsNext() bool {
	return m.Role == RoleUser && strings.EqualFold(strings.TrimSpace(m.Content), NextSentinel)
}

func (m Message) String() string {
	// If we are markdown, add a newline so that it stays valid markdown when printed.
	text := m.Content
	if strings.HasPrefix(text, "```") {
		text = "\n" + text
	}
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(text, "\n"))
}

type Conversation []Message

// Last returns the final message of the conversation, if any.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// EndsWithUser reports whether the conversation can be sent to a chat completion API that
// expects the final message to come from the user.
func (c Conversation) EndsWithUser() bool {
	last, ok := c.Last()
	return ok && last.Role == RoleUser
}

// Validate checks the roles of every message. System messages are only allowed as the
// leading message.
func (c Conversation) Validate() error {
	for i, m := range c {
		if !m.Role.IsValid() {
			return errors.Errorf("message %d has unknown role %q", i, m.Role)
		}
		if m.Role == RoleSystem && i != 0 {
			return errors.Errorf("system message at position %d", i)
		}
	}
	return nil
}
