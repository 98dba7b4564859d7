// Package prompt builds the message list sent to the completion endpoint for a tutoring
// session.
//
// The list is always:
//
//   - one system message with the tutor instructions
//   - one synthetic user message carrying the user prompt and the (truncated) PDF context
//   - the session history, filtered by a HistoryPolicy (SendAll by default)
//
// Assembly is a pure function of the session state: the same state always produces the
// same messages.
package prompt

import (
	"strings"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/go-go-golems/timmy/pkg/session"
)

// TutorSystemPrompt is a contract with the model: the step renderer relies on the single
// fenced code block per response that it asks for.
const TutorSystemPrompt = `
You are a friendly coding tutor, like a YouTube instructor.
Teach step-by-step.

Rules:
- The user gives you a project or PDF context.
- First decide a sequence of steps.
- At each response, output ONLY ONE step.
- For that step:
    - Show a single code block with language fences (e.g. ` + "```python" + `).
    - Then provide a clear explanation.
- End with: 'Ask questions about this block, or say "next" to continue.'
- Do NOT output all steps at once.
`

const (
	// MaxPDFContextChars is the number of characters of PDF context sent to the model.
	MaxPDFContextChars = 8000

	UserPromptLabel = "User prompt:"
	PDFContextLabel = "PDF context (may be truncated):"
)

// TruncatePDFContext returns the first MaxPDFContextChars characters of s.
// Characters are unicode code points.
func TruncatePDFContext(s string) string {
	if len(s) <= MaxPDFContextChars {
		// fewer bytes than the limit means fewer runes too
		return s
	}
	n := 0
	for i := range s {
		if n == MaxPDFContextChars {
			return s[:i]
		}
		n++
	}
	return s
}

// ContextMessage builds the synthetic user message that opens every request.
func ContextMessage(userPrompt, pdfContext string) conversation.Message {
	var sb strings.Builder
	sb.WriteString(UserPromptLabel)
	sb.WriteString("\n")
	sb.WriteString(userPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(PDFContextLabel)
	sb.WriteString("\n")
	sb.WriteString(TruncatePDFContext(pdfContext))
	return conversation.NewUserMessage(sb.String())
}

type Assembler struct {
	policy HistoryPolicy
}

type AssemblerOption func(*Assembler)

func WithHistoryPolicy(p HistoryPolicy) AssemblerOption {
	return func(a *Assembler) {
		if p != nil {
			a.policy = p
		}
	}
}

func NewAssembler(options ...AssemblerOption) *Assembler {
	ret := &Assembler{policy: SendAll{}}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (a *Assembler) Policy() HistoryPolicy {
	return a.policy
}

// Assemble returns the messages to send for the given session state.
func (a *Assembler) Assemble(v session.View) conversation.Conversation {
	leading := conversation.Conversation{
		conversation.NewSystemMessage(TutorSystemPrompt),
		ContextMessage(v.UserPrompt, v.PDFContext),
	}

	history := a.policy.Select(leading, v.History)

	ret := make(conversation.Conversation, 0, len(leading)+len(history))
	ret = append(ret, leading...)
	ret = append(ret, history...)
	return ret
}

// Assemble uses the SendAll policy, replaying the whole history.
func Assemble(v session.View) conversation.Conversation {
	return NewAssembler().Assemble(v)
}
