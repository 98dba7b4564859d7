package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/go-go-golems/timmy/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiktoken-go/tokenizer"
)

func contextSegment(t *testing.T, m conversation.Message) string {
	t.Helper()
	idx := strings.Index(m.Content, PDFContextLabel+"\n")
	require.GreaterOrEqual(t, idx, 0)
	return m.Content[idx+len(PDFContextLabel)+1:]
}

func TestAssembleEmptyHistory(t *testing.T) {
	msgs := Assemble(session.View{UserPrompt: "Build a Flask CRUD API", PDFContext: "chapter 1"})

	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleSystem, msgs[0].Role)
	assert.Equal(t, TutorSystemPrompt, msgs[0].Content)
	assert.Equal(t, conversation.RoleUser, msgs[1].Role)
	assert.Equal(t,
		"User prompt:\nBuild a Flask CRUD API\n\nPDF context (may be truncated):\nchapter 1",
		msgs[1].Content)
	assert.True(t, msgs.EndsWithUser())
}

func TestAssembleEmptyPDFKeepsLabels(t *testing.T) {
	msgs := Assemble(session.View{UserPrompt: "p"})
	assert.Equal(t, "User prompt:\np\n\nPDF context (may be truncated):\n", msgs[1].Content)
	assert.Equal(t, "", contextSegment(t, msgs[1]))
}

func TestAssembleTruncatesPDFContext(t *testing.T) {
	for _, l := range []int{0, 1, 7999, 8000, 8001, 20000} {
		pdf := strings.Repeat("x", l)
		msgs := Assemble(session.View{UserPrompt: "p", PDFContext: pdf})
		assert.Len(t, contextSegment(t, msgs[1]), min(l, MaxPDFContextChars), "length %d", l)
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	pdf := strings.Repeat("é", MaxPDFContextChars+10)
	got := TruncatePDFContext(pdf)
	assert.Equal(t, MaxPDFContextChars, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))

	short := strings.Repeat("é", 10)
	assert.Equal(t, short, TruncatePDFContext(short))
}

func TestAssembleAppendsHistoryInOrder(t *testing.T) {
	history := conversation.Conversation{
		conversation.NewAssistantMessage("step 1"),
		conversation.NewUserMessage("next"),
		conversation.NewAssistantMessage("step 2"),
		conversation.NewUserMessage("why?"),
	}
	msgs := Assemble(session.View{UserPrompt: "p", History: history})

	require.Len(t, msgs, 6)
	assert.Equal(t, history, msgs[2:])
	assert.True(t, msgs.EndsWithUser())
}

func TestAssembleIsDeterministic(t *testing.T) {
	v := session.View{
		ID:         "session_x",
		UserPrompt: "p",
		PDFContext: strings.Repeat("abc ", 5000),
		History: conversation.Conversation{
			conversation.NewAssistantMessage("step 1"),
			conversation.NewUserMessage("next"),
		},
	}
	assert.Equal(t, Assemble(v), Assemble(v))
}

func TestAssembleDoesNotIncludeSessionID(t *testing.T) {
	msgs := Assemble(session.View{ID: "session_secret", UserPrompt: "p"})
	for _, m := range msgs {
		assert.NotContains(t, m.Content, "session_secret")
	}
}

func TestAssembleDoesNotAliasHistory(t *testing.T) {
	history := conversation.Conversation{
		conversation.NewAssistantMessage("step 1"),
		conversation.NewUserMessage("next"),
	}
	msgs := Assemble(session.View{UserPrompt: "p", History: history})
	msgs[2].Content = "changed"
	assert.Equal(t, "step 1", history[0].Content)
}

func alternating(n int) conversation.Conversation {
	ret := conversation.Conversation{}
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			ret = append(ret, conversation.NewAssistantMessage("step"))
		} else {
			ret = append(ret, conversation.NewUserMessage("next"))
		}
	}
	return ret
}

func TestKeepLast(t *testing.T) {
	history := alternating(6)

	tests := []struct {
		name     string
		n        int
		expected conversation.Conversation
	}{
		{name: "unbounded", n: 0, expected: history},
		{name: "larger than history", n: 10, expected: history},
		{name: "even window", n: 2, expected: history[4:]},
		{name: "odd window starts with assistant", n: 3, expected: history[4:]},
		{name: "single turn", n: 1, expected: history[5:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeepLast{N: tt.n}.Select(nil, history)
			assert.Equal(t, tt.expected, got)
			last, ok := got.Last()
			require.True(t, ok)
			assert.Equal(t, conversation.RoleUser, last.Role)
		})
	}
}

func TestTokenBudgetDropsOldestPairs(t *testing.T) {
	budget, err := NewTokenBudget(1, tokenizer.Cl100kBase)
	require.NoError(t, err)

	history := alternating(6)
	got := budget.Select(conversation.Conversation{conversation.NewSystemMessage("sys")}, history)
	assert.Equal(t, history[4:], got)
}

func TestTokenBudgetKeepsEverythingWhenItFits(t *testing.T) {
	budget, err := NewTokenBudget(100000, tokenizer.Cl100kBase)
	require.NoError(t, err)

	history := alternating(6)
	assert.Equal(t, history, budget.Select(nil, history))

	a := NewAssembler(WithHistoryPolicy(budget))
	v := session.View{UserPrompt: "p", History: history}
	assert.Equal(t, Assemble(v), a.Assemble(v))
}

func TestNewTokenBudgetRejectsNonPositive(t *testing.T) {
	_, err := NewTokenBudget(0, tokenizer.Cl100kBase)
	require.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, "all", p.Name())

	p, err = ParsePolicy("last-4")
	require.NoError(t, err)
	assert.Equal(t, KeepLast{N: 4}, p)

	p, err = ParsePolicy("tokens-4000")
	require.NoError(t, err)
	assert.Equal(t, "tokens-4000", p.Name())

	for _, bad := range []string{"last-0", "last-x", "last-5x", "last-", "tokens-0", "tokens-100k", "summarize"} {
		_, err := ParsePolicy(bad)
		assert.Error(t, err, bad)
	}
}
