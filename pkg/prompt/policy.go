package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// HistoryPolicy decides which history turns are replayed to the model. Implementations
// return a suffix of history and never modify turn contents. leading holds the system and
// context messages that precede the history.
type HistoryPolicy interface {
	Select(leading conversation.Conversation, history conversation.Conversation) conversation.Conversation
	Name() string
}

// SendAll replays the complete history. The request grows with every turn.
type SendAll struct{}

func (SendAll) Select(_ conversation.Conversation, history conversation.Conversation) conversation.Conversation {
	return history
}

func (SendAll) Name() string { return "all" }

// KeepLast replays at most N turns. The window is moved forward by one turn when it would
// start with a user turn, unless that turn is the only one kept. N <= 0 keeps everything.
type KeepLast struct {
	N int
}

func (k KeepLast) Select(_ conversation.Conversation, history conversation.Conversation) conversation.Conversation {
	if k.N <= 0 || len(history) <= k.N {
		return history
	}
	start := len(history) - k.N
	if start < len(history)-1 && history[start].Role == conversation.RoleUser {
		start++
	}
	return history[start:]
}

func (k KeepLast) Name() string { return fmt.Sprintf("last-%d", k.N) }

// perMessageTokens approximates the role/formatting overhead of one chat message.
const perMessageTokens = 4

// TokenBudget drops the oldest assistant/user pairs until the whole request fits in
// MaxTokens. The two most recent turns are always kept, even if they alone exceed it.
type TokenBudget struct {
	MaxTokens int
	codec     tokenizer.Codec
}

func NewTokenBudget(maxTokens int, encoding tokenizer.Encoding) (*TokenBudget, error) {
	if maxTokens <= 0 {
		return nil, errors.Errorf("token budget must be positive, got %d", maxTokens)
	}
	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load tokenizer %s", encoding)
	}
	return &TokenBudget{MaxTokens: maxTokens, codec: codec}, nil
}

func (t *TokenBudget) Count(messages conversation.Conversation) int {
	total := 0
	for _, m := range messages {
		total += perMessageTokens + t.countText(m.Content)
	}
	return total
}

func (t *TokenBudget) countText(s string) int {
	ids, _, err := t.codec.Encode(s)
	if err != nil {
		// rough fallback, about four characters per token
		return len(s)/4 + 1
	}
	return len(ids)
}

func (t *TokenBudget) Select(leading conversation.Conversation, history conversation.Conversation) conversation.Conversation {
	used := t.Count(leading)
	sizes := make([]int, len(history))
	for i, m := range history {
		sizes[i] = perMessageTokens + t.countText(m.Content)
		used += sizes[i]
	}

	start := 0
	for used > t.MaxTokens && len(history)-start > 2 {
		used -= sizes[start] + sizes[start+1]
		start += 2
	}
	return history[start:]
}

func (t *TokenBudget) Name() string { return fmt.Sprintf("tokens-%d", t.MaxTokens) }

// ParsePolicy builds a policy from its textual form: "all", "last-N" or "tokens-N".
func ParsePolicy(s string) (HistoryPolicy, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "" || s == "all":
		return SendAll{}, nil
	case strings.HasPrefix(s, "last-"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "last-"))
		if err != nil || n <= 0 {
			return nil, errors.Errorf("invalid history policy %q", s)
		}
		return KeepLast{N: n}, nil
	case strings.HasPrefix(s, "tokens-"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "tokens-"))
		if err != nil {
			return nil, errors.Errorf("invalid history policy %q", s)
		}
		return NewTokenBudget(n, tokenizer.Cl100kBase)
	default:
		return nil, errors.Errorf("unknown history policy %q", s)
	}
}
