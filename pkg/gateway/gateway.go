// Package gateway sends an assembled message list to a chat completion service and
// returns the text of the single response.
//
// Every backend reports failures as *Error, so callers can tell completion failures
// apart from their own errors with errors.As. Gateways never retry.
package gateway

import (
	"context"
	"fmt"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/pkg/errors"
)

// DefaultTemperature keeps step-by-step answers stable across turns.
const DefaultTemperature = 0.3

type Gateway interface {
	Complete(ctx context.Context, messages conversation.Conversation, credential string) (string, error)
}

// Func adapts a function to the Gateway interface.
type Func func(ctx context.Context, messages conversation.Conversation, credential string) (string, error)

func (f Func) Complete(ctx context.Context, messages conversation.Conversation, credential string) (string, error) {
	return f(ctx, messages, credential)
}

type ErrorKind string

const (
	ErrorKindAuth          ErrorKind = "auth"
	ErrorKindRateLimit     ErrorKind = "rate-limit"
	ErrorKindTransport     ErrorKind = "transport"
	ErrorKindModel         ErrorKind = "model"
	ErrorKindEmptyResponse ErrorKind = "empty-response"
)

// Error is a failed completion call.
type Error struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s completion failed (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the user for this failure.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case ErrorKindAuth:
		return fmt.Sprintf("The %s API rejected the API key: %v", e.Provider, e.Err)
	case ErrorKindRateLimit:
		return fmt.Sprintf("The %s API rate limit was reached, please try again later: %v", e.Provider, e.Err)
	case ErrorKindEmptyResponse:
		return fmt.Sprintf("The %s API returned an empty response", e.Provider)
	default:
		return e.Err.Error()
	}
}

func IsKind(err error, kind ErrorKind) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == kind
}

// KindFromStatus maps an HTTP status code returned by a completion API to an error kind.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return ErrorKindAuth
	case status == 429:
		return ErrorKindRateLimit
	case status >= 500:
		return ErrorKindTransport
	default:
		return ErrorKindModel
	}
}

// classifyContextErr turns context cancellation into a transport failure.
func classifyContextErr(ctx context.Context, provider string, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: ErrorKindTransport, Provider: provider, Err: errors.Wrap(err, ctxErr.Error())}
	}
	return nil
}
