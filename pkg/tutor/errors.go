package tutor

import (
	"github.com/go-go-golems/timmy/pkg/gateway"
	"github.com/go-go-golems/timmy/pkg/pdf"
	"github.com/go-go-golems/timmy/pkg/session"
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is returned before any completion call when no credential is configured.
	ErrConfiguration = errors.New("API key not configured")
	// ErrEmptyPrompt is returned by Start when neither a prompt nor PDF text was given.
	ErrEmptyPrompt = errors.New("empty prompt and no PDF context")
	// ErrInvalidMessages means the assembled request does not end with a user message.
	ErrInvalidMessages = errors.New("assembled messages do not end with a user message")

	ErrSessionNotFound = session.ErrSessionNotFound
	ErrSessionBusy     = session.ErrSessionBusy
	ErrExtraction      = pdf.ErrExtraction
)

// GatewayError returns the completion failure wrapped in err, if any.
func GatewayError(err error) (*gateway.Error, bool) {
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}
