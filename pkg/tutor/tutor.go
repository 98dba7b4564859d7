// Package tutor drives a tutoring session: it starts sessions, advances them with follow-up
// questions or "next", and keeps the turn history the model sees on every call.
package tutor

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/go-go-golems/timmy/pkg/gateway"
	"github.com/go-go-golems/timmy/pkg/prompt"
	"github.com/go-go-golems/timmy/pkg/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// CredentialFunc returns the credential passed to the gateway. An empty string means no
// credential is configured.
type CredentialFunc func() string

func StaticCredential(credential string) CredentialFunc {
	return func() string { return credential }
}

type Service struct {
	registry   *session.Registry
	assembler  *prompt.Assembler
	gateway    gateway.Gateway
	credential CredentialFunc

	requireCredential bool
	rollbackOnError   bool
	timeout           time.Duration
}

type Option func(*Service)

func WithAssembler(a *prompt.Assembler) Option {
	return func(s *Service) {
		if a != nil {
			s.assembler = a
		}
	}
}

// WithRollbackOnError removes the user turn appended by Continue when the completion
// call fails. By default the turn stays in the history.
func WithRollbackOnError(rollback bool) Option {
	return func(s *Service) {
		s.rollbackOnError = rollback
	}
}

// WithTimeout bounds every completion call. 0 disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithRequireCredential controls whether an empty credential fails with ErrConfiguration.
// Gateways for local models do not need one.
func WithRequireCredential(require bool) Option {
	return func(s *Service) {
		s.requireCredential = require
	}
}

func NewService(registry *session.Registry, gw gateway.Gateway, credential CredentialFunc, options ...Option) *Service {
	if credential == nil {
		credential = StaticCredential("")
	}
	ret := &Service{
		registry:          registry,
		assembler:         prompt.NewAssembler(),
		gateway:           gw,
		credential:        credential,
		requireCredential: true,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *Service) Registry() *session.Registry {
	return s.registry
}

func (s *Service) lookupCredential() (string, error) {
	credential := s.credential()
	if credential == "" && s.requireCredential {
		return "", ErrConfiguration
	}
	return credential, nil
}

// complete assembles the session's messages and runs one completion.
func (s *Service) complete(ctx context.Context, sess *session.Session, credential string) (string, error) {
	messages := s.assembler.Assemble(sess.View())
	if !messages.EndsWithUser() {
		return "", errors.Wrapf(ErrInvalidMessages, "session %s has %d turns", sess.ID, sess.Len())
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := s.gateway.Complete(ctx, messages, credential)
	log.Debug().
		Str("session_id", sess.ID).
		Int("num_messages", len(messages)).
		Str("history_policy", s.assembler.Policy().Name()).
		Dur("duration", time.Since(start)).
		Bool("ok", err == nil).
		Msg("Completion finished")
	if err != nil {
		return "", err
	}
	return content, nil
}

// Start creates a session for the prompt and PDF text, runs the first completion and
// returns the new session id with the first step. The session is only registered once the
// completion succeeded.
func (s *Service) Start(ctx context.Context, userPrompt string, pdfText string) (string, string, error) {
	if strings.TrimSpace(userPrompt) == "" && pdfText == "" {
		return "", "", ErrEmptyPrompt
	}
	credential, err := s.lookupCredential()
	if err != nil {
		return "", "", err
	}

	sess := session.New(userPrompt, pdfText)
	if err := sess.Begin(); err != nil {
		return "", "", err
	}
	defer sess.End()

	content, err := s.complete(ctx, sess, credential)
	if err != nil {
		log.Warn().Err(err).Msg("Could not start tutorial")
		return "", "", err
	}

	if err := sess.Append(conversation.NewAssistantMessage(content)); err != nil {
		return "", "", errors.Wrap(err, "could not record first step")
	}

	id := s.registry.Insert(sess)
	log.Info().Str("session_id", id).Int("pdf_context_len", len(pdfText)).Msg("Started tutorial")
	return id, content, nil
}

// Continue sends userMessage (a question or "next") in session sessionID and returns the
// model's reply. The user turn is appended before the completion call, so after a failure
// it stays in the history unless the service was created WithRollbackOnError.
func (s *Service) Continue(ctx context.Context, sessionID string, userMessage string) (string, error) {
	credential, err := s.lookupCredential()
	if err != nil {
		return "", err
	}

	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return "", err
	}

	if err := sess.Begin(); err != nil {
		return "", errors.Wrapf(err, "session %s", sessionID)
	}
	defer sess.End()

	if err := sess.Append(conversation.NewUserMessage(userMessage)); err != nil {
		return "", errors.Wrap(err, "could not record user message")
	}

	content, err := s.complete(ctx, sess, credential)
	if err != nil {
		if s.rollbackOnError {
			sess.DropLast(conversation.RoleUser)
		}
		log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Bool("rolled_back", s.rollbackOnError).
			Msg("Could not continue tutorial")
		return "", err
	}

	if err := sess.Append(conversation.NewAssistantMessage(content)); err != nil {
		return "", errors.Wrap(err, "could not record step")
	}

	log.Debug().Str("session_id", sessionID).Int("turns", sess.Len()).Msg("Continued tutorial")
	return content, nil
}

// Ask continues the session with a question about the current step.
func (s *Service) Ask(ctx context.Context, sessionID string, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyPrompt
	}
	return s.Continue(ctx, sessionID, question)
}

// Next asks for the following step.
func (s *Service) Next(ctx context.Context, sessionID string) (string, error) {
	return s.Continue(ctx, sessionID, conversation.NextSentinel)
}

// Reset discards the session. Unknown ids are ignored.
func (s *Service) Reset(sessionID string) {
	if sessionID == "" {
		return
	}
	if s.registry.Reset(sessionID) {
		log.Info().Str("session_id", sessionID).Msg("Reset tutorial")
	}
}

// History returns a copy of the session's turns.
func (s *Service) History(sessionID string) (conversation.Conversation, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.History(), nil
}

// Session returns a snapshot of the session state.
func (s *Service) Session(sessionID string) (session.View, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return session.View{}, err
	}
	return sess.View(), nil
}
