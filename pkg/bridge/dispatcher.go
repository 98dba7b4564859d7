package bridge

import (
	"context"
	"fmt"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/go-go-golems/timmy/pkg/pdf"
	"github.com/go-go-golems/timmy/pkg/render"
	"github.com/go-go-golems/timmy/pkg/tutor"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	msgSessionNotFound = "Session not found. Please start a new tutorial."
	msgEmptyPrompt     = "Please provide a prompt or upload a PDF"
	msgSessionBusy     = "Still working on the previous step, please wait."
	msgStartFailed     = "An error occurred while starting the tutorial"
	msgContinueFailed  = "An error occurred during the tutorial"
	msgPDFFailed       = "Failed to process PDF: %s"
)

// FileChooser asks the user for a PDF when the panel did not send a path. ok is false when
// the user cancelled.
type FileChooser interface {
	ChooseFile(ctx context.Context) (path string, ok bool, err error)
}

type FileChooserFunc func(ctx context.Context) (string, bool, error)

func (f FileChooserFunc) ChooseFile(ctx context.Context) (string, bool, error) {
	return f(ctx)
}

// Dispatcher runs panel requests against the tutor service and reports the results.
type Dispatcher struct {
	tutor     *tutor.Service
	extractor pdf.Extractor
	chooser   FileChooser

	// ProviderName is used in the missing credential message.
	ProviderName string
}

type DispatcherOption func(*Dispatcher)

func WithFileChooser(c FileChooser) DispatcherOption {
	return func(d *Dispatcher) {
		d.chooser = c
	}
}

func WithProviderName(name string) DispatcherOption {
	return func(d *Dispatcher) {
		d.ProviderName = name
	}
}

func NewDispatcher(t *tutor.Service, extractor pdf.Extractor, options ...DispatcherOption) *Dispatcher {
	ret := &Dispatcher{
		tutor:        t,
		extractor:    extractor,
		ProviderName: "OpenAI",
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Handle runs one inbound message and publishes the reply. Failures of the requested action
// are published as error messages, the returned error only reports publishing failures.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound, out Publisher) error {
	log.Debug().Str("type", string(in.Type)).Str("session_id", in.SessionID).Msg("Handling panel message")

	switch in.Type {
	case InboundStartTutorial:
		id, message, err := d.tutor.Start(ctx, in.Prompt, in.PDFText)
		if err != nil {
			return out.Publish(ctx, ErrorMessage(d.userMessage(err, msgStartFailed)))
		}
		return out.Publish(ctx, Outbound{
			Type:      OutboundTutorialStarted,
			SessionID: id,
			Message:   message,
			Step:      NewStepView(render.Parse(1, message)),
		})

	case InboundContinueTutorial:
		message, err := d.tutor.Continue(ctx, in.SessionID, in.UserMessage)
		if err != nil {
			return out.Publish(ctx, ErrorMessage(d.userMessage(err, msgContinueFailed)))
		}
		return out.Publish(ctx, Outbound{
			Type:    OutboundTutorialContinued,
			Message: message,
			Step:    NewStepView(render.Parse(d.stepNumber(in.SessionID), message)),
		})

	case InboundUploadPDF:
		return d.handleUploadPDF(ctx, in, out)

	case InboundReset:
		d.tutor.Reset(in.SessionID)
		return out.Publish(ctx, Outbound{Type: OutboundReset})

	case InboundFileAction:
		// file changes are only displayed, the host never applies them
		log.Info().Str("file", in.File).Str("action", in.Action).Msg("File change reviewed")
		return nil

	default:
		log.Warn().Str("type", string(in.Type)).Msg("Unknown panel message type")
		return out.Publish(ctx, ErrorMessage(fmt.Sprintf("Unknown message type: %s", in.Type)))
	}
}

func (d *Dispatcher) handleUploadPDF(ctx context.Context, in Inbound, out Publisher) error {
	path := in.Path
	if path == "" {
		if d.chooser == nil {
			return out.Publish(ctx, ErrorMessage(fmt.Sprintf(msgPDFFailed, "no file chooser available")))
		}
		p, ok, err := d.chooser.ChooseFile(ctx)
		if err != nil {
			return out.Publish(ctx, ErrorMessage(fmt.Sprintf(msgPDFFailed, err.Error())))
		}
		if !ok {
			log.Debug().Msg("PDF selection cancelled")
			return nil
		}
		path = p
	}

	text, err := d.extractor.ExtractText(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("PDF extraction failed")
		return out.Publish(ctx, ErrorMessage(fmt.Sprintf(msgPDFFailed, errors.Cause(err).Error())))
	}
	return out.Publish(ctx, Outbound{Type: OutboundPDFProcessed, Text: text})
}

// stepNumber counts the assistant turns of the session.
func (d *Dispatcher) stepNumber(sessionID string) int {
	history, err := d.tutor.History(sessionID)
	if err != nil {
		return 0
	}
	return lo.CountBy(history, func(m conversation.Message) bool {
		return m.Role == conversation.RoleAssistant
	})
}

// userMessage maps an error to the single message string shown in the panel.
func (d *Dispatcher) userMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, tutor.ErrConfiguration):
		return fmt.Sprintf("%s API key not configured. Please set it in settings.", d.ProviderName)
	case errors.Is(err, tutor.ErrSessionNotFound):
		return msgSessionNotFound
	case errors.Is(err, tutor.ErrEmptyPrompt):
		return msgEmptyPrompt
	case errors.Is(err, tutor.ErrSessionBusy):
		return msgSessionBusy
	}
	if gerr, ok := tutor.GatewayError(err); ok {
		return gerr.UserMessage()
	}
	if err.Error() == "" {
		return fallback
	}
	return err.Error()
}

func NewStepView(step render.Step) *StepView {
	return &StepView{
		Number:   step.Number,
		Code:     step.Code,
		Language: step.Language,
		HasCode:  step.HasCode,
		HTML:     render.RenderHTML(step),
	}
}
