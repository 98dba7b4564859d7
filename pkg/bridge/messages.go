// Package bridge carries the messages exchanged between the tutor panel and the host.
//
// Inbound messages are requests from the panel, outbound messages are the host's replies.
// Both are JSON objects with a "type" field and use the panel's camelCase field names.
package bridge

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type InboundType string

const (
	InboundStartTutorial    InboundType = "startTutorial"
	InboundContinueTutorial InboundType = "continueTutorial"
	InboundUploadPDF        InboundType = "uploadPDF"
	InboundReset            InboundType = "reset"
	InboundFileAction       InboundType = "fileAction"
)

type OutboundType string

const (
	OutboundTutorialStarted   OutboundType = "tutorialStarted"
	OutboundTutorialContinued OutboundType = "tutorialContinued"
	OutboundPDFProcessed      OutboundType = "pdfProcessed"
	OutboundError             OutboundType = "error"
	OutboundReset             OutboundType = "reset"
)

type Inbound struct {
	Type InboundType `json:"type"`

	// startTutorial
	Prompt  string `json:"prompt,omitempty"`
	PDFText string `json:"pdfText,omitempty"`

	// continueTutorial, reset
	SessionID   string `json:"sessionId,omitempty"`
	UserMessage string `json:"userMessage,omitempty"`

	// uploadPDF, when the panel already knows the file
	Path string `json:"path,omitempty"`

	// fileAction
	File   string `json:"file,omitempty"`
	Action string `json:"action,omitempty"`
}

// StepView is a step rendered on the host, sent along with the raw message.
type StepView struct {
	Number   int    `json:"number"`
	Code     string `json:"code"`
	Language string `json:"language"`
	HasCode  bool   `json:"hasCode"`
	HTML     string `json:"html"`
}

type Outbound struct {
	Type      OutboundType `json:"type"`
	SessionID string       `json:"sessionId,omitempty"`
	Message   string       `json:"message,omitempty"`
	Text      string       `json:"text,omitempty"`
	Step      *StepView    `json:"step,omitempty"`
}

func ErrorMessage(message string) Outbound {
	return Outbound{Type: OutboundError, Message: message}
}

// DecodeInbound parses a panel message.
func DecodeInbound(b []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(b, &in); err != nil {
		return Inbound{}, errors.Wrap(err, "could not decode panel message")
	}
	if in.Type == "" {
		return Inbound{}, errors.New("panel message has no type")
	}
	return in, nil
}
