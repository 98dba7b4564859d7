package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/go-go-golems/timmy/pkg/bridge"
	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/go-go-golems/timmy/pkg/render"
	"github.com/go-go-golems/timmy/pkg/server/web"
	"github.com/go-go-golems/timmy/pkg/session"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const pdfFormField = "file"

type SessionSummary struct {
	ID         string `json:"id"`
	UserPrompt string `json:"userPrompt"`
	Turns      int    `json:"turns"`
}

type SessionDetail struct {
	SessionSummary
	Steps []*bridge.StepView `json:"steps"`
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Could not write response")
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, map[string]string{"error": message})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	b, err := fs.ReadFile(web.FS(), "index.html")
	if err != nil {
		log.Error().Err(err).Msg("Panel page missing")
		http.Error(w, "panel not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, s.panel)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.tutor.Registry().Len(),
	})
}

// handleUploadPDF is the browser's way of choosing a PDF: the file is posted as multipart
// form data and its text returned.
func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	if s.panel.MaxPDFBytes > 0 {
		// leave room for the multipart envelope
		r.Body = http.MaxBytesReader(w, r.Body, s.panel.MaxPDFBytes+64<<10)
	}

	file, header, err := r.FormFile(pdfFormField)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid PDF upload")
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Failed to process PDF: %v", err))
		return
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Failed to process PDF: %v", err))
		return
	}

	text, err := s.extractor.ExtractReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warn().Err(err).Str("filename", header.Filename).Msg("PDF extraction failed")
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to process PDF: %s", errors.Cause(err).Error()))
		return
	}

	log.Info().Str("filename", header.Filename).Int("chars", len(text)).Msg("Processed PDF")
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	registry := s.tutor.Registry()
	summaries := lo.FilterMap(registry.IDs(), func(id string, _ int) (SessionSummary, bool) {
		sess, err := registry.Get(id)
		if err != nil {
			// reset in the meantime
			return SessionSummary{}, false
		}
		return summarize(sess.View()), true
	})
	s.writeJSONResponse(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func summarize(v session.View) SessionSummary {
	return SessionSummary{ID: v.ID, UserPrompt: v.UserPrompt, Turns: len(v.History)}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	v, err := s.tutor.Session(mux.Vars(r)["id"])
	if err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, "Session not found. Please start a new tutorial.")
		return
	}

	steps := []*bridge.StepView{}
	for _, turn := range v.History {
		if turn.Role != conversation.RoleAssistant {
			continue
		}
		steps = append(steps, bridge.NewStepView(render.Parse(len(steps)+1, turn.Content)))
	}

	s.writeJSONResponse(w, http.StatusOK, SessionDetail{
		SessionSummary: summarize(v),
		Steps:          steps,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.tutor.Reset(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	v, err := s.tutor.Session(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Session not found. Please start a new tutorial.", http.StatusNotFound)
		return
	}

	title := "Timmy Tutorial"
	if v.UserPrompt != "" {
		title = "Timmy Tutorial: " + firstLine(v.UserPrompt)
	}
	out, err := render.RenderTranscript(title, v.UserPrompt, v.History)
	if err != nil {
		log.Error().Err(err).Str("session_id", v.ID).Msg("Could not render transcript")
		http.Error(w, "could not render transcript", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

func firstLine(s string) string {
	const maxTitle = 80
	for i, c := range s {
		if c == '\n' || i >= maxTitle {
			return s[:i]
		}
	}
	return s
}
