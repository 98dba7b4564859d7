// Package server hosts the tutor panel over HTTP and connects it to the tutor service
// through a websocket.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-go-golems/timmy/pkg/bridge"
	"github.com/go-go-golems/timmy/pkg/pdf"
	"github.com/go-go-golems/timmy/pkg/server/web"
	"github.com/go-go-golems/timmy/pkg/tutor"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	tutor      *tutor.Service
	extractor  pdf.Extractor
	dispatcher *bridge.Dispatcher
	hub        *bridge.Hub

	panel    web.PanelConfig
	upgrader websocket.Upgrader
	router   *mux.Router
}

type Option func(*Server)

func WithPanelConfig(c web.PanelConfig) Option {
	return func(s *Server) {
		s.panel = c
	}
}

func WithHub(h *bridge.Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// WithDispatcherOptions configures the dispatcher handling websocket messages.
func WithDispatcherOptions(options ...bridge.DispatcherOption) Option {
	return func(s *Server) {
		s.dispatcher = bridge.NewDispatcher(s.tutor, s.extractor, options...)
	}
}

func NewServer(t *tutor.Service, extractor pdf.Extractor, options ...Option) *Server {
	ret := &Server{
		tutor:     t,
		extractor: extractor,
		panel:     web.DefaultPanelConfig(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	ret.dispatcher = bridge.NewDispatcher(t, extractor)
	for _, o := range options {
		o(ret)
	}
	if ret.hub == nil {
		ret.hub = bridge.NewHub(bridge.WithHubLogger(bridge.NewWatermillLogger(log.Logger)))
	}

	ret.router = mux.NewRouter()
	ret.RegisterRoutes(ret.router)
	return ret
}

func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(web.FS()))))
	router.HandleFunc("/ws", s.handleWebsocket)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	api.HandleFunc("/pdf", s.handleUploadPDF).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/transcript", s.handleTranscript).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("address", address).Msg("Serving tutor panel")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	if closeErr := s.hub.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("Could not close message hub")
	}
	return err
}
