// Package httpapi is the HTTP/WebSocket surface for the dashboard,
// overlay pages, and the chat/voice bridge's HTTP fallback: REST CRUD
// over the store, a command endpoint backed by the Command Router, and
// the four websocket channels backed by the Web Push hub.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelrun/marathoncast/internal/eventactor"
	"github.com/kestrelrun/marathoncast/internal/hostactor"
	"github.com/kestrelrun/marathoncast/internal/router"
	"github.com/kestrelrun/marathoncast/internal/runneractor"
	"github.com/kestrelrun/marathoncast/internal/store"
	"github.com/kestrelrun/marathoncast/internal/streamactor"
	"github.com/kestrelrun/marathoncast/internal/webpush"
)

const ReadTimeout = 30 * time.Second

// Actors bundles the actor handles the HTTP surface dispatches to. All
// four are expected to already be running (Run(ctx) in their own
// goroutine) before the server is started.
type Actors struct {
	Events  *eventactor.Actor
	Runners *runneractor.Actor
	Streams *streamactor.Actor
	Hosts   *hostactor.Actor
	Router  *router.Router
}

// Server is the chi-routed HTTP/WebSocket server.
type Server struct {
	store  *store.Store
	hub    *webpush.Hub
	router *chi.Mux
	srv    *http.Server
	log    *slog.Logger
}

// New builds the routed server; Start takes the host:port to listen on.
func New(st *store.Store, hub *webpush.Hub, actors Actors, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(Recovery(log))
	r.Use(Logger(log))
	r.Use(CORS)

	health := &healthHandler{dbPing: func(ctx context.Context) error {
		_, err := st.ListEvents(ctx)
		return err
	}}
	r.Get("/healthz", health.live)
	r.Get("/readyz", health.ready)
	r.Get("/health/full", health.full)
	r.Handle("/metrics", promhttp.Handler())

	ws := &wsHandlers{hub: hub, log: log}
	r.Get("/ws/state", ws.snapshots)
	r.Get("/ws/voice", ws.voice)
	r.Get("/ws/splits", ws.splits)
	r.Get("/ws/editor", ws.editor)

	api := &api{store: st, actors: actors, log: log}
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/participants", func(r chi.Router) {
			r.Get("/", api.listParticipants)
			r.Post("/", api.createParticipant)
			r.Get("/{id}", api.getParticipant)
			r.Put("/{id}", api.updateParticipant)
			r.Delete("/{id}", api.deleteParticipant)
		})
		r.Route("/runners", func(r chi.Router) {
			r.Get("/", api.listRunners)
			r.Post("/", api.createRunner)
			r.Get("/{id}", api.getRunner)
			r.Put("/{id}", api.updateRunner)
			r.Delete("/{id}", api.deleteRunner)
		})
		r.Route("/events", func(r chi.Router) {
			r.Get("/", api.listEvents)
			r.Post("/", api.createEvent)
			r.Get("/{id}", api.getEvent)
			r.Put("/{id}", api.updateEvent)
			r.Delete("/{id}", api.deleteEvent)
			r.Post("/{id}/roster/{runnerId}", api.addRunnerToEvent)
			r.Delete("/{id}/roster/{runnerId}", api.removeRunnerFromEvent)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", api.listRuns)
			r.Get("/{runnerId}", api.getRun)
		})
		r.Route("/layouts", func(r chi.Router) {
			r.Get("/", api.listLayouts)
			r.Put("/{name}", api.upsertLayout)
		})
		r.Route("/streams", func(r chi.Router) {
			r.Get("/", api.listStreams)
			r.Post("/", api.createStream)
			r.Get("/{eventId}", api.getStream)
			r.Delete("/{eventId}", api.deleteStream)
		})
		r.Route("/custom-fields", func(r chi.Router) {
			r.Get("/", api.listCustomFields)
			r.Put("/{key}", api.setCustomField)
		})
		r.Route("/hosts", func(r chi.Router) {
			r.Get("/", api.listHostState)
		})
		r.Post("/commands", api.dispatchCommand)
	})

	return &Server{store: st, hub: hub, router: r, log: log}
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: 0,
	}
	s.log.Info("httpapi: listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
