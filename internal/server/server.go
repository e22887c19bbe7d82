package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/combiapp/combiapp/config"
	"github.com/combiapp/combiapp/internal/metrics"
	"github.com/combiapp/combiapp/internal/service"
	"github.com/combiapp/combiapp/internal/storage"
)

// Server is the HTTP face of the service. The auth layer in front of it
// verifies identity and forwards it as X-User-Email / X-User-Name headers;
// handlers trust those without re-validating credentials.
type Server struct {
	cfg       *config.Config
	storage   *storage.Storage
	schedules *service.ScheduleService
	rosters   *service.RosterService
	notify    *service.NotifyService
	stops     *service.StopService
	collector *metrics.Collector
	now       func() time.Time

	httpServer *http.Server
}

func New(cfg *config.Config, store *storage.Storage, schedules *service.ScheduleService,
	rosters *service.RosterService, notify *service.NotifyService,
	stops *service.StopService, collector *metrics.Collector) *Server {
	return &Server{
		cfg:       cfg,
		storage:   store,
		schedules: schedules,
		rosters:   rosters,
		notify:    notify,
		stops:     stops,
		collector: collector,
		now:       time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.collector.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/week", s.handleWeek)

		r.Get("/schedule", s.handleGetSchedule)
		r.Put("/schedule", s.handleSaveSchedule)
		r.Get("/schedule/calendar.ics", s.handleCalendar)
		r.Put("/token", s.handleSetToken)

		r.Get("/roster/{day}", s.handleRoster)

		r.Get("/chat", s.handleListChat)
		r.Post("/chat", s.handlePostChat)

		r.Get("/stops", s.handleGetStops)
		r.Put("/stops", s.handlePutStops)

		r.Post("/broadcast", s.handleBroadcast)
	})

	return r
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    ":" + s.cfg.ServerPort,
		Handler: s.Router(),
	}

	log.Printf("Starting HTTP server on :%s", s.cfg.ServerPort)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
