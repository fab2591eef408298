// Package server is the HTTP gateway in front of the agent backend and the
// travel services.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/agent"
	"github.com/danpilch/tripdesk/internal/config"
	"github.com/danpilch/tripdesk/internal/conversation"
	"github.com/danpilch/tripdesk/internal/travel"
)

const shutdownTimeout = 10 * time.Second

var ErrValidation = errors.New("validation failed")

// Trains is satisfied by *travel.TrainService.
type Trains interface {
	List(ctx context.Context, url string) *travel.Listing
	Book(ctx context.Context, req travel.BookRequest) (*travel.BookingResult, error)
}

// Listings is satisfied by *travel.ListingService.
type Listings interface {
	Buses(ctx context.Context, origin, destination, date string) *travel.Listing
	Activities(ctx context.Context, destination, date string) *travel.Listing
	Flights(ctx context.Context, origin, destination, date string) *travel.FlightResult
}

type Deps struct {
	Agent    agent.Backend
	Store    conversation.Store
	Trains   Trains
	Listings Listings
	Version  string
}

type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	logger *logrus.Logger
	router *mux.Router
}

func New(cfg config.ServerConfig, deps Deps, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/query", s.handleQuery).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	api.HandleFunc("/trains/scrape", s.handleScrapeTrains).Methods(http.MethodGet)
	api.HandleFunc("/trains/book", s.handleBookTrain).Methods(http.MethodPost)
	api.HandleFunc("/buses", s.handleBuses).Methods(http.MethodGet)
	api.HandleFunc("/activities", s.handleActivities).Methods(http.MethodGet)
	api.HandleFunc("/flights", s.handleFlights).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found: "+r.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method "+r.Method+" not allowed on "+r.URL.Path))
	})
}

// Handler returns the router wrapped in the CORS and logging middleware.
// CORS runs outside the router so preflight requests never reach route
// method matching.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.logMiddleware(s.router))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr":  srv.Addr,
			"agent": s.deps.Agent.Name(),
		}).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "serving http")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down http server")
	}
	return nil
}
