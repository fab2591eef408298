// Package mcpserver exposes the travel tools over the Model Context Protocol
// so that desktop assistants can search listings and start checkouts.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/tripdesk/internal/travel"
)

var (
	ErrMissingTrains   = errors.New("mcpserver: train service is required")
	ErrMissingListings = errors.New("mcpserver: listing service is required")
)

// Trains is satisfied by *travel.TrainService.
type Trains interface {
	Search(ctx context.Context, origin, destination, date string) *travel.Listing
	Book(ctx context.Context, req travel.BookRequest) (*travel.BookingResult, error)
}

// Listings is satisfied by *travel.ListingService.
type Listings interface {
	Buses(ctx context.Context, origin, destination, date string) *travel.Listing
	Activities(ctx context.Context, destination, date string) *travel.Listing
	Flights(ctx context.Context, origin, destination, date string) *travel.FlightResult
	WebSearch(ctx context.Context, query string) *travel.SearchResult
}

type Server struct {
	trains   Trains
	listings Listings
	logger   *logrus.Logger
	server   *mcp.Server
}

func New(trains Trains, listings Listings, version string, logger *logrus.Logger) (*Server, error) {
	if trains == nil {
		return nil, ErrMissingTrains
	}
	if listings == nil {
		return nil, ErrMissingListings
	}
	s := &Server{
		trains:   trains,
		listings: listings,
		logger:   logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "tripdesk",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("running mcp server: %w", err)
	}
	return nil
}
